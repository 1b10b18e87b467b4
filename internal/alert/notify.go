package alert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/health"
	"github.com/hamed0406/healthwatch/internal/notify"
)

// NotifySink forwards alerts to a notify.Notifier (Slack and friends).
// Send failures are logged; Publish never blocks longer than Timeout.
type NotifySink struct {
	Notifier notify.Notifier
	Logger   *zap.Logger
	Timeout  time.Duration
}

func NewNotifySink(n notify.Notifier, l *zap.Logger) *NotifySink {
	if l == nil {
		l = zap.NewNop()
	}
	return &NotifySink{Notifier: n, Logger: l, Timeout: 5 * time.Second}
}

func (s *NotifySink) Publish(checkName string, v health.Verdict) {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	title := fmt.Sprintf("Health check %s failed", checkName)
	text := fmt.Sprintf("Message: %s\nObserved: %s", v.Message, v.ObservedAt.Format(time.RFC3339))
	if err := s.Notifier.Send(ctx, title, text); err != nil {
		s.Logger.Warn("alert_notify_error", zap.String("check", checkName), zap.Error(err))
	}
}
