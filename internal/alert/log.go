package alert

import (
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/health"
)

// LogSink writes every alert as an error-level log entry.
type LogSink struct {
	Logger *zap.Logger
}

func NewLogSink(l *zap.Logger) *LogSink {
	if l == nil {
		l = zap.NewNop()
	}
	return &LogSink{Logger: l}
}

func (s *LogSink) Publish(checkName string, v health.Verdict) {
	s.Logger.Error("healthcheck_alert",
		zap.String("check", checkName),
		zap.Bool("healthy", v.Healthy),
		zap.String("message", v.Message),
		zap.Time("observed_at", v.ObservedAt),
	)
}
