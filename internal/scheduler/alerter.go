package scheduler

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/notify"
	"github.com/hamed0406/healthwatch/internal/repo"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
	PollInterval    time.Duration
}

// Alerter notifies on healthy/unhealthy transitions of the latest stored
// verdict of each check.
type Alerter struct {
	results  repo.ResultStore
	alertDB  repo.AlertStore
	notifier notify.Notifier
	cfg      AlerterConfig
	clock    clock.Clock
	log      *zap.Logger
}

func NewAlerter(
	results repo.ResultStore,
	alertDB repo.AlertStore,
	notifier notify.Notifier,
	cfg AlerterConfig,
	log *zap.Logger,
) *Alerter {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Alerter{
		results:  results,
		alertDB:  alertDB,
		notifier: notifier,
		cfg:      cfg,
		clock:    clock.New(),
		log:      log,
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	t := a.clock.Ticker(a.cfg.PollInterval)
	defer t.Stop()

	// initial pass
	a.scanLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			a.scanLogged(ctx)
		}
	}
}

func (a *Alerter) scanLogged(ctx context.Context) {
	if err := a.scanOnce(ctx); err != nil {
		a.log.Warn("alerter_scan_error", zap.Error(err))
	}
}

func (a *Alerter) scanOnce(ctx context.Context) error {
	rows, err := a.results.Latest(ctx)
	if err != nil {
		return err
	}

	now := a.clock.Now()

	for _, r := range rows {
		rec, err := a.alertDB.Get(ctx, r.Check)
		if err != nil {
			a.log.Warn("alerter_state_error", zap.String("check", r.Check), zap.Error(err))
			continue
		}

		// Has the healthy state changed compared to what we last recorded?
		stateChanged := rec == nil || rec.LastState != r.Healthy

		// Cooldown only matters for DOWN alerts (suppresses noisy repeats).
		cooled := true
		if rec != nil && rec.LastSentAt != nil {
			cooled = now.Sub(*rec.LastSentAt) >= a.cfg.Cooldown
		}

		downAlert := stateChanged && !r.Healthy && cooled
		recoveryAlert := stateChanged && r.Healthy && rec != nil && a.cfg.AlertOnRecovery // bypass cooldown

		if downAlert || recoveryAlert {
			title := "🔴 Check UNHEALTHY: " + r.Check
			if r.Healthy {
				title = "🟢 Check RECOVERED: " + r.Check
			}
			text := "Message: " + r.Message + "\nObserved: " + r.ObservedAt.Format(time.RFC3339)
			if r.Message == "" {
				text = "Observed: " + r.ObservedAt.Format(time.RFC3339)
			}

			if err := a.notifier.Send(ctx, title, text); err != nil {
				a.log.Warn("alerter_send_error", zap.String("check", r.Check), zap.Error(err))
			}
			_ = a.alertDB.Set(ctx, r.Check, r.Healthy, now)
			continue
		}

		// If state changed but we did not send (e.g., DOWN within cooldown or
		// recovery alerts disabled), still record the new state without a send time.
		if stateChanged {
			_ = a.alertDB.Set(ctx, r.Check, r.Healthy, time.Time{})
		}
	}

	return nil
}
