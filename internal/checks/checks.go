// Package checks implements the single-shot health checks registered next
// to cluster reachability checks: TCP, HTTP(S), disk space and metric
// thresholds. Every check publishes to the alert sink when it fails and
// then applies its failure mode.
package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/alert"
	"github.com/hamed0406/healthwatch/internal/health"
)

// Deps are shared by every check of a process.
type Deps struct {
	Sink   alert.Sink
	Clock  clock.Clock
	Logger *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Sink == nil {
		d.Sink = alert.Nop{}
	}
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

// base carries the name, failure mode and failure routing of a check.
type base struct {
	name string
	mode health.FailureMode
	deps Deps
	log  *zap.Logger
}

func newBase(kind, name string, mode health.FailureMode, d Deps) base {
	d = d.withDefaults()
	return base{
		name: name,
		mode: mode,
		deps: d,
		log:  d.Logger.With(zap.String("check", name), zap.String("kind", kind)),
	}
}

func (b *base) Name() string { return b.name }

func (b *base) now() time.Time { return b.deps.Clock.Now() }

// evaluate runs fn and turns a panic into a failure.
func (b *base) evaluate(ctx context.Context, fn func(context.Context) health.Verdict) (v health.Verdict) {
	defer func() {
		if rec := recover(); rec != nil {
			b.log.Error("check_panic", zap.Any("panic", rec))
			v = b.fail(fmt.Sprintf("check %s failed: %v", b.name, rec))
		}
	}()
	return fn(ctx)
}

// fail publishes the failing verdict and applies the failure mode.
func (b *base) fail(msg string) health.Verdict {
	failed := health.Unhealthy(b.now(), "%s", msg)
	b.log.Warn("check_failed", zap.String("message", msg), zap.Stringer("mode", b.mode))
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				b.log.Error("check_alert_panic", zap.Any("panic", rec))
			}
		}()
		b.deps.Sink.Publish(b.name, failed)
	}()
	return b.mode.Resolve(failed)
}
