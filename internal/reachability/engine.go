package reachability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/alert"
	"github.com/hamed0406/healthwatch/internal/health"
	"github.com/hamed0406/healthwatch/internal/probe"
)

// State of an engine's cache.
type State int

const (
	Uninitialized State = iota
	CachedHealthy
	CachedUnhealthy
)

func (s State) String() string {
	switch s {
	case CachedHealthy:
		return "cached_healthy"
	case CachedUnhealthy:
		return "cached_unhealthy"
	default:
		return "uninitialized"
	}
}

type cachedVerdict struct {
	verdict    health.Verdict
	computedAt time.Time
}

// Engine evaluates one cluster check. Evaluate calls on the same engine are
// serialised; different engines share nothing but the alert sink.
type Engine struct {
	cfg       CheckConfig
	source    HostSource
	prober    probe.Prober
	sink      alert.Sink
	clock     clock.Clock
	rand      Rand
	suppliers *Suppliers
	log       *zap.Logger

	mu    sync.Mutex
	cache *cachedVerdict
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

func WithSink(s alert.Sink) Option { return func(e *Engine) { e.sink = s } }

func WithProber(p probe.Prober) Option { return func(e *Engine) { e.prober = p } }

func WithClock(c clock.Clock) Option { return func(e *Engine) { e.clock = c } }

func WithRand(r Rand) Option { return func(e *Engine) { e.rand = r } }

// WithSuppliers sets the registry DYNAMIC checks resolve against.
func WithSuppliers(s *Suppliers) Option { return func(e *Engine) { e.suppliers = s } }

// WithHostSource overrides the source derived from the configuration.
func WithHostSource(s HostSource) Option { return func(e *Engine) { e.source = s } }

// NewEngine validates cfg and builds an engine. A malformed host pattern is
// reported here, never during a round.
func NewEngine(cfg CheckConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Prepare(); err != nil {
		return nil, fmt.Errorf("cluster check %q: %w", cfg.Name, err)
	}
	e := &Engine{cfg: cfg}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	e.log = e.log.With(zap.String("check", cfg.Name))
	if e.sink == nil {
		e.sink = alert.Nop{}
	}
	if e.prober == nil {
		e.prober = probe.NewTCPProber()
	}
	if e.clock == nil {
		e.clock = clock.New()
	}
	if e.rand == nil {
		e.rand = RuntimeRand()
	}
	if e.source == nil {
		if cfg.HostSource == Dynamic {
			e.source = NewDynamicSource(e.suppliers, e.rand)
		} else {
			e.source = NewConfigSource(e.rand)
		}
	}
	if cfg.HostSource == FromConfig && cfg.HostNameMode == Pattern && e.cfg.HostRange().Empty() {
		e.log.Warn("reachability_empty_host_range", zap.String("pattern", cfg.HostNamePattern))
	}
	return e, nil
}

func (e *Engine) Name() string { return e.cfg.Name }

func (e *Engine) Config() CheckConfig { return e.cfg }

// CheckInterval is how long a computed verdict stays cached.
func (e *Engine) CheckInterval() time.Duration { return e.cfg.CheckInterval }

// Evaluate returns the cached verdict while it is younger than the check
// interval, and otherwise runs a probe round. It never panics.
func (e *Engine) Evaluate(ctx context.Context) health.Verdict {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if c := e.cache; c != nil && now.Sub(c.computedAt) < e.cfg.CheckInterval {
		return c.verdict
	}

	v, err := e.round(ctx, now)
	if errors.Is(err, ErrNoHostSource) {
		e.log.Warn("reachability_no_host_source", zap.Error(err))
		if e.cache != nil {
			return e.cache.verdict
		}
		return health.Verdict{Healthy: true, Message: "round skipped: " + err.Error(), ObservedAt: now}
	}

	e.cache = &cachedVerdict{verdict: v, computedAt: now}
	return v
}

// State reports whether a verdict is cached and which one.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.cache == nil:
		return Uninitialized
	case e.cache.verdict.Healthy:
		return CachedHealthy
	default:
		return CachedUnhealthy
	}
}

// Cached returns the cached verdict, if any.
func (e *Engine) Cached() (health.Verdict, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cache == nil {
		return health.Verdict{}, false
	}
	return e.cache.verdict, true
}

// round resolves targets and probes them in order, stopping at the first
// failure. The only error it returns is a missing host source.
func (e *Engine) round(ctx context.Context, now time.Time) (v health.Verdict, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error("reachability_round_panic", zap.Any("panic", rec))
			v, err = e.fail(now, fmt.Sprintf("cluster check %s failed: %v", e.cfg.Name, rec)), nil
		}
	}()

	targets, err := e.source.Resolve(&e.cfg)
	if err != nil {
		if errors.Is(err, ErrNoHostSource) {
			return health.Verdict{}, err
		}
		e.log.Error("reachability_resolve_error", zap.Error(err))
		return e.fail(now, fmt.Sprintf("cluster check %s could not resolve hosts: %v", e.cfg.Name, err)), nil
	}

	// Only ConnectTimeout bounds a probe. A caller that gives up early must
	// not turn a reachable host into a cached failure.
	pctx := context.WithoutCancel(ctx)
	for _, t := range targets {
		e.log.Debug("reachability_probe", zap.String("host", t.Address), zap.Int("port", t.Port))
		res := e.prober.Attempt(pctx, t.Address, t.Port, e.cfg.ConnectTimeout)
		if res.OK() {
			continue
		}
		e.log.Warn("reachability_probe_failed",
			zap.String("host", t.Address),
			zap.Int("port", t.Port),
			zap.Stringer("outcome", res.Outcome),
			zap.Error(res.Err),
		)
		return e.fail(now, fmt.Sprintf("cluster host %s is not reachable on port %d: %s", t.Address, t.Port, res.Outcome)), nil
	}
	return health.Healthy(now), nil
}

// fail publishes the failure and applies the failure mode.
func (e *Engine) fail(now time.Time, msg string) health.Verdict {
	failed := health.Unhealthy(now, "%s", msg)
	e.publish(failed)
	return e.cfg.FailureMode.Resolve(failed)
}

func (e *Engine) publish(v health.Verdict) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error("reachability_alert_panic", zap.Any("panic", rec))
		}
	}()
	e.sink.Publish(e.cfg.Name, v)
}
