package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/health"
	"github.com/hamed0406/healthwatch/internal/repo"
)

// Runner evaluates every registered check on its cadence and persists each
// verdict. Checks that cache run at min(their interval, Every); the rest at
// Every.
type Runner struct {
	Logger      *zap.Logger
	Registry    *health.Registry
	Results     repo.ResultStore
	Every       time.Duration
	Timeout     time.Duration
	Concurrency int

	mu   sync.Mutex
	cron *cron.Cron
}

func NewRunner(
	logger *zap.Logger,
	reg *health.Registry,
	rs repo.ResultStore,
	every time.Duration,
	timeout time.Duration,
	concurrency int,
) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	if every < time.Second {
		every = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{
		Logger:      logger,
		Registry:    reg,
		Results:     rs,
		Every:       every,
		Timeout:     timeout,
		Concurrency: concurrency,
	}
}

// Start does an immediate pass over every check and then schedules one cron
// entry per check. Overlapping runs of the same check are skipped.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return fmt.Errorf("runner already started")
	}

	clog := cron.PrintfLogger(zap.NewStdLog(r.Logger.Named("cron")))
	c := cron.New(cron.WithLogger(clog), cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))
	for _, name := range r.Registry.Names() {
		name := name
		check, ok := r.Registry.Get(name)
		if !ok {
			continue
		}
		spec := "@every " + r.cadence(check).String()
		if _, err := c.AddFunc(spec, func() { r.runCheck(ctx, name) }); err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
	}

	r.RunAll(ctx)
	c.Start()
	r.cron = c
	r.Logger.Info("runner_started", zap.Int("checks", len(c.Entries())), zap.Duration("every", r.Every))
	return nil
}

// intervalCheck is implemented by checks that cache their verdict, such as
// reachability engines.
type intervalCheck interface {
	CheckInterval() time.Duration
}

// cadence is min(check interval, Every) for caching checks and Every for
// everything else.
func (r *Runner) cadence(c health.Check) time.Duration {
	if ic, ok := c.(intervalCheck); ok {
		if d := ic.CheckInterval(); d > 0 && d < r.Every {
			return d
		}
	}
	return r.Every
}

// Stop unschedules all checks and waits for running evaluations.
func (r *Runner) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	r.Logger.Info("runner_stopped")
}

// RunAll evaluates every registered check once, at most Concurrency at a time.
func (r *Runner) RunAll(ctx context.Context) map[string]health.Verdict {
	names := r.Registry.Names()
	out := make(map[string]health.Verdict, len(names))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Concurrency)
	for _, name := range names {
		name := name
		g.Go(func() error {
			v := r.runCheck(gctx, name)
			mu.Lock()
			out[name] = v
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Runner) runCheck(ctx context.Context, name string) health.Verdict {
	cctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	v, err := r.Registry.Run(cctx, name)
	if err != nil {
		// unregistered since scheduling
		r.Logger.Warn("runner_check_missing", zap.String("check", name), zap.Error(err))
		return v
	}
	if err := r.Results.Append(ctx, domain.NewVerdictRecord(name, v)); err != nil {
		r.Logger.Warn("runner_append_error", zap.String("check", name), zap.Error(err))
		return v
	}
	r.Logger.Debug("runner_evaluated",
		zap.String("check", name),
		zap.Bool("healthy", v.Healthy),
		zap.String("message", v.Message),
	)
	return v
}
