package health

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrDuplicateCheck = errors.New("check already registered")
	ErrUnknownCheck   = errors.New("unknown check")
)

// Registry holds the named checks of a process. It stands in for the hosting
// framework's registration mechanism.
type Registry struct {
	mu     sync.RWMutex
	checks map[string]Check
}

func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]Check)}
}

func (r *Registry) Register(name string, c Check) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("check name is blank")
	}
	if c == nil {
		return fmt.Errorf("check %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.checks[name]; ok {
		return fmt.Errorf("%s: %w", name, ErrDuplicateCheck)
	}
	r.checks[name] = c
	return nil
}

func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.checks, name)
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Check, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.checks[name]
	return c, ok
}

// Names returns registered check names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.checks))
	for n := range r.checks {
		out = append(out, n)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Run evaluates a single check by name.
func (r *Registry) Run(ctx context.Context, name string) (Verdict, error) {
	c, ok := r.Get(name)
	if !ok {
		return Verdict{}, fmt.Errorf("%s: %w", name, ErrUnknownCheck)
	}
	return safeEvaluate(ctx, c), nil
}

// RunAll evaluates every check concurrently and returns verdicts by name.
func (r *Registry) RunAll(ctx context.Context) map[string]Verdict {
	names := r.Names()
	out := make(map[string]Verdict, len(names))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, n := range names {
		c, ok := r.Get(n)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(name string, c Check) {
			defer wg.Done()
			v := safeEvaluate(ctx, c)
			mu.Lock()
			out[name] = v
			mu.Unlock()
		}(n, c)
	}
	wg.Wait()
	return out
}

// AllHealthy reports whether every verdict is healthy.
func AllHealthy(verdicts map[string]Verdict) bool {
	for _, v := range verdicts {
		if !v.Healthy {
			return false
		}
	}
	return true
}

// safeEvaluate keeps a misbehaving third-party Check from taking the
// process down.
func safeEvaluate(ctx context.Context, c Check) (v Verdict) {
	defer func() {
		if rec := recover(); rec != nil {
			v = Unhealthy(time.Now().UTC(), "check panicked: %v", rec)
		}
	}()
	return c.Evaluate(ctx)
}
