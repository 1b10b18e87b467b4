package reachability

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/healthwatch/internal/alert"
	"github.com/hamed0406/healthwatch/internal/health"
	"github.com/hamed0406/healthwatch/internal/hostrange"
	"github.com/hamed0406/healthwatch/internal/probe"
)

func newEngine(t *testing.T, cfg CheckConfig, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, opts...)
	require.NoError(t, err)
	return e
}

func TestEngine_PatternSequentialScenario(t *testing.T) {
	prober := newFakeProber("app-01.svc.local:8000")
	sink := &recordingSink{}
	e := newEngine(t, patternConfig("cluster", "app-[00-02].svc.local", Sequential),
		WithProber(prober), WithSink(sink), WithClock(clock.NewMock()))

	v := e.Evaluate(context.Background())
	require.False(t, v.Healthy)
	assert.Contains(t, v.Message, "app-01.svc.local")
	assert.Contains(t, v.Message, "8000")
	assert.Equal(t, []string{"app-00.svc.local:8000", "app-01.svc.local:8000"}, prober.Calls())
	assert.Equal(t, 1, sink.Count())
	assert.Equal(t, CachedUnhealthy, e.State())
}

func TestEngine_FailFastExactlyKProbes(t *testing.T) {
	hosts := []string{"h1", "h2", "h3", "h4", "h5", "h6"}
	for k := 1; k <= len(hosts); k++ {
		prober := newFakeProber(hosts[k-1] + ":8000")
		e := newEngine(t, listConfig("fail-fast", Sequential, hosts...), WithProber(prober))
		v := e.Evaluate(context.Background())
		require.False(t, v.Healthy)
		require.Len(t, prober.Calls(), k, "failing target %d", k)
	}
}

func TestEngine_AllReachableProbesEverything(t *testing.T) {
	prober := newFakeProber()
	sink := &recordingSink{}
	e := newEngine(t, listConfig("ok", Sequential, "a", "b", "c"), WithProber(prober), WithSink(sink))
	v := e.Evaluate(context.Background())
	assert.True(t, v.Healthy)
	assert.Len(t, prober.Calls(), 3)
	assert.Zero(t, sink.Count())
	assert.Equal(t, CachedHealthy, e.State())
}

func TestEngine_CacheWithinInterval(t *testing.T) {
	mock := clock.NewMock()
	prober := newFakeProber()
	e := newEngine(t, listConfig("cached", Sequential, "a", "b"), WithProber(prober), WithClock(mock))

	first := e.Evaluate(context.Background())
	mock.Add(59 * time.Second)
	second := e.Evaluate(context.Background())
	assert.Equal(t, first, second)
	assert.Len(t, prober.Calls(), 2, "the second call must not probe")

	mock.Add(time.Second)
	third := e.Evaluate(context.Background())
	assert.Len(t, prober.Calls(), 4, "expired cache re-probes")
	assert.True(t, third.ObservedAt.After(first.ObservedAt))
}

func TestEngine_FailureModes(t *testing.T) {
	for _, tc := range []struct {
		mode        health.FailureMode
		wantHealthy bool
	}{
		{health.Normal, false},
		{health.Alert, true},
	} {
		t.Run(tc.mode.String(), func(t *testing.T) {
			cfg := listConfig("modes", Sequential, "a", "b")
			cfg.FailureMode = tc.mode
			sink := &recordingSink{}
			e := newEngine(t, cfg, WithProber(newFakeProber("a:8000")), WithSink(sink))

			v := e.Evaluate(context.Background())
			assert.Equal(t, tc.wantHealthy, v.Healthy)
			require.Equal(t, 1, sink.Count())
			assert.Equal(t, "modes", sink.names[0])
			assert.False(t, sink.got[0].Healthy)
			assert.Contains(t, sink.got[0].Message, "a")
		})
	}
}

func TestEngine_DynamicWithoutSupplier(t *testing.T) {
	mock := clock.NewMock()
	core, logs := observer.New(zapcore.WarnLevel)
	prober := newFakeProber()
	sink := &recordingSink{}
	sup := NewSuppliers()

	cfg := listConfig("dyn", Sequential)
	cfg.HostSource = Dynamic
	e := newEngine(t, cfg, WithProber(prober), WithSink(sink), WithSuppliers(sup),
		WithClock(mock), WithLogger(zap.New(core)))

	v := e.Evaluate(context.Background())
	assert.True(t, v.Healthy)
	assert.Empty(t, prober.Calls())
	assert.Zero(t, sink.Count())
	assert.Equal(t, Uninitialized, e.State())
	assert.Equal(t, 1, logs.FilterMessage("reachability_no_host_source").Len())

	// late registration takes effect on the very next call, no TTL wait
	sup.Register("dyn", NewStaticSnapshot([]HostTarget{{"10.0.0.1", 7000}}).Supplier())
	v = e.Evaluate(context.Background())
	assert.True(t, v.Healthy)
	assert.Equal(t, []string{"10.0.0.1:7000"}, prober.Calls())
	assert.Equal(t, CachedHealthy, e.State())
}

func TestEngine_DynamicMissingKeepsPriorVerdict(t *testing.T) {
	mock := clock.NewMock()
	prober := newFakeProber("10.0.0.1:7000")
	sup := NewSuppliers()
	sup.Register("dyn", NewStaticSnapshot([]HostTarget{{"10.0.0.1", 7000}}).Supplier())

	cfg := listConfig("dyn", Sequential)
	cfg.HostSource = Dynamic
	e := newEngine(t, cfg, WithProber(prober), WithSuppliers(sup), WithClock(mock))

	prior := e.Evaluate(context.Background())
	require.False(t, prior.Healthy)

	sup.Unregister("dyn")
	mock.Add(2 * time.Minute)
	got := e.Evaluate(context.Background())
	assert.Equal(t, prior, got)
	assert.Len(t, prober.Calls(), 1)

	// computedAt was not refreshed: re-registering probes immediately
	sup.Register("dyn", NewStaticSnapshot([]HostTarget{{"10.0.0.2", 7000}}).Supplier())
	got = e.Evaluate(context.Background())
	assert.True(t, got.Healthy)
	assert.Len(t, prober.Calls(), 2)
}

func TestEngine_EmptyHostsVacuouslyHealthy(t *testing.T) {
	prober := newFakeProber()
	sink := &recordingSink{}
	e := newEngine(t, listConfig("empty", Sequential), WithProber(prober), WithSink(sink))
	assert.True(t, e.Evaluate(context.Background()).Healthy)
	assert.Empty(t, prober.Calls())
	assert.Zero(t, sink.Count())

	core, logs := observer.New(zapcore.WarnLevel)
	e = newEngine(t, patternConfig("reversed", "app-[9-1].svc.local", Sequential),
		WithProber(prober), WithLogger(zap.New(core)))
	assert.True(t, e.Evaluate(context.Background()).Healthy)
	assert.Empty(t, prober.Calls())
	assert.Equal(t, 1, logs.FilterMessage("reachability_empty_host_range").Len())
}

func TestEngine_MalformedPatternRejectedAtBuild(t *testing.T) {
	_, err := NewEngine(patternConfig("bad", "app-00.svc.local", Sequential))
	var mpe *hostrange.MalformedPatternError
	require.True(t, errors.As(err, &mpe), "got %v", err)
}

type panickingSource struct{}

func (panickingSource) Resolve(*CheckConfig) ([]HostTarget, error) { panic("resolver exploded") }

type erroringSource struct{}

func (erroringSource) Resolve(*CheckConfig) ([]HostTarget, error) {
	return nil, errors.New("lookup failed")
}

type panickingProber struct{}

func (panickingProber) Attempt(context.Context, string, int, time.Duration) probe.ProbeResult {
	panic("socket exploded")
}

func TestEngine_UnexpectedErrorsBecomeVerdicts(t *testing.T) {
	cases := map[string][]Option{
		"resolve panic": {WithHostSource(panickingSource{})},
		"resolve error": {WithHostSource(erroringSource{})},
		"probe panic":   {WithProber(panickingProber{})},
		"sink panic": {WithProber(newFakeProber("a:8000")), WithSink(alert.SinkFunc(func(string, health.Verdict) {
			panic("sink exploded")
		}))},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			for _, mode := range []health.FailureMode{health.Normal, health.Alert} {
				cfg := listConfig("boom", Sequential, "a")
				cfg.FailureMode = mode
				e := newEngine(t, cfg, opts...)

				var v health.Verdict
				require.NotPanics(t, func() { v = e.Evaluate(context.Background()) })
				assert.Equal(t, mode == health.Alert, v.Healthy)
				assert.NotEqual(t, Uninitialized, e.State())
			}
		})
	}
}

func TestEngine_ConcurrentEvaluateProbesOnce(t *testing.T) {
	prober := newFakeProber()
	e := newEngine(t, listConfig("conc", Sequential, "a", "b"), WithProber(prober), WithClock(clock.NewMock()))

	var wg sync.WaitGroup
	results := make([]health.Verdict, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Evaluate(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Len(t, prober.Calls(), 2)
	for _, v := range results {
		assert.Equal(t, results[0], v)
	}
}

func listenLocal(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestEngine_RealTCPProbe(t *testing.T) {
	port := listenLocal(t)

	cfg := listConfig("local", Sequential, "127.0.0.1")
	cfg.Ports = PortRange{Low: port, High: port + 1}
	e := newEngine(t, cfg)
	assert.True(t, e.Evaluate(context.Background()).Healthy)
	assert.Equal(t, "local", e.Name())
}

func TestEngine_CancelledCallerDoesNotPoisonCache(t *testing.T) {
	port := listenLocal(t)
	mock := clock.NewMock()
	sink := &recordingSink{}
	cfg := listConfig("local", Sequential, "127.0.0.1")
	cfg.Ports = PortRange{Low: port, High: port + 1}
	e := newEngine(t, cfg, WithSink(sink), WithClock(mock))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v := e.Evaluate(ctx)
	assert.True(t, v.Healthy, v.String())
	assert.Zero(t, sink.Count())
	assert.Equal(t, CachedHealthy, e.State())

	mock.Add(30 * time.Second)
	assert.True(t, e.Evaluate(context.Background()).Healthy)
	assert.Zero(t, sink.Count())
}

type ctxRecordingProber struct {
	mu   sync.Mutex
	errs []error
}

func (p *ctxRecordingProber) Attempt(ctx context.Context, host string, port int, _ time.Duration) probe.ProbeResult {
	p.mu.Lock()
	p.errs = append(p.errs, ctx.Err())
	p.mu.Unlock()
	return probe.ProbeResult{Host: host, Port: port, Outcome: probe.OK}
}

func TestEngine_ProbesIgnoreCallerDeadline(t *testing.T) {
	prober := &ctxRecordingProber{}
	e := newEngine(t, listConfig("deadline", Sequential, "a", "b"), WithProber(prober))

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	assert.True(t, e.Evaluate(ctx).Healthy)
	assert.Equal(t, []error{nil, nil}, prober.errs)
}
