package reachability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hamed0406/healthwatch/internal/health"
	"github.com/hamed0406/healthwatch/internal/probe"
)

// fakeProber records every attempt and fails the endpoints in down.
type fakeProber struct {
	mu    sync.Mutex
	down  map[string]probe.Outcome
	calls []string
}

func newFakeProber(down ...string) *fakeProber {
	f := &fakeProber{down: make(map[string]probe.Outcome)}
	for _, d := range down {
		f.down[d] = probe.ConnectionRefused
	}
	return f
}

func (f *fakeProber) Attempt(_ context.Context, host string, port int, _ time.Duration) probe.ProbeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%s:%d", host, port)
	f.calls = append(f.calls, key)
	res := probe.ProbeResult{Host: host, Port: port, Outcome: probe.OK}
	if o, ok := f.down[key]; ok {
		res.Outcome = o
		res.Err = fmt.Errorf("dial %s: %s", key, o)
	}
	return res
}

func (f *fakeProber) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

type recordingSink struct {
	mu    sync.Mutex
	names []string
	got   []health.Verdict
}

func (r *recordingSink) Publish(name string, v health.Verdict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.got = append(r.got, v)
}

func (r *recordingSink) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func listConfig(name string, sel SelectionMode, hosts ...string) CheckConfig {
	return CheckConfig{
		Name:           name,
		Hosts:          hosts,
		Ports:          PortRange{Low: 8000, High: 8001},
		ConnectTimeout: time.Second,
		CheckInterval:  time.Minute,
		HostNameMode:   List,
		SelectionMode:  sel,
	}
}

func patternConfig(name, pattern string, sel SelectionMode) CheckConfig {
	return CheckConfig{
		Name:            name,
		HostNamePattern: pattern,
		Ports:           PortRange{Low: 8000, High: 8001},
		ConnectTimeout:  time.Second,
		CheckInterval:   time.Minute,
		HostNameMode:    Pattern,
		SelectionMode:   sel,
	}
}
