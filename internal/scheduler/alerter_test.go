package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/repo/memory"
)

// ---- shared helpers ----

func row(check string, healthy bool, msg string) domain.VerdictRecord {
	return domain.VerdictRecord{
		Check:      check,
		Healthy:    healthy,
		Message:    msg,
		ObservedAt: time.Now().UTC(),
	}
}

type fakeResults struct {
	mu   sync.Mutex
	n    int
	last *domain.VerdictRecord
	rows []domain.VerdictRecord // for alerter tests
	err  error
}

func (f *fakeResults) Append(ctx context.Context, r *domain.VerdictRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.n++
	cp := *r
	f.last = &cp
	return nil
}

func (f *fakeResults) Latest(ctx context.Context) ([]domain.VerdictRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows, f.err
}

func (f *fakeResults) History(ctx context.Context, check string, limit int) ([]domain.VerdictRecord, error) {
	return nil, nil
}

func (f *fakeResults) appended() (int, *domain.VerdictRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n, f.last
}

type memNotifier struct {
	mu     sync.Mutex
	titles []string
	err    error
}

func (m *memNotifier) Send(ctx context.Context, title, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titles = append(m.titles, title)
	return m.err
}

func (m *memNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.titles)
}

func newTestAlerter(results *fakeResults, nt *memNotifier, cfg AlerterConfig) (*Alerter, *clock.Mock) {
	al := NewAlerter(results, memory.New(), nt, cfg, nil)
	mock := clock.NewMock()
	mock.Set(time.Now())
	al.clock = mock
	return al, mock
}

// ---- tests ----

func TestAlerter_SendsOnDown_RespectsCooldown(t *testing.T) {
	results := &fakeResults{rows: []domain.VerdictRecord{row("A", false, "cluster host a is not reachable on port 80: timeout")}}
	nt := &memNotifier{}
	al, mock := newTestAlerter(results, nt, AlerterConfig{AlertOnRecovery: true, Cooldown: time.Minute})

	// first scan -> should alert
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if nt.count() != 1 || !strings.Contains(nt.titles[0], "UNHEALTHY: A") {
		t.Fatalf("want 1 down alert, got %v", nt.titles)
	}

	// same DOWN again -> state unchanged, no new alert
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if nt.count() != 1 {
		t.Fatalf("want no repeat, got %d", nt.count())
	}

	// flip to UP -> recovery alert allowed
	results.rows = []domain.VerdictRecord{row("A", true, "")}
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if nt.count() != 2 || !strings.Contains(nt.titles[1], "RECOVERED: A") {
		t.Fatalf("want recovery alert, got %v", nt.titles)
	}

	// flap DOWN within cooldown -> suppressed, state still recorded
	results.rows = []domain.VerdictRecord{row("A", false, "down again")}
	mock.Add(30 * time.Second)
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if nt.count() != 2 {
		t.Fatalf("want cooldown to suppress, got %d", nt.count())
	}
	rec, _ := al.alertDB.Get(context.Background(), "A")
	if rec == nil || rec.LastState || rec.LastSentAt != nil {
		t.Fatalf("suppressed transition should be recorded without send time: %+v", rec)
	}
}

func TestAlerter_NoRecoveryIfDisabled(t *testing.T) {
	results := &fakeResults{rows: []domain.VerdictRecord{row("B", true, "")}}
	nt := &memNotifier{}
	al, _ := newTestAlerter(results, nt, AlerterConfig{AlertOnRecovery: false})

	// first time healthy (no previous) -> no alert
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if nt.count() != 0 {
		t.Fatalf("unexpected alert: %d", nt.count())
	}

	// go DOWN -> should alert
	results.rows = []domain.VerdictRecord{row("B", false, "disk space is below threshold. free space: 10")}
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if nt.count() != 1 {
		t.Fatalf("want one down alert, got %d", nt.count())
	}

	// back UP -> recovery disabled
	results.rows = []domain.VerdictRecord{row("B", true, "")}
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if nt.count() != 1 {
		t.Fatalf("recovery alerts are disabled, got %d", nt.count())
	}
}

func TestAlerter_SendErrorStillRecordsState(t *testing.T) {
	results := &fakeResults{rows: []domain.VerdictRecord{row("C", false, "down")}}
	nt := &memNotifier{err: errors.New("webhook 500")}
	al, _ := newTestAlerter(results, nt, AlerterConfig{Cooldown: time.Hour})

	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if nt.count() != 1 {
		t.Fatalf("want a single attempt, got %d", nt.count())
	}
}

func TestAlerter_ScanPropagatesStoreError(t *testing.T) {
	results := &fakeResults{err: errors.New("db down")}
	al, _ := newTestAlerter(results, &memNotifier{}, AlerterConfig{})
	if err := al.scanOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestAlerter_RunStopsOnCancel(t *testing.T) {
	results := &fakeResults{rows: []domain.VerdictRecord{row("D", false, "down")}}
	nt := &memNotifier{}
	al, _ := newTestAlerter(results, nt, AlerterConfig{PollInterval: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- al.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for nt.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
	if nt.count() != 1 {
		t.Fatalf("initial pass should alert once, got %d", nt.count())
	}
}
