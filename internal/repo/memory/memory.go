package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/repo"
)

// Store keeps verdict history and alert state in process memory.
type Store struct {
	mu      sync.RWMutex
	nextID  int64
	results map[string][]domain.VerdictRecord
	alerts  map[string]repo.AlertRecord
}

func New() *Store {
	return &Store{
		results: make(map[string][]domain.VerdictRecord),
		alerts:  make(map[string]repo.AlertRecord),
	}
}

func (m *Store) Append(_ context.Context, r *domain.VerdictRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ObservedAt.IsZero() {
		r.ObservedAt = time.Now().UTC()
	}
	m.nextID++
	r.ID = m.nextID
	m.results[r.Check] = append(m.results[r.Check], *r)
	return nil
}

func (m *Store) Latest(_ context.Context) ([]domain.VerdictRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.VerdictRecord, 0, len(m.results))
	for _, rs := range m.results {
		latest := rs[0]
		for _, r := range rs[1:] {
			if !r.ObservedAt.Before(latest.ObservedAt) {
				latest = r
			}
		}
		out = append(out, latest)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Check < out[j].Check })
	return out, nil
}

func (m *Store) History(_ context.Context, check string, limit int) ([]domain.VerdictRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rs := m.results[check]
	out := make([]domain.VerdictRecord, len(rs))
	copy(out, rs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ObservedAt.After(out[j].ObservedAt) })
	if n := repo.NormalizeLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *Store) Get(_ context.Context, check string) (*repo.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.alerts[check]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Store) Set(_ context.Context, check string, lastState bool, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := repo.AlertRecord{Check: check, LastState: lastState}
	if !sentAt.IsZero() {
		ts := sentAt
		rec.LastSentAt = &ts
	}
	m.alerts[check] = rec
	return nil
}

func (m *Store) Close() error { return nil }

var _ repo.Store = (*Store)(nil)
