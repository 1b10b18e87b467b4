package reachability

import (
	"sync"
	"sync/atomic"
)

// Supplier returns an already materialised host snapshot. It must not block.
type Supplier func() []HostTarget

// Suppliers maps check names to dynamic host suppliers. Registration may
// happen before or after the check is built; lookups happen per round.
type Suppliers struct {
	mu sync.RWMutex
	m  map[string]Supplier
}

func NewSuppliers() *Suppliers {
	return &Suppliers{m: make(map[string]Supplier)}
}

// Register installs (or replaces) the supplier for checkName.
func (s *Suppliers) Register(checkName string, fn Supplier) {
	s.mu.Lock()
	s.m[checkName] = fn
	s.mu.Unlock()
}

func (s *Suppliers) Unregister(checkName string) {
	s.mu.Lock()
	delete(s.m, checkName)
	s.mu.Unlock()
}

func (s *Suppliers) Lookup(checkName string) (Supplier, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.m[checkName]
	return fn, ok && fn != nil
}

// StaticSnapshot holds a host list that can be swapped atomically, e.g. by
// an admin push.
type StaticSnapshot struct {
	hosts atomic.Pointer[[]HostTarget]
}

func NewStaticSnapshot(hosts []HostTarget) *StaticSnapshot {
	s := &StaticSnapshot{}
	s.Set(hosts)
	return s
}

// Set replaces the snapshot with a copy of hosts.
func (s *StaticSnapshot) Set(hosts []HostTarget) {
	cp := make([]HostTarget, len(hosts))
	copy(cp, hosts)
	s.hosts.Store(&cp)
}

func (s *StaticSnapshot) Hosts() []HostTarget {
	if p := s.hosts.Load(); p != nil {
		return *p
	}
	return nil
}

func (s *StaticSnapshot) Supplier() Supplier { return s.Hosts }
