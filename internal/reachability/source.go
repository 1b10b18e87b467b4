package reachability

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrNoHostSource is returned when a DYNAMIC check has no registered
// supplier.
var ErrNoHostSource = errors.New("no host source registered")

type NoHostSourceError struct {
	Check string
}

func (e *NoHostSourceError) Error() string {
	return fmt.Sprintf("check %q: %s", e.Check, ErrNoHostSource)
}

func (e *NoHostSourceError) Unwrap() error { return ErrNoHostSource }

// HostTarget is a resolved endpoint ready to probe.
type HostTarget struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

func (t HostTarget) String() string {
	return net.JoinHostPort(t.Address, strconv.Itoa(t.Port))
}

// HostSource supplies the ordered targets of one evaluation round.
type HostSource interface {
	Resolve(cfg *CheckConfig) ([]HostTarget, error)
}

// ConfigSource resolves hosts from the static list or the expanded pattern.
type ConfigSource struct {
	Ports *PortPicker
	Rand  Rand
}

func NewConfigSource(r Rand) *ConfigSource {
	if r == nil {
		r = RuntimeRand()
	}
	return &ConfigSource{Ports: NewPortPicker(r), Rand: r}
}

func (s *ConfigSource) Resolve(cfg *CheckConfig) ([]HostTarget, error) {
	switch cfg.HostNameMode {
	case List:
		return s.fromList(cfg), nil
	case Pattern:
		return s.fromPattern(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported host name mode %d", cfg.HostNameMode)
	}
}

func (s *ConfigSource) fromList(cfg *CheckConfig) []HostTarget {
	hosts := cfg.Hosts
	if len(hosts) == 0 {
		return nil
	}
	if cfg.SelectionMode == Random {
		h := hosts[s.Rand.IntN(len(hosts))]
		return []HostTarget{{Address: h, Port: s.Ports.Pick(cfg.Ports)}}
	}
	out := make([]HostTarget, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, HostTarget{Address: h, Port: s.Ports.Pick(cfg.Ports)})
	}
	return out
}

// fromPattern probes the whole range for SEQUENTIAL but samples a single
// index for RANDOM to bound the cost of large ranges.
func (s *ConfigSource) fromPattern(cfg *CheckConfig) []HostTarget {
	spec := cfg.HostRange()
	if spec.Empty() {
		return nil
	}
	if cfg.SelectionMode == Random {
		i := spec.Start + s.Rand.IntN(spec.Len())
		return []HostTarget{{Address: spec.Expand(i), Port: s.Ports.Pick(cfg.Ports)}}
	}
	out := make([]HostTarget, 0, spec.Len())
	for i := spec.Start; i <= spec.End; i++ {
		out = append(out, HostTarget{Address: spec.Expand(i), Port: s.Ports.Pick(cfg.Ports)})
	}
	return out
}

// DynamicSource resolves hosts from the snapshot registered under the
// check's name. Entries carry their own ports.
type DynamicSource struct {
	Suppliers *Suppliers
	Rand      Rand
}

func NewDynamicSource(s *Suppliers, r Rand) *DynamicSource {
	if r == nil {
		r = RuntimeRand()
	}
	return &DynamicSource{Suppliers: s, Rand: r}
}

func (s *DynamicSource) Resolve(cfg *CheckConfig) ([]HostTarget, error) {
	var (
		supply Supplier
		ok     bool
	)
	if s.Suppliers != nil {
		supply, ok = s.Suppliers.Lookup(cfg.Name)
	}
	if !ok {
		return nil, &NoHostSourceError{Check: cfg.Name}
	}
	snapshot := supply()
	if len(snapshot) == 0 {
		return nil, nil
	}
	if cfg.SelectionMode == Random {
		return []HostTarget{snapshot[s.Rand.IntN(len(snapshot))]}, nil
	}
	out := make([]HostTarget, len(snapshot))
	copy(out, snapshot)
	return out, nil
}
