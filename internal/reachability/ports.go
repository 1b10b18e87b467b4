package reachability

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
)

// PortRange is the half-open range [Low, High).
type PortRange struct {
	Low  int
	High int
}

// ParsePortRange parses "low-high".
func ParsePortRange(s string) (PortRange, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return PortRange{}, fmt.Errorf("port range %q: want low-high", s)
	}
	low, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return PortRange{}, fmt.Errorf("port range %q: low: %w", s, err)
	}
	high, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return PortRange{}, fmt.Errorf("port range %q: high: %w", s, err)
	}
	r := PortRange{Low: low, High: high}
	return r, r.Validate()
}

func (r PortRange) Validate() error {
	if r.High <= r.Low {
		return fmt.Errorf("port range [%d,%d): high must be greater than low", r.Low, r.High)
	}
	if r.Low < 1 || r.High > 65536 {
		return fmt.Errorf("port range [%d,%d): outside 1-65535", r.Low, r.High)
	}
	return nil
}

func (r PortRange) String() string { return fmt.Sprintf("%d-%d", r.Low, r.High) }

// Rand is the randomness capability used for host and port selection.
type Rand interface {
	IntN(n int) int
}

type runtimeRand struct{}

func (runtimeRand) IntN(n int) int { return rand.IntN(n) }

// RuntimeRand draws from the runtime's shared, concurrency-safe source.
func RuntimeRand() Rand { return runtimeRand{} }

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// SeededRand returns a deterministic, concurrency-safe source.
func SeededRand(seed uint64) Rand {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// PortPicker draws ports uniformly from a PortRange.
type PortPicker struct {
	rand Rand
}

func NewPortPicker(r Rand) *PortPicker {
	if r == nil {
		r = RuntimeRand()
	}
	return &PortPicker{rand: r}
}

// Pick returns a port in [Low, High). A degenerate range yields Low.
func (p *PortPicker) Pick(r PortRange) int {
	if r.High <= r.Low {
		return r.Low
	}
	return r.Low + p.rand.IntN(r.High-r.Low)
}
