package alert

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hamed0406/healthwatch/internal/health"
)

// MetricsSink counts alerts per check name. Counters are created on the
// first alert for a name and never removed.
type MetricsSink struct {
	vec *prometheus.CounterVec

	mu       sync.Mutex
	counters map[string]prometheus.Counter
}

func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthcheck_alerts_total",
			Help: "Number of failing health check rounds, by check.",
		},
		[]string{"check"},
	)
	if reg != nil {
		if err := reg.Register(vec); err != nil {
			return nil, err
		}
	}
	return &MetricsSink{vec: vec, counters: make(map[string]prometheus.Counter)}, nil
}

func (s *MetricsSink) Publish(checkName string, _ health.Verdict) {
	s.counter(checkName).Inc()
}

func (s *MetricsSink) counter(name string) prometheus.Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[name]
	if !ok {
		c = s.vec.WithLabelValues(name)
		s.counters[name] = c
	}
	return c
}

// Collector exposes the underlying vector, e.g. for tests or custom
// registries.
func (s *MetricsSink) Collector() prometheus.Collector { return s.vec }
