package checks

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/health"
)

// MetricType mirrors the kinds of metric a threshold can be set on.
type MetricType string

const (
	Meter     MetricType = "METER"
	Timer     MetricType = "TIMER"
	Histogram MetricType = "HISTOGRAM"
	Counter   MetricType = "COUNTER"
	Gauge     MetricType = "GAUGE"
)

func (t MetricType) label() string {
	s := strings.ToLower(string(t))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var quantiles = map[string]float64{
	"median": 0.5,
	"p50":    0.5,
	"p75":    0.75,
	"p95":    0.95,
	"p98":    0.98,
	"p99":    0.99,
	"p999":   0.999,
}

// Metric fails when a gathered metric exceeds Threshold. A metric that is
// not registered is healthy.
//
// COUNTER sums all series of the family and GAUGE takes the largest.
// METER reads a counter: "count" is the total, "mean_rate" the per-second
// rate since the first evaluation, and m1_rate, m5_rate and m15_rate the
// rate since the previous evaluation. TIMER and HISTOGRAM read a histogram
// or summary family: count, sum, mean and the quantiles median, p50, p75,
// p95, p98, p99 and p999. For METER, TIMER and HISTOGRAM a value that is
// unavailable or not positive never fails.
type Metric struct {
	base
	Metric    string
	Type      MetricType
	Dimension string
	Threshold float64
	Gatherer  prometheus.Gatherer

	mu    sync.Mutex
	first *meterMark
	last  *meterMark
}

type meterMark struct {
	count float64
	at    time.Time
}

func NewMetric(name, metric string, typ MetricType, dimension string, threshold float64, g prometheus.Gatherer, mode health.FailureMode, d Deps) *Metric {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return &Metric{
		base:      newBase("metric", name, mode, d),
		Metric:    metric,
		Type:      typ,
		Dimension: dimension,
		Threshold: threshold,
		Gatherer:  g,
	}
}

func (c *Metric) Evaluate(ctx context.Context) health.Verdict {
	return c.evaluate(ctx, func(context.Context) health.Verdict {
		families, err := c.Gatherer.Gather()
		if err != nil {
			// partial results are still usable
			c.log.Warn("metric_gather_error", zap.Error(err))
		}
		var fam *dto.MetricFamily
		for _, f := range families {
			if f.GetName() == c.Metric {
				fam = f
				break
			}
		}
		if fam == nil || len(fam.GetMetric()) == 0 {
			return health.Healthy(c.now())
		}

		value, ok := c.value(fam)
		if !ok {
			return health.Healthy(c.now())
		}
		strict := c.Type == Meter || c.Type == Timer || c.Type == Histogram
		if (strict && value <= 0) || value <= c.Threshold {
			return health.Healthy(c.now())
		}
		return c.fail(fmt.Sprintf("%s %s[%s] exceeded threshold: %v", c.Type.label(), c.Metric, c.Dimension, value))
	})
}

func (c *Metric) value(fam *dto.MetricFamily) (float64, bool) {
	switch c.Type {
	case Counter:
		return sumCounter(fam)
	case Gauge:
		return maxGauge(fam)
	case Meter:
		total, ok := sumCounter(fam)
		if !ok {
			return 0, false
		}
		return c.meter(total)
	case Timer, Histogram:
		return distribution(fam, c.Dimension)
	default:
		return 0, false
	}
}

func (c *Metric) meter(total float64) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cur := &meterMark{count: total, at: now}
	prev := c.last
	c.last = cur
	if c.first == nil {
		c.first = cur
	}

	switch c.Dimension {
	case "count":
		return total, true
	case "mean_rate":
		return rate(c.first, cur)
	default:
		if prev == nil {
			return 0, false
		}
		return rate(prev, cur)
	}
}

func rate(from, to *meterMark) (float64, bool) {
	secs := to.at.Sub(from.at).Seconds()
	if secs <= 0 {
		return 0, false
	}
	return (to.count - from.count) / secs, true
}

func sumCounter(fam *dto.MetricFamily) (float64, bool) {
	var (
		sum float64
		ok  bool
	)
	for _, m := range fam.GetMetric() {
		switch {
		case m.Counter != nil:
			sum += m.GetCounter().GetValue()
			ok = true
		case m.Untyped != nil:
			sum += m.GetUntyped().GetValue()
			ok = true
		}
	}
	return sum, ok
}

func maxGauge(fam *dto.MetricFamily) (float64, bool) {
	best, ok := math.Inf(-1), false
	for _, m := range fam.GetMetric() {
		var v float64
		switch {
		case m.Gauge != nil:
			v = m.GetGauge().GetValue()
		case m.Untyped != nil:
			v = m.GetUntyped().GetValue()
		default:
			continue
		}
		if v > best {
			best = v
		}
		ok = true
	}
	return best, ok
}

// distribution merges every histogram or summary series of the family and
// reads dimension from the merged view.
func distribution(fam *dto.MetricFamily, dimension string) (float64, bool) {
	var (
		count   float64
		sum     float64
		buckets = map[float64]float64{}
		summary = map[float64]float64{}
		seen    bool
	)
	for _, m := range fam.GetMetric() {
		switch {
		case m.Histogram != nil:
			h := m.GetHistogram()
			count += float64(h.GetSampleCount())
			sum += h.GetSampleSum()
			for _, b := range h.GetBucket() {
				buckets[b.GetUpperBound()] += float64(b.GetCumulativeCount())
			}
			seen = true
		case m.Summary != nil:
			s := m.GetSummary()
			count += float64(s.GetSampleCount())
			sum += s.GetSampleSum()
			for _, q := range s.GetQuantile() {
				if v := q.GetValue(); !math.IsNaN(v) && v > summary[q.GetQuantile()] {
					summary[q.GetQuantile()] = v
				}
			}
			seen = true
		}
	}
	if !seen {
		return 0, false
	}

	switch dimension {
	case "count":
		return count, true
	case "sum":
		return sum, true
	case "mean":
		if count == 0 {
			return 0, false
		}
		return sum / count, true
	}
	q, ok := quantiles[dimension]
	if !ok {
		return 0, false
	}
	if v, ok := summary[q]; ok {
		return v, true
	}
	return bucketQuantile(q, buckets, count)
}

// bucketQuantile estimates a quantile from cumulative buckets by linear
// interpolation inside the bucket holding the rank.
func bucketQuantile(q float64, buckets map[float64]float64, count float64) (float64, bool) {
	if len(buckets) == 0 || count == 0 {
		return 0, false
	}
	bounds := make([]float64, 0, len(buckets))
	for ub := range buckets {
		bounds = append(bounds, ub)
	}
	sort.Float64s(bounds)

	rank := q * count
	lower, prevCount := 0.0, 0.0
	for _, ub := range bounds {
		cum := buckets[ub]
		if cum >= rank {
			if math.IsInf(ub, 1) {
				return lower, true
			}
			if cum == prevCount {
				return ub, true
			}
			return lower + (ub-lower)*(rank-prevCount)/(cum-prevCount), true
		}
		lower, prevCount = ub, cum
	}
	return lower, true
}
