package alert

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/notify"
)

// Deps carries what the named sinks need. Only the dependencies of the
// requested sinks have to be set.
type Deps struct {
	Logger     *zap.Logger
	Registerer prometheus.Registerer
	Notifier   notify.Notifier
	Kafka      MessageWriter
}

// Build assembles one shared sink from names such as "log", "metrics",
// "notify" (alias "slack") and "kafka". An empty list yields a log sink.
func Build(names []string, d Deps) (Sink, error) {
	if len(names) == 0 {
		names = []string{"log"}
	}
	var out Multi
	seen := make(map[string]bool)
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		switch name {
		case "log":
			out = append(out, NewLogSink(d.Logger))
		case "metrics":
			ms, err := NewMetricsSink(d.Registerer)
			if err != nil {
				return nil, fmt.Errorf("metrics sink: %w", err)
			}
			out = append(out, ms)
		case "notify", "slack":
			if d.Notifier == nil {
				return nil, fmt.Errorf("%s sink: no notifier configured", name)
			}
			out = append(out, NewNotifySink(d.Notifier, d.Logger))
		case "kafka":
			if d.Kafka == nil {
				return nil, fmt.Errorf("kafka sink: no writer configured")
			}
			out = append(out, NewKafkaSink(d.Kafka, d.Logger))
		default:
			return nil, fmt.Errorf("unknown alert sink %q", raw)
		}
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}
