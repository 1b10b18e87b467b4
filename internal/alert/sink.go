// Package alert holds the side channels notified whenever a check fails,
// regardless of its failure mode.
package alert

import (
	"github.com/hamed0406/healthwatch/internal/health"
)

// Sink receives one Publish per failing round. Implementations must be safe
// for concurrent use by many checks.
type Sink interface {
	Publish(checkName string, v health.Verdict)
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(checkName string, v health.Verdict)

func (f SinkFunc) Publish(checkName string, v health.Verdict) { f(checkName, v) }

// Nop discards alerts.
type Nop struct{}

func (Nop) Publish(string, health.Verdict) {}

// Multi fans an alert out to every non-nil sink.
type Multi []Sink

func (m Multi) Publish(checkName string, v health.Verdict) {
	for _, s := range m {
		if s == nil {
			continue
		}
		s.Publish(checkName, v)
	}
}
