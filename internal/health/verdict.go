package health

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Verdict is the outcome of one evaluation round.
type Verdict struct {
	Healthy    bool      `json:"healthy"`
	Message    string    `json:"message,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

func Healthy(at time.Time) Verdict {
	return Verdict{Healthy: true, ObservedAt: at}
}

func Unhealthy(at time.Time, format string, args ...any) Verdict {
	return Verdict{Healthy: false, Message: fmt.Sprintf(format, args...), ObservedAt: at}
}

func (v Verdict) String() string {
	state := "healthy"
	if !v.Healthy {
		state = "unhealthy"
	}
	if v.Message == "" {
		return state
	}
	return state + ": " + v.Message
}

// FailureMode decides whether a failure fails the check (Normal) or is only
// surfaced through the alert channel (Alert).
type FailureMode int

const (
	Normal FailureMode = iota
	Alert
)

func (m FailureMode) String() string {
	if m == Alert {
		return "ALERT"
	}
	return "NORMAL"
}

func (m FailureMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *FailureMode) UnmarshalText(b []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(b))) {
	case "", "NORMAL":
		*m = Normal
	case "ALERT":
		*m = Alert
	default:
		return fmt.Errorf("unknown failure mode %q", string(b))
	}
	return nil
}

// Resolve applies the mode to a failing verdict.
func (m FailureMode) Resolve(failed Verdict) Verdict {
	if m == Alert {
		return Healthy(failed.ObservedAt)
	}
	return failed
}

// Check is a named health check. Evaluate never panics and never returns an
// error; failures are expressed through the Verdict.
type Check interface {
	Name() string
	Evaluate(ctx context.Context) Verdict
}

// CheckFunc adapts a function into a Check.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) Verdict
}

func (c CheckFunc) Name() string                         { return c.CheckName }
func (c CheckFunc) Evaluate(ctx context.Context) Verdict { return c.Fn(ctx) }
