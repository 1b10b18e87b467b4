package probe

import "context"

// CheckResult holds the outcome of a single URL probe.
//
// StatusCode is 0 when no response was received (transport, TLS or DNS error).
type CheckResult struct {
	Name       string  `json:"name"`
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	StatusCode int     `json:"status_code,omitempty"`
	LatencyMS  float64 `json:"latency_ms,omitempty"`
}

// Connected reports whether the target answered at all.
func (r CheckResult) Connected() bool { return r.StatusCode != 0 }

// Checker is implemented by URL checks (HTTP, HTTPS).
type Checker interface {
	Check(ctx context.Context, target string) CheckResult
}
