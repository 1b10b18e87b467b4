package domain

import (
	"time"

	"github.com/hamed0406/healthwatch/internal/health"
)

// VerdictRecord is one persisted evaluation of a named check.
type VerdictRecord struct {
	ID         int64     `json:"id,omitempty"`
	Check      string    `json:"check"`
	Healthy    bool      `json:"healthy"`
	Message    string    `json:"message,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

func NewVerdictRecord(check string, v health.Verdict) *VerdictRecord {
	return &VerdictRecord{
		Check:      check,
		Healthy:    v.Healthy,
		Message:    v.Message,
		ObservedAt: v.ObservedAt.UTC(),
	}
}

func (r VerdictRecord) Verdict() health.Verdict {
	return health.Verdict{Healthy: r.Healthy, Message: r.Message, ObservedAt: r.ObservedAt}
}
