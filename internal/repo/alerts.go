package repo

import (
	"context"
	"time"
)

// AlertRecord holds the last healthy state seen for a check and the last time
// a notification was sent for it (used for cooldown).
type AlertRecord struct {
	Check      string
	LastState  bool
	LastSentAt *time.Time
}

// AlertStore is implemented by a persistence layer to store alert state.
type AlertStore interface {
	// Get returns nil, nil if there's no record yet.
	Get(ctx context.Context, check string) (*AlertRecord, error)
	// Set upserts the record. If sentAt.IsZero() the send time is cleared.
	Set(ctx context.Context, check string, lastState bool, sentAt time.Time) error
}
