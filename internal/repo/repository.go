package repo

import (
	"context"
	"errors"

	"github.com/hamed0406/healthwatch/internal/domain"
)

var ErrNotFound = errors.New("not found")

// DefaultHistoryLimit caps History when the caller passes a non-positive limit.
const DefaultHistoryLimit = 50

// ResultStore persists verdict history.
type ResultStore interface {
	Append(ctx context.Context, r *domain.VerdictRecord) error
	// Latest returns the newest record per check, ordered by check name.
	Latest(ctx context.Context) ([]domain.VerdictRecord, error)
	// History returns up to limit records for check, newest first.
	History(ctx context.Context, check string, limit int) ([]domain.VerdictRecord, error)
}

// Store is what a backend provides to the daemon.
type Store interface {
	ResultStore
	AlertStore
	Close() error
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
