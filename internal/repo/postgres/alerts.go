package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hamed0406/healthwatch/internal/repo"
)

func (s *Store) Get(ctx context.Context, check string) (*repo.AlertRecord, error) {
	const q = `SELECT last_state, last_sent_at FROM alerts WHERE check_name=$1`
	r := repo.AlertRecord{Check: check}
	err := s.pool.QueryRow(ctx, q, check).Scan(&r.LastState, &r.LastSentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &r, nil
}

func (s *Store) Set(ctx context.Context, check string, lastState bool, sentAt time.Time) error {
	const q = `
		INSERT INTO alerts (check_name, last_state, last_sent_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (check_name)
		DO UPDATE SET last_state=EXCLUDED.last_state, last_sent_at=EXCLUDED.last_sent_at
	`
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	if _, err := s.pool.Exec(ctx, q, check, lastState, ts); err != nil {
		return fmt.Errorf("set alert: %w", err)
	}
	return nil
}
