package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/repo"
)

var _ repo.Store = (*Store)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS verdicts (
  id          BIGSERIAL PRIMARY KEY,
  check_name  TEXT NOT NULL,
  healthy     BOOLEAN NOT NULL,
  message     TEXT NOT NULL DEFAULT '',
  observed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_verdicts_check_time ON verdicts (check_name, observed_at DESC);

CREATE TABLE IF NOT EXISTS alerts (
  check_name   TEXT PRIMARY KEY,
  last_state   BOOLEAN NOT NULL,
  last_sent_at TIMESTAMPTZ NULL
);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New connects, pings and applies the schema.
func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Info("postgres_store_ready")
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) Append(ctx context.Context, r *domain.VerdictRecord) error {
	if r.ObservedAt.IsZero() {
		r.ObservedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO verdicts (check_name, healthy, message, observed_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		r.Check, r.Healthy, r.Message, r.ObservedAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert verdict: %w", err)
	}
	return nil
}

func (s *Store) Latest(ctx context.Context) ([]domain.VerdictRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT DISTINCT ON (check_name)
       id, check_name, healthy, message, observed_at
  FROM verdicts
 ORDER BY check_name, observed_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("latest: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *Store) History(ctx context.Context, check string, limit int) ([]domain.VerdictRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, check_name, healthy, message, observed_at
  FROM verdicts
 WHERE check_name = $1
 ORDER BY observed_at DESC, id DESC
 LIMIT $2`, check, repo.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecords(rows rowScanner) ([]domain.VerdictRecord, error) {
	var out []domain.VerdictRecord
	for rows.Next() {
		var r domain.VerdictRecord
		if err := rows.Scan(&r.ID, &r.Check, &r.Healthy, &r.Message, &r.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		r.ObservedAt = r.ObservedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
