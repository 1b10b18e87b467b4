package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Fixed-width UTC timestamps so TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store keeps verdict history and alert state in a single SQLite file.
type Store struct {
	db *sql.DB
}

// New opens path and runs migrations.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// one writer at a time; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return nil, multierr.Append(fmt.Errorf("unable to ping database: %w", err), db.Close())
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to run migrations: %w", err), db.Close())
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS verdicts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	check_name  TEXT NOT NULL,
	healthy     INTEGER NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	observed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_verdicts_check_time ON verdicts (check_name, observed_at DESC);

CREATE TABLE IF NOT EXISTS alerts (
	check_name   TEXT PRIMARY KEY,
	last_state   INTEGER NOT NULL,
	last_sent_at TEXT
);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Append(ctx context.Context, r *domain.VerdictRecord) error {
	if r.ObservedAt.IsZero() {
		r.ObservedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO verdicts (check_name, healthy, message, observed_at) VALUES (?, ?, ?, ?)`,
		r.Check, r.Healthy, r.Message, r.ObservedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert verdict: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		r.ID = id
	}
	return nil
}

func (s *Store) Latest(ctx context.Context) ([]domain.VerdictRecord, error) {
	const q = `
SELECT v.id, v.check_name, v.healthy, v.message, v.observed_at
  FROM verdicts v
 WHERE v.id = (
	SELECT w.id FROM verdicts w
	 WHERE w.check_name = v.check_name
	 ORDER BY w.observed_at DESC, w.id DESC
	 LIMIT 1)
 ORDER BY v.check_name`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest verdicts: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *Store) History(ctx context.Context, check string, limit int) ([]domain.VerdictRecord, error) {
	const q = `
SELECT id, check_name, healthy, message, observed_at
  FROM verdicts
 WHERE check_name = ?
 ORDER BY observed_at DESC, id DESC
 LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, check, repo.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]domain.VerdictRecord, error) {
	var out []domain.VerdictRecord
	for rows.Next() {
		var (
			r  domain.VerdictRecord
			at string
		)
		if err := rows.Scan(&r.ID, &r.Check, &r.Healthy, &r.Message, &at); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		t, err := time.Parse(timeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("bad observed_at %q: %w", at, err)
		}
		r.ObservedAt = t
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, check string) (*repo.AlertRecord, error) {
	var (
		r    = repo.AlertRecord{Check: check}
		sent sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT last_state, last_sent_at FROM alerts WHERE check_name = ?`, check).
		Scan(&r.LastState, &sent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert state: %w", err)
	}
	if sent.Valid {
		t, err := time.Parse(timeLayout, sent.String)
		if err != nil {
			return nil, fmt.Errorf("bad last_sent_at %q: %w", sent.String, err)
		}
		r.LastSentAt = &t
	}
	return &r, nil
}

func (s *Store) Set(ctx context.Context, check string, lastState bool, sentAt time.Time) error {
	var sent sql.NullString
	if !sentAt.IsZero() {
		sent = sql.NullString{String: sentAt.UTC().Format(timeLayout), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO alerts (check_name, last_state, last_sent_at) VALUES (?, ?, ?)
ON CONFLICT(check_name) DO UPDATE SET last_state = excluded.last_state, last_sent_at = excluded.last_sent_at`,
		check, lastState, sent)
	if err != nil {
		return fmt.Errorf("failed to set alert state: %w", err)
	}
	return nil
}
