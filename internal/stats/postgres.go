package stats

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	createStatsTable = `
CREATE TABLE IF NOT EXISTS review_stats (
	counter    TEXT PRIMARY KEY,
	value      BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

	incrementCounter = `
INSERT INTO review_stats (counter, value, updated_at)
VALUES ($1, 1, NOW())
ON CONFLICT (counter) DO UPDATE
SET value = review_stats.value + 1, updated_at = NOW()
RETURNING value`

	selectSnapshot = `
SELECT
	COALESCE(MAX(value) FILTER (WHERE counter = 'visits'), 0),
	COALESCE(MAX(value) FILTER (WHERE counter = 'analyses'), 0)
FROM review_stats`
)

// Querier is the subset of *database.DB the Postgres store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type PostgresStore struct {
	db Querier
}

func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the counters table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createStatsTable); err != nil {
		return fmt.Errorf("failed to create review_stats: %w", err)
	}
	return nil
}

func (s *PostgresStore) Incr(ctx context.Context, c Counter) (int64, error) {
	if err := checkCounter(c); err != nil {
		return 0, err
	}
	var v int64
	if err := s.db.QueryRow(ctx, incrementCounter, string(c)).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", c, err)
	}
	return v, nil
}

func (s *PostgresStore) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := s.db.QueryRow(ctx, selectSnapshot).Scan(&snap.Visits, &snap.Analyses); err != nil {
		return Snapshot{}, fmt.Errorf("failed to read counters: %w", err)
	}
	return snap, nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error {
	return nil
}
