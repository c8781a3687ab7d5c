package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies it in
// tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore keeps snapshots in two Postgres tables: cache_snapshots holds the
// items in write order, cache_meta holds one write timestamp per logical
// table. The clear-then-write runs inside a single transaction so a reader
// can never observe a cleared-but-not-repopulated table as a hit.
type PgStore struct {
	db   DB
	ttls TTLConfig
	now  func() time.Time
}

func NewPgStore(db DB, ttls TTLConfig) *PgStore {
	return &PgStore{
		db:   db,
		ttls: ttls,
		now:  time.Now,
	}
}

func (s *PgStore) CacheData(ctx context.Context, table Table, items []json.RawMessage) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot write: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM cache_snapshots WHERE table_name = $1
	`, string(table)); err != nil {
		return fmt.Errorf("clear snapshot %s: %w", table, err)
	}

	for i, item := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO cache_snapshots (table_name, position, payload)
			VALUES ($1, $2, $3)
		`, string(table), i, []byte(item)); err != nil {
			return fmt.Errorf("write snapshot %s item %d: %w", table, i, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO cache_meta (table_name, written_at)
		VALUES ($1, $2)
		ON CONFLICT (table_name) DO UPDATE SET written_at = EXCLUDED.written_at
	`, string(table), s.now()); err != nil {
		return fmt.Errorf("stamp snapshot %s: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot %s: %w", table, err)
	}
	return nil
}

func (s *PgStore) GetCachedData(ctx context.Context, table Table) ([]json.RawMessage, error) {
	var writtenAt time.Time
	err := s.db.QueryRow(ctx, `
		SELECT written_at FROM cache_meta WHERE table_name = $1
	`, string(table)).Scan(&writtenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot timestamp %s: %w", table, err)
	}

	if s.now().Sub(writtenAt) > s.ttls.For(table) {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT payload FROM cache_snapshots
		WHERE table_name = $1
		ORDER BY position
	`, string(table))
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", table, err)
	}
	defer rows.Close()

	items := make([]json.RawMessage, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan snapshot %s item: %w", table, err)
		}
		items = append(items, json.RawMessage(payload))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot %s: %w", table, err)
	}

	return items, nil
}

func (s *PgStore) ClearAll(ctx context.Context) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cache clear: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM cache_snapshots`); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cache_meta`); err != nil {
		return fmt.Errorf("clear snapshot timestamps: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cache clear: %w", err)
	}
	return nil
}
