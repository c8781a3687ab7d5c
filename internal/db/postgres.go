package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// EnsureCacheSchema creates the offline snapshot tables if they do not exist.
// The cache database is a substrate, not a system of record, so the schema is
// bootstrapped in place instead of through migrations.
func EnsureCacheSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS cache_snapshots (
			table_name text NOT NULL,
			position   int  NOT NULL,
			payload    jsonb NOT NULL,
			PRIMARY KEY (table_name, position)
		);
		CREATE TABLE IF NOT EXISTS cache_meta (
			table_name text PRIMARY KEY,
			written_at timestamptz NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure cache schema: %w", err)
	}
	return nil
}
