// Package postgres provides Postgres-backed persistence implementations.
//
// Expected schema:
//
//	CREATE TABLE jobs (
//		id              UUID PRIMARY KEY,
//		url             TEXT NOT NULL UNIQUE,
//		source          TEXT,
//		status          TEXT NOT NULL,
//		result          JSONB,
//		fallback        JSONB,
//		failure_reason  TEXT,
//		created_at      TIMESTAMPTZ NOT NULL,
//		processed_at    TIMESTAMPTZ,
//		dispatch_status TEXT NOT NULL DEFAULT 'none',
//		dispatch_due    TIMESTAMPTZ,
//		dispatch_error  TEXT
//	);
//
//	CREATE TABLE rate_buckets (
//		hour_key TEXT PRIMARY KEY,
//		count    INT NOT NULL DEFAULT 0
//	);
//
//	CREATE TABLE credentials (
//		principal     TEXT PRIMARY KEY,
//		access_token  TEXT NOT NULL,
//		refresh_token TEXT NOT NULL,
//		expires_at    TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE settings (
//		key   TEXT PRIMARY KEY,
//		value TEXT NOT NULL
//	);
package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// psql builds queries with Postgres dollar placeholders.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// dbConn is the slice of pgxpool.Pool the stores need; pgxmock satisfies it
// in tests.
type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PoolConfig controls the shared connection pool.
type PoolConfig struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// NewPool creates and pings a pgx connection pool.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}
