package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/galley/internal/logging"
)

// PostgresSchemaSQL is the Postgres rendition of SchemaSQL.
// Items stay a JSONB document per branch row, same as the sqlite items_json column.
const PostgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS manifests (
	id TEXT PRIMARY KEY,
	created_date DATE NOT NULL,
	delivery_date DATE NOT NULL,
	created_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	CHECK (delivery_date >= created_date)
);

CREATE INDEX IF NOT EXISTS idx_manifests_delivery ON manifests(delivery_date);

CREATE TABLE IF NOT EXISTS branch_dispatches (
	manifest_id TEXT NOT NULL REFERENCES manifests(id) ON DELETE CASCADE,
	branch_slug TEXT NOT NULL,
	branch_name TEXT NOT NULL,
	position INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'packing', 'packed', 'dispatched', 'received', 'issue')),
	status_before_issue TEXT NOT NULL DEFAULT '',
	issue_note TEXT NOT NULL DEFAULT '',
	items JSONB NOT NULL DEFAULT '[]',
	version INTEGER NOT NULL DEFAULT 1,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (manifest_id, branch_slug)
);

CREATE INDEX IF NOT EXISTS idx_branch_dispatches_slug ON branch_dispatches(branch_slug);
CREATE INDEX IF NOT EXISTS idx_branch_dispatches_status ON branch_dispatches(status);

CREATE TABLE IF NOT EXISTS archived_manifests (
	id TEXT PRIMARY KEY,
	delivery_date DATE NOT NULL,
	manifest JSONB NOT NULL,
	deleted_at TIMESTAMPTZ NOT NULL,
	deleted_by TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_archived_manifests_deleted ON archived_manifests(deleted_at);
`

// PoolConfig holds connection pool settings for Postgres.
type PoolConfig struct {
	URL          string
	MaxRetries   int
	InitialDelay time.Duration
}

// OpenPostgres connects to Postgres with retries and exponential backoff
// (serverless databases may be cold on first connect), then initializes the schema.
func OpenPostgres(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 5
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	poolConfig.MaxConns = 30
	poolConfig.MinConns = 0
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	// Simple protocol keeps connection poolers (pgbouncer, Neon) happy.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	var pool *pgxpool.Pool
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		logging.Info("connecting to postgres", logging.Fields{
			"attempt": attempt, "max_attempts": cfg.MaxRetries,
			"host": poolConfig.ConnConfig.Host, "database": poolConfig.ConnConfig.Database,
		})

		pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err = pool.Ping(pingCtx)
			cancel()
			if err == nil {
				break
			}
			pool.Close()
			pool = nil
		}

		lastErr = err
		logging.Warn("postgres connection failed", logging.Fields{"attempt": attempt, "error": err})
		if attempt < cfg.MaxRetries {
			delay := cfg.InitialDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	if pool == nil {
		return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", cfg.MaxRetries, lastErr)
	}

	schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := InitPostgresSchema(schemaCtx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// InitPostgresSchema creates missing tables and indexes.
func InitPostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, PostgresSchemaSQL); err != nil {
		return fmt.Errorf("failed to initialize postgres schema: %w", err)
	}
	return nil
}
