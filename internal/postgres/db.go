package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	*sql.DB
}

// New opens a PostgreSQL connection and verifies it is reachable.
func New(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &DB{db}, nil
}

// InitSchema creates the tables and indexes. It is safe to run repeatedly.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS quilts (
		id VARCHAR(64) PRIMARY KEY,
		name TEXT NOT NULL,
		season TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL CHECK (status IN ('AVAILABLE', 'STORAGE', 'IN_USE', 'MAINTENANCE')),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_quilts_status ON quilts(status);

	CREATE TABLE IF NOT EXISTS usage_periods (
		id VARCHAR(64) PRIMARY KEY,
		quilt_id VARCHAR(64) NOT NULL REFERENCES quilts(id),
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		legacy_source TEXT,
		legacy_id TEXT,
		CONSTRAINT usage_periods_interval CHECK (end_time IS NULL OR end_time >= start_time)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_usage_periods_open ON usage_periods(quilt_id) WHERE end_time IS NULL;
	CREATE INDEX IF NOT EXISTS idx_usage_periods_quilt_start ON usage_periods(quilt_id, start_time);
	CREATE INDEX IF NOT EXISTS idx_usage_periods_start ON usage_periods(start_time);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_usage_periods_legacy
		ON usage_periods(legacy_source, legacy_id) WHERE legacy_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS activity_log (
		id BIGSERIAL PRIMARY KEY,
		quilt_id VARCHAR(64),
		period_id VARCHAR(64),
		activity_type VARCHAR(32) NOT NULL,
		summary TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activity_quilt ON activity_log(quilt_id);
	CREATE INDEX IF NOT EXISTS idx_activity_created_at ON activity_log(created_at);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
