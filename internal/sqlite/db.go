package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	memory := strings.Contains(dataSourceName, ":memory:") || strings.Contains(dataSourceName, "mode=memory")
	dsn := dataSourceName
	if !memory && !strings.Contains(dsn, "_pragma=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		// Pragmas in the DSN apply to every pooled connection.
		dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if memory {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS quilts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    season TEXT NOT NULL DEFAULT '',
    location TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL CHECK(status IN ('AVAILABLE', 'STORAGE', 'IN_USE', 'MAINTENANCE')),
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quilts_status ON quilts(status);

CREATE TABLE IF NOT EXISTS usage_periods (
    id TEXT PRIMARY KEY,
    quilt_id TEXT NOT NULL,
    start_time TEXT NOT NULL,
    end_time TEXT,
    note TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    legacy_source TEXT,
    legacy_id TEXT,
    CHECK(end_time IS NULL OR end_time >= start_time),
    FOREIGN KEY (quilt_id) REFERENCES quilts(id)
);
-- At most one open period per quilt.
CREATE UNIQUE INDEX IF NOT EXISTS idx_usage_periods_open ON usage_periods(quilt_id) WHERE end_time IS NULL;
CREATE INDEX IF NOT EXISTS idx_usage_periods_quilt_start ON usage_periods(quilt_id, start_time);
CREATE UNIQUE INDEX IF NOT EXISTS idx_usage_periods_legacy
    ON usage_periods(legacy_source, legacy_id) WHERE legacy_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS activity_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    quilt_id TEXT,
    period_id TEXT,
    activity_type TEXT NOT NULL,
    summary TEXT NOT NULL,
    details TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_quilt ON activity_log(quilt_id);
CREATE INDEX IF NOT EXISTS idx_activity_created_at ON activity_log(created_at);
`

// migrations are applied in order after the schema. Each must be
// idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: retrospective scans order the whole ledger by start time.
	`CREATE INDEX IF NOT EXISTS idx_usage_periods_start ON usage_periods(start_time)`,
}

// RunMigrations creates the schema and applies pending migrations.
func (db *DB) RunMigrations() error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by other tools may use plain RFC 3339.
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FormatTime renders t in the layout the store writes.
func FormatTime(t time.Time) string {
	return formatTime(t)
}

// ParseTime reads a timestamp written by FormatTime or as RFC 3339.
func ParseTime(s string) (time.Time, error) {
	return parseTime(s)
}
