package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/usage"
	"github.com/ganot/quilt-tracker/internal/repository"
)

// UsageRepository is the PostgreSQL usage ledger.
type UsageRepository struct {
	db *DB
}

var _ usage.LedgerStore = (*UsageRepository)(nil)

// NewUsageRepository creates a new UsageRepository.
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

const periodColumns = `id, quilt_id, start_time, end_time, note, created_at`

// OpenPeriod inserts an open period. A second open period for the same
// quilt fails with repository.ErrConflict.
func (r *UsageRepository) OpenPeriod(ctx context.Context, p *usage.UsagePeriod) error {
	if p.EndTime != nil {
		return fmt.Errorf("failed to open usage period: %w: end time set", repository.ErrInvalidInput)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO usage_periods (`+periodColumns+`) VALUES ($1, $2, $3, NULL, $4, $5)`,
		p.ID, p.QuiltID, p.StartTime.UTC(), p.Note, p.CreatedAt.UTC())
	if err != nil {
		return mapWriteError("failed to open usage period", err)
	}
	return nil
}

// ClosePeriod sets the end time of an open period. Closing a period that
// is unknown or already closed returns repository.ErrNotFound.
func (r *UsageRepository) ClosePeriod(ctx context.Context, periodID string, endTime time.Time) (*usage.UsagePeriod, error) {
	p, err := scanPeriod(r.db.QueryRowContext(ctx, `
		UPDATE usage_periods SET end_time = $1
		WHERE id = $2 AND end_time IS NULL
		RETURNING `+periodColumns,
		endTime.UTC(), periodID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, mapWriteError("failed to close usage period", err)
	}
	return p, nil
}

// FindOpenPeriod returns the quilt's open period or repository.ErrNotFound.
func (r *UsageRepository) FindOpenPeriod(ctx context.Context, quiltID string) (*usage.UsagePeriod, error) {
	p, err := scanPeriod(r.db.QueryRowContext(ctx,
		`SELECT `+periodColumns+` FROM usage_periods WHERE quilt_id = $1 AND end_time IS NULL`, quiltID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open usage period: %w", err)
	}
	return p, nil
}

// ListPeriods returns a quilt's periods ordered by start time.
func (r *UsageRepository) ListPeriods(ctx context.Context, quiltID string) ([]usage.UsagePeriod, error) {
	return r.list(ctx,
		`SELECT `+periodColumns+` FROM usage_periods WHERE quilt_id = $1 ORDER BY start_time, id`, quiltID)
}

// ListAllPeriods returns every period ordered by start time.
func (r *UsageRepository) ListAllPeriods(ctx context.Context) ([]usage.UsagePeriod, error) {
	return r.list(ctx, `SELECT `+periodColumns+` FROM usage_periods ORDER BY start_time, id`)
}

func (r *UsageRepository) list(ctx context.Context, query string, args ...any) ([]usage.UsagePeriod, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage periods: %w", err)
	}
	defer rows.Close()

	periods := []usage.UsagePeriod{}
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage period: %w", err)
		}
		periods = append(periods, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage period rows: %w", err)
	}
	return periods, nil
}

func scanPeriod(row rowScanner) (*usage.UsagePeriod, error) {
	var p usage.UsagePeriod
	var end sql.NullTime
	if err := row.Scan(&p.ID, &p.QuiltID, &p.StartTime, &end, &p.Note, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.StartTime = p.StartTime.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	if end.Valid {
		t := end.Time.UTC()
		p.EndTime = &t
	}
	return &p, nil
}
