package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/quilt"
	"github.com/ganot/quilt-tracker/internal/repository"
)

// QuiltRepository implements quilt.Repository for SQLite
type QuiltRepository struct {
	db *DB
}

// NewQuiltRepository creates a new QuiltRepository
func NewQuiltRepository(db *DB) *QuiltRepository {
	return &QuiltRepository{db: db}
}

const quiltColumns = `id, name, season, location, notes, status, created_at, updated_at`

// Create inserts a new quilt
func (r *QuiltRepository) Create(ctx context.Context, q *quilt.Quilt) error {
	query := `
		INSERT INTO quilts (` + quiltColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		q.ID,
		q.Name,
		q.Season,
		q.Location,
		q.Notes,
		q.Status,
		formatTime(q.CreatedAt),
		formatTime(q.UpdatedAt),
	)
	if err != nil {
		return mapWriteError("failed to create quilt", err)
	}
	return nil
}

// Get retrieves a quilt by ID
func (r *QuiltRepository) Get(ctx context.Context, id string) (*quilt.Quilt, error) {
	query := `SELECT ` + quiltColumns + ` FROM quilts WHERE id = ?`

	q, err := scanQuilt(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quilt: %w", err)
	}
	return q, nil
}

// List returns quilts ordered by name
func (r *QuiltRepository) List(ctx context.Context, opts quilt.ListOptions) ([]quilt.Quilt, error) {
	query := `SELECT ` + quiltColumns + ` FROM quilts`
	args := []interface{}{}

	if len(opts.Statuses) > 0 {
		placeholders := make([]string, len(opts.Statuses))
		for i, s := range opts.Statuses {
			placeholders[i] = "?"
			args = append(args, s)
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}

	query += " ORDER BY name, id"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list quilts: %w", err)
	}
	defer rows.Close()

	var quilts []quilt.Quilt
	for rows.Next() {
		q, err := scanQuilt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quilt: %w", err)
		}
		quilts = append(quilts, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quilt rows: %w", err)
	}
	return quilts, nil
}

// UpdateStatus moves a quilt from one status to another. It fails with
// repository.ErrConflict when the stored status is neither from nor to, so
// a writer acting on a stale read cannot overwrite a concurrent change.
// Writing a status the quilt already holds succeeds.
func (r *QuiltRepository) UpdateStatus(ctx context.Context, id string, from, to quilt.Status, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE quilts SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, formatTime(at), id, from)
	if err != nil {
		return mapWriteError("failed to update quilt status", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var stored quilt.Status
	err = r.db.QueryRowContext(ctx, `SELECT status FROM quilts WHERE id = ?`, id).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return repository.ErrNotFound
	case err != nil:
		return fmt.Errorf("failed to read quilt status: %w", err)
	case stored == to:
		return nil
	default:
		return fmt.Errorf("%w: quilt %s is %s, expected %s", repository.ErrConflict, id, stored, from)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuilt(row rowScanner) (*quilt.Quilt, error) {
	var q quilt.Quilt
	var createdAt, updatedAt string
	if err := row.Scan(
		&q.ID,
		&q.Name,
		&q.Season,
		&q.Location,
		&q.Notes,
		&q.Status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if q.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if q.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &q, nil
}
