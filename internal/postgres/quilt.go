package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/quilt"
	"github.com/ganot/quilt-tracker/internal/repository"
	"github.com/lib/pq"
)

// QuiltRepository implements quilt.Repository for PostgreSQL.
type QuiltRepository struct {
	db *DB
}

var _ quilt.Repository = (*QuiltRepository)(nil)

// NewQuiltRepository creates a new QuiltRepository.
func NewQuiltRepository(db *DB) *QuiltRepository {
	return &QuiltRepository{db: db}
}

const quiltColumns = `id, name, season, location, notes, status, created_at, updated_at`

// Create inserts a new quilt.
func (r *QuiltRepository) Create(ctx context.Context, q *quilt.Quilt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO quilts (`+quiltColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		q.ID, q.Name, q.Season, q.Location, q.Notes, string(q.Status), q.CreatedAt.UTC(), q.UpdatedAt.UTC())
	if err != nil {
		return mapWriteError("failed to create quilt", err)
	}
	return nil
}

// Get returns a quilt by ID or repository.ErrNotFound.
func (r *QuiltRepository) Get(ctx context.Context, id string) (*quilt.Quilt, error) {
	q, err := scanQuilt(r.db.QueryRowContext(ctx, `SELECT `+quiltColumns+` FROM quilts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quilt: %w", err)
	}
	return q, nil
}

// List returns quilts ordered by name.
func (r *QuiltRepository) List(ctx context.Context, opts quilt.ListOptions) ([]quilt.Quilt, error) {
	query, args := buildListQuery(opts)

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

func buildListQuery(opts quilt.ListOptions) (string, []any) {
	query := `SELECT ` + quiltColumns + ` FROM quilts`
	var args []any

	if len(opts.Statuses) > 0 {
		statuses := make([]string, len(opts.Statuses))
		for i, s := range opts.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		query += fmt.Sprintf(" WHERE status = ANY($%d)", len(args))
	}

	query += " ORDER BY name, id"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if opts.Offset > 0 {
			args = append(args, opts.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}
	return query, args
}

// UpdateStatus moves a quilt from one status to another; see the sqlite
// adapter for the conflict rules.
func (r *QuiltRepository) UpdateStatus(ctx context.Context, id string, from, to quilt.Status, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE quilts SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(to), at.UTC(), id, string(from))
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
	err = r.db.QueryRowContext(ctx, `SELECT status FROM quilts WHERE id = $1`, id).Scan(&stored)
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
	if err := row.Scan(&q.ID, &q.Name, &q.Season, &q.Location, &q.Notes, &q.Status, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	q.CreatedAt = q.CreatedAt.UTC()
	q.UpdatedAt = q.UpdatedAt.UTC()
	return &q, nil
}
