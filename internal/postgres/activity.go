package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/activity"
)

// ActivityRepository implements activity.Repository for PostgreSQL.
type ActivityRepository struct {
	db *DB
}

var _ activity.Repository = (*ActivityRepository)(nil)

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Log appends an activity entry and sets its ID.
func (r *ActivityRepository) Log(ctx context.Context, entry *activity.ActivityEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO activity_log (quilt_id, period_id, activity_type, summary, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		entry.QuiltID, entry.PeriodID, string(entry.ActivityType), entry.Summary, entry.Details, createdAt.UTC(),
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}
	entry.CreatedAt = createdAt
	return nil
}

// List returns activity entries matching the given filters, newest first.
func (r *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	query := `SELECT id, quilt_id, period_id, activity_type, summary, details, created_at FROM activity_log`
	var args []any
	var conditions []string

	if opts.QuiltID != nil {
		args = append(args, *opts.QuiltID)
		conditions = append(conditions, fmt.Sprintf("quilt_id = $%d", len(args)))
	}
	if opts.ActivityType != nil {
		args = append(args, string(*opts.ActivityType))
		conditions = append(conditions, fmt.Sprintf("activity_type = $%d", len(args)))
	}
	if opts.Since != nil {
		args = append(args, opts.Since.UTC())
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if opts.Offset > 0 {
			args = append(args, opts.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var entries []activity.ActivityEntry
	for rows.Next() {
		var entry activity.ActivityEntry
		var quiltID, periodID sql.NullString
		if err := rows.Scan(&entry.ID, &quiltID, &periodID, &entry.ActivityType, &entry.Summary, &entry.Details, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		if quiltID.Valid {
			entry.QuiltID = &quiltID.String
		}
		if periodID.Valid {
			entry.PeriodID = &periodID.String
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}
	return entries, nil
}
