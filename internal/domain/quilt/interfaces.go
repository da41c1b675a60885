package quilt

import (
	"context"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/activity"
)

// Repository provides persistence operations for quilts.
type Repository interface {
	Create(ctx context.Context, q *Quilt) error
	Get(ctx context.Context, id string) (*Quilt, error)
	List(ctx context.Context, opts ListOptions) ([]Quilt, error)
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time) error
}

// ListOptions provides filtering options for listing quilts.
type ListOptions struct {
	Statuses []Status
	Limit    int
	Offset   int
}

// ActivityRepository records quilt administration in the activity log.
type ActivityRepository interface {
	Log(ctx context.Context, entry *activity.ActivityEntry) error
}
