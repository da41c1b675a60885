package usage

import (
	"context"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/activity"
	"github.com/ganot/quilt-tracker/internal/domain/quilt"
)

// LedgerStore persists usage periods. OpenPeriod must be atomic and
// uniqueness-checked by the storage engine: a second open period for the
// same quilt fails with repository.ErrConflict. ClosePeriod only closes an
// open period and fails with repository.ErrNotFound otherwise.
type LedgerStore interface {
	OpenPeriod(ctx context.Context, period *UsagePeriod) error
	ClosePeriod(ctx context.Context, periodID string, endTime time.Time) (*UsagePeriod, error)
	FindOpenPeriod(ctx context.Context, quiltID string) (*UsagePeriod, error)
	ListPeriods(ctx context.Context, quiltID string) ([]UsagePeriod, error)
	ListAllPeriods(ctx context.Context) ([]UsagePeriod, error)
}

// QuiltStore reads and writes the quilt status field. UpdateStatus is a
// compare-and-set on the stored status and fails with repository.ErrConflict
// when it no longer matches from.
type QuiltStore interface {
	Get(ctx context.Context, id string) (*quilt.Quilt, error)
	UpdateStatus(ctx context.Context, id string, from, to quilt.Status, at time.Time) error
}

// ActivityRepository logs usage activities.
type ActivityRepository interface {
	Log(ctx context.Context, entry *activity.ActivityEntry) error
}

// Publisher emits usage events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// CacheInvalidator drops cached analytics derived from the ledger.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) (int, error)
}
