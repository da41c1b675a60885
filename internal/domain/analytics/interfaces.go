package analytics

import (
	"context"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/quilt"
	"github.com/ganot/quilt-tracker/internal/domain/usage"
)

// PeriodReader reads ledger snapshots.
type PeriodReader interface {
	ListPeriods(ctx context.Context, quiltID string) ([]usage.UsagePeriod, error)
	ListAllPeriods(ctx context.Context) ([]usage.UsagePeriod, error)
}

// QuiltReader resolves quilts so unknown IDs are reported instead of
// producing empty stats.
type QuiltReader interface {
	Get(ctx context.Context, id string) (*quilt.Quilt, error)
}

// Cache stores computed results. Invalidate removes keys matching a glob pattern.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) (int, error)
}
