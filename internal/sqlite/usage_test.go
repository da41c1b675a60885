package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/usage"
	"github.com/ganot/quilt-tracker/internal/repository"
	"github.com/stretchr/testify/require"
)

func openAt(id, quiltID string, start time.Time) *usage.UsagePeriod {
	return &usage.UsagePeriod{ID: id, QuiltID: quiltID, StartTime: start, CreatedAt: start}
}

func TestUsageRepository_OpenClose(t *testing.T) {
	db := NewTestDB(t)
	insertQuilt(t, db, "q1", "AVAILABLE")
	repo := NewUsageRepository(db)
	ctx := context.Background()

	start := time.Date(2024, 12, 1, 20, 0, 0, 0, time.UTC)
	require.NoError(t, repo.OpenPeriod(ctx, openAt("p1", "q1", start)))

	err := repo.OpenPeriod(ctx, openAt("p2", "q1", start.Add(time.Hour)))
	require.ErrorIs(t, err, repository.ErrConflict)

	open, err := repo.FindOpenPeriod(ctx, "q1")
	require.NoError(t, err)
	require.Equal(t, "p1", open.ID)
	require.True(t, open.IsOpen())

	end := start.Add(49 * time.Hour)
	closed, err := repo.ClosePeriod(ctx, "p1", end)
	require.NoError(t, err)
	require.NotNil(t, closed.EndTime)
	require.True(t, closed.EndTime.Equal(end))

	_, err = repo.ClosePeriod(ctx, "p1", end)
	require.ErrorIs(t, err, repository.ErrNotFound, "closing twice reports not found")

	_, err = repo.FindOpenPeriod(ctx, "q1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.OpenPeriod(ctx, openAt("p3", "q1", end)), "a new period may open after close")
}

func TestUsageRepository_Constraints(t *testing.T) {
	db := NewTestDB(t)
	insertQuilt(t, db, "q1", "AVAILABLE")
	repo := NewUsageRepository(db)
	ctx := context.Background()

	start := time.Date(2024, 12, 1, 20, 0, 0, 0, time.UTC)
	err := repo.OpenPeriod(ctx, openAt("p1", "missing", start))
	require.ErrorIs(t, err, repository.ErrForeignKeyViolation)

	require.NoError(t, repo.OpenPeriod(ctx, openAt("p2", "q1", start)))
	_, err = repo.ClosePeriod(ctx, "p2", start.Add(-time.Minute))
	require.ErrorIs(t, err, repository.ErrInvalidInput)

	closed, err := repo.ClosePeriod(ctx, "p2", start)
	require.NoError(t, err, "zero-length periods are allowed")
	require.Equal(t, 0, closed.DaysUsed(start.Add(usage.Day)))
}

func TestUsageRepository_List(t *testing.T) {
	db := NewTestDB(t)
	insertQuilt(t, db, "q1", "AVAILABLE")
	insertQuilt(t, db, "q2", "AVAILABLE")
	repo := NewUsageRepository(db)
	ctx := context.Background()

	base := time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		start := base.AddDate(0, i, 0)
		require.NoError(t, repo.OpenPeriod(ctx, openAt(id, "q1", start)))
		_, err := repo.ClosePeriod(ctx, id, start.AddDate(0, 0, 3))
		require.NoError(t, err)
	}
	require.NoError(t, repo.OpenPeriod(ctx, openAt("x", "q2", base.AddDate(0, 0, 15))))

	periods, err := repo.ListPeriods(ctx, "q1")
	require.NoError(t, err)
	require.Len(t, periods, 3)
	require.Equal(t, []string{"c", "a", "b"}, []string{periods[0].ID, periods[1].ID, periods[2].ID})

	all, err := repo.ListAllPeriods(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "c", all[0].ID)
	require.Equal(t, "x", all[1].ID)

	none, err := repo.ListPeriods(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, none)
}
