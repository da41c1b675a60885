package activity_test

import (
	"context"
	"testing"

	"github.com/ganot/quilt-tracker/internal/domain/activity"
	"github.com/ganot/quilt-tracker/internal/repository/mocks"
	"github.com/stretchr/testify/require"
)

func TestActivityService_LogAndList(t *testing.T) {
	ctx := context.Background()
	quiltID := "q1"

	repo := &mocks.ActivityRepository{}
	entry := &activity.ActivityEntry{
		QuiltID:      &quiltID,
		ActivityType: activity.TypeUsageOpened,
		Summary:      "put in use",
	}

	repo.On("Log", ctx, entry).Return(nil)
	repo.On("List", ctx, activity.ListActivityOptions{QuiltID: &quiltID, Limit: 50}).Return([]activity.ActivityEntry{*entry}, nil)

	svc := activity.NewService(repo, nil)
	require.NoError(t, svc.LogActivity(ctx, entry))
	require.False(t, entry.CreatedAt.IsZero())

	entries, err := svc.GetRecentActivity(ctx, activity.ListActivityOptions{QuiltID: &quiltID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	repo.AssertExpectations(t)
}

func TestActivityService_LogValidation(t *testing.T) {
	svc := activity.NewService(&mocks.ActivityRepository{}, nil)
	ctx := context.Background()

	require.ErrorIs(t, svc.LogActivity(ctx, nil), activity.ErrInvalidInput)
	require.ErrorIs(t, svc.LogActivity(ctx, &activity.ActivityEntry{Summary: "x"}), activity.ErrInvalidInput)
	require.ErrorIs(t, svc.LogActivity(ctx, &activity.ActivityEntry{ActivityType: activity.TypeStatusChanged, Summary: " "}), activity.ErrInvalidInput)
}

func TestActivityService_ListFilters(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ActivityRepository{}
	svc := activity.NewService(repo, nil)

	bogus := activity.ActivityType("record_created")
	_, err := svc.GetRecentActivity(ctx, activity.ListActivityOptions{ActivityType: &bogus})
	require.ErrorIs(t, err, activity.ErrInvalidInput)

	_, err = svc.GetRecentActivity(ctx, activity.ListActivityOptions{Offset: -1})
	require.ErrorIs(t, err, activity.ErrInvalidInput)

	closed := activity.TypeUsageClosed
	repo.On("List", ctx, activity.ListActivityOptions{ActivityType: &closed, Limit: 500}).Return([]activity.ActivityEntry{}, nil)
	entries, err := svc.GetRecentActivity(ctx, activity.ListActivityOptions{ActivityType: &closed, Limit: 10000})
	require.NoError(t, err)
	require.Empty(t, entries)
	repo.AssertExpectations(t)
}
