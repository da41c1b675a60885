package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/analytics"
	"github.com/ganot/quilt-tracker/internal/domain/quilt"
	"github.com/ganot/quilt-tracker/internal/domain/usage"
	"github.com/ganot/quilt-tracker/internal/events"
	"github.com/stretchr/testify/require"
)

type quiltsStub []quilt.Quilt

func (s quiltsStub) List(context.Context, quilt.ListOptions) ([]quilt.Quilt, error) {
	return s, nil
}

type reconcileStub func(string) (*usage.ReconcileResult, error)

func (f reconcileStub) Reconcile(_ context.Context, id string) (*usage.ReconcileResult, error) {
	return f(id)
}

type statsStub struct {
	stats map[string]analytics.Recommendation
	retro []usage.UsagePeriod
	today *analytics.CalendarDate
}

func (s *statsStub) GetStats(_ context.Context, id string, asOf *time.Time) (*analytics.UsageStats, error) {
	rec, ok := s.stats[id]
	if !ok {
		return nil, quilt.ErrQuiltNotFound
	}
	days := 200
	return &analytics.UsageStats{
		QuiltID:          id,
		AsOf:             *asOf,
		Recommendation:   rec,
		DaysSinceLastUse: &days,
		Windows:          []analytics.WindowStats{{Window: analytics.Window365Days, Days: 365, Count: 1}},
	}, nil
}

func (s *statsStub) GetRetrospective(_ context.Context, today *analytics.CalendarDate) (*analytics.Retrospective, error) {
	s.today = today
	return &analytics.Retrospective{Date: today.String(), Periods: s.retro}, nil
}

func TestSweeper_Run(t *testing.T) {
	now := time.Date(2024, 12, 25, 9, 0, 0, 0, time.UTC)
	rec := &events.Recorder{}
	stats := &statsStub{
		stats: map[string]analytics.Recommendation{
			"q1": analytics.RecommendationKeep,
			"q2": analytics.RecommendationLowUsage,
		},
		retro: []usage.UsagePeriod{
			{ID: "p-old", QuiltID: "q1", StartTime: time.Date(2022, 12, 20, 18, 0, 0, 0, time.UTC)},
		},
	}

	sweeper := NewSweeper(Dependencies{
		Quilts: quiltsStub{
			{ID: "q1", Name: "Patchwork"},
			{ID: "q2", Name: "Summer linen"},
			{ID: "q3", Name: "Broken"},
		},
		Reconcile: reconcileStub(func(id string) (*usage.ReconcileResult, error) {
			switch id {
			case "q2":
				return &usage.ReconcileResult{QuiltID: id, Status: quilt.StatusInUse, Repaired: true, Issue: "open period without IN_USE status"}, nil
			case "q3":
				return nil, usage.ErrStorageUnavailable
			}
			return &usage.ReconcileResult{QuiltID: id}, nil
		}),
		Stats:     stats,
		Publisher: rec,
		Location:  time.UTC,
	})

	report, err := sweeper.Run(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, Report{Quilts: 3, Repaired: 1, Recommendations: 1, Retrospective: 1, Failed: 1}, report)
	require.Equal(t, analytics.CalendarDate{Year: 2024, Month: time.December, Day: 25}, *stats.today)

	require.Equal(t, []string{SubjectRecommendation, SubjectRetrospective}, rec.Subjects())
	msgs := rec.Messages()

	var notice RecommendationNotice
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &notice))
	require.Equal(t, "q2", notice.QuiltID)
	require.Equal(t, "Summer linen", notice.QuiltName)
	require.Equal(t, analytics.RecommendationLowUsage, notice.Recommendation)
	require.Equal(t, 1, notice.UsesLastYear)
	require.Equal(t, 200, *notice.DaysSinceLastUse)

	var retro RetrospectiveNotice
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &retro))
	require.Equal(t, "2024-12-25", retro.Date)
	require.Len(t, retro.Entries, 1)
	require.Equal(t, "Patchwork", retro.Entries[0].QuiltName)
	require.Equal(t, 2022, retro.Entries[0].Year)
}

func TestSweeper_EmptyRetrospectiveStillPublished(t *testing.T) {
	rec := &events.Recorder{}
	sweeper := NewSweeper(Dependencies{
		Quilts:    quiltsStub{},
		Reconcile: reconcileStub(func(string) (*usage.ReconcileResult, error) { return nil, errors.New("unused") }),
		Stats:     &statsStub{},
		Publisher: rec,
	})

	report, err := sweeper.Run(context.Background(), time.Now())
	require.NoError(t, err)
	require.Zero(t, report.Quilts)
	require.Equal(t, []string{SubjectRetrospective}, rec.Subjects())

	var retro RetrospectiveNotice
	require.NoError(t, json.Unmarshal(rec.Messages()[0].Payload, &retro))
	require.NotNil(t, retro.Entries)
	require.Empty(t, retro.Entries)
}

func TestSweeper_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sweeper := NewSweeper(Dependencies{
		Quilts:    quiltsStub{{ID: "q1"}},
		Reconcile: reconcileStub(func(string) (*usage.ReconcileResult, error) { return &usage.ReconcileResult{}, nil }),
		Stats:     &statsStub{},
		Publisher: &events.Recorder{},
	})
	_, err := sweeper.Run(ctx, time.Now())
	require.ErrorIs(t, err, context.Canceled)
}
