package analytics

import (
	"testing"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/usage"
	"github.com/stretchr/testify/require"
)

var statsAsOf = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func closedPeriod(startDaysAgo, endDaysAgo float64) usage.UsagePeriod {
	start := statsAsOf.Add(-time.Duration(startDaysAgo * float64(usage.Day)))
	end := statsAsOf.Add(-time.Duration(endDaysAgo * float64(usage.Day)))
	return usage.UsagePeriod{ID: start.String(), QuiltID: "q1", StartTime: start, EndTime: &end}
}

func openPeriod(startDaysAgo float64) usage.UsagePeriod {
	start := statsAsOf.Add(-time.Duration(startDaysAgo * float64(usage.Day)))
	return usage.UsagePeriod{ID: start.String(), QuiltID: "q1", StartTime: start}
}

func TestComputeStats_Windows(t *testing.T) {
	periods := []usage.UsagePeriod{
		closedPeriod(500, 490),
		closedPeriod(200, 190),
		closedPeriod(60, 50),
		closedPeriod(10, 5),
	}

	stats := ComputeStats("q1", periods, statsAsOf)

	require.Equal(t, WindowStats{Window: Window30Days, Days: 30, Count: 1, DaysUsed: 5}, stats.Window(Window30Days))
	require.Equal(t, WindowStats{Window: Window90Days, Days: 90, Count: 2, DaysUsed: 15}, stats.Window(Window90Days))
	require.Equal(t, WindowStats{Window: Window365Days, Days: 365, Count: 3, DaysUsed: 25}, stats.Window(Window365Days))
	require.Equal(t, WindowStats{Window: WindowAllTime, Count: 4, DaysUsed: 35}, stats.Window(WindowAllTime))

	require.NotNil(t, stats.LastUsedDate)
	require.True(t, stats.LastUsedDate.Equal(periods[3].StartTime))
	require.NotNil(t, stats.DaysSinceLastUse)
	require.Equal(t, 10, *stats.DaysSinceLastUse)
	require.False(t, stats.CurrentlyInUse)
	require.InDelta(t, 8.8, stats.AverageDaysPerUse, 1e-9)
	require.Equal(t, RecommendationKeep, stats.Recommendation)

	prev := 0
	for _, label := range []string{Window30Days, Window90Days, Window365Days, WindowAllTime} {
		count := stats.Window(label).Count
		require.GreaterOrEqual(t, count, prev, label)
		prev = count
	}
}

func TestComputeStats_NeverUsed(t *testing.T) {
	stats := ComputeStats("q1", nil, statsAsOf)

	require.Nil(t, stats.LastUsedDate)
	require.Nil(t, stats.DaysSinceLastUse)
	require.Zero(t, stats.AverageDaysPerUse)
	require.Equal(t, RecommendationConsiderRemoval, stats.Recommendation)
	for _, w := range stats.Windows {
		require.Zero(t, w.Count, w.Window)
		require.Zero(t, w.DaysUsed, w.Window)
	}
}

func TestComputeStats_DaysUsedRoundsUp(t *testing.T) {
	start := statsAsOf.Add(-10 * usage.Day)

	zero := start
	instant := usage.UsagePeriod{ID: "a", QuiltID: "q1", StartTime: start, EndTime: &zero}
	stats := ComputeStats("q1", []usage.UsagePeriod{instant}, statsAsOf)
	require.Equal(t, 1, stats.Window(Window30Days).Count)
	require.Equal(t, 0, stats.Window(Window30Days).DaysUsed)

	partial := start.Add(25 * time.Hour)
	overnight := usage.UsagePeriod{ID: "b", QuiltID: "q1", StartTime: start, EndTime: &partial}
	stats = ComputeStats("q1", []usage.UsagePeriod{overnight}, statsAsOf)
	require.Equal(t, 2, stats.Window(Window30Days).DaysUsed)
}

func TestComputeStats_OpenPeriodMeasuredToAsOf(t *testing.T) {
	stats := ComputeStats("q1", []usage.UsagePeriod{openPeriod(1.5)}, statsAsOf)

	require.True(t, stats.CurrentlyInUse)
	require.Equal(t, 2, stats.Window(Window30Days).DaysUsed)
	require.Equal(t, 1, *stats.DaysSinceLastUse)
}

func TestComputeStats_IgnoresPeriodsAfterAsOf(t *testing.T) {
	future := openPeriod(-3)
	stats := ComputeStats("q1", []usage.UsagePeriod{future}, statsAsOf)

	require.Zero(t, stats.Window(WindowAllTime).Count)
	require.False(t, stats.CurrentlyInUse)
	require.Nil(t, stats.LastUsedDate)
	require.Nil(t, stats.DaysSinceLastUse)
	require.Equal(t, RecommendationConsiderRemoval, stats.Recommendation)

	// Mixed with earlier history, the later start is still ignored.
	past := closedPeriod(20, 10)
	stats = ComputeStats("q1", []usage.UsagePeriod{past, future}, statsAsOf)
	require.Equal(t, 1, stats.Window(WindowAllTime).Count)
	require.NotNil(t, stats.LastUsedDate)
	require.True(t, stats.LastUsedDate.Equal(past.StartTime))
	require.NotNil(t, stats.DaysSinceLastUse)
	require.Equal(t, 20, *stats.DaysSinceLastUse)
}

func TestComputeStats_WindowBoundaryInclusive(t *testing.T) {
	stats := ComputeStats("q1", []usage.UsagePeriod{closedPeriod(30, 29)}, statsAsOf)
	require.Equal(t, 1, stats.Window(Window30Days).Count)
}

func TestComputeStats_Recommendation(t *testing.T) {
	tests := []struct {
		name    string
		periods []usage.UsagePeriod
		want    Recommendation
	}{
		{
			name:    "only old usage",
			periods: []usage.UsagePeriod{closedPeriod(400, 390)},
			want:    RecommendationConsiderRemoval,
		},
		{
			name:    "two uses this year",
			periods: []usage.UsagePeriod{closedPeriod(100, 90), closedPeriod(20, 10)},
			want:    RecommendationLowUsage,
		},
		{
			name: "frequent but not recently",
			periods: []usage.UsagePeriod{
				closedPeriod(250, 240),
				closedPeriod(220, 210),
				closedPeriod(190, 185),
			},
			want: RecommendationLowUsage,
		},
		{
			name: "regular use",
			periods: []usage.UsagePeriod{
				closedPeriod(200, 190),
				closedPeriod(120, 100),
				openPeriod(3),
			},
			want: RecommendationKeep,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := ComputeStats("q1", tt.periods, statsAsOf)
			require.Equal(t, tt.want, stats.Recommendation)
		})
	}
}

func TestComputeStats_Deterministic(t *testing.T) {
	periods := []usage.UsagePeriod{closedPeriod(40, 30), openPeriod(2)}
	require.Equal(t, ComputeStats("q1", periods, statsAsOf), ComputeStats("q1", periods, statsAsOf))
}
