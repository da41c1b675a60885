package analytics

import (
	"math"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/usage"
)

var windows = []struct {
	label string
	days  int
}{
	{Window30Days, 30},
	{Window90Days, 90},
	{Window365Days, 365},
	{WindowAllTime, 0},
}

// ComputeStats derives windowed usage counts and a recommendation from a
// ledger snapshot. It is pure and deterministic.
func ComputeStats(quiltID string, periods []usage.UsagePeriod, asOf time.Time) UsageStats {
	stats := UsageStats{
		QuiltID: quiltID,
		AsOf:    asOf,
		Windows: make([]WindowStats, 0, len(windows)),
	}

	for _, w := range windows {
		ws := WindowStats{Window: w.label, Days: w.days}
		from := asOf.Add(-time.Duration(w.days) * usage.Day)
		for _, p := range periods {
			if p.StartTime.After(asOf) {
				continue
			}
			if w.days > 0 && p.StartTime.Before(from) {
				continue
			}
			ws.Count++
			ws.DaysUsed += p.DaysUsed(asOf)
		}
		stats.Windows = append(stats.Windows, ws)
	}

	for i := range periods {
		p := periods[i]
		if p.StartTime.After(asOf) {
			continue
		}
		if p.IsOpen() {
			stats.CurrentlyInUse = true
		}
		if stats.LastUsedDate == nil || p.StartTime.After(*stats.LastUsedDate) {
			start := p.StartTime
			stats.LastUsedDate = &start
		}
	}
	if stats.LastUsedDate != nil {
		days := int(math.Floor(asOf.Sub(*stats.LastUsedDate).Hours() / 24))
		stats.DaysSinceLastUse = &days
	}

	all := stats.Window(WindowAllTime)
	if all.Count > 0 {
		stats.AverageDaysPerUse = math.Round(float64(all.DaysUsed)/float64(all.Count)*10) / 10
	}

	stats.Recommendation = recommend(stats.Window(Window365Days).Count, stats.DaysSinceLastUse)
	return stats
}

// recommend applies the tiers in priority order; the first match wins.
func recommend(count365 int, daysSinceLastUse *int) Recommendation {
	if count365 == 0 {
		return RecommendationConsiderRemoval
	}
	if count365 <= 2 || (daysSinceLastUse != nil && *daysSinceLastUse > 180) {
		return RecommendationLowUsage
	}
	return RecommendationKeep
}
