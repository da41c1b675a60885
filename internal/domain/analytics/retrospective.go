package analytics

import (
	"sort"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/usage"
)

// FindSameDayInPastYears returns periods from years before today's year
// that cover today's month and day. The comparison uses each period's start
// year as the reference year, so a period counts when it overlaps
// (startYear, today.Month, today.Day); open periods extend indefinitely.
// lookbackYears bounds how far back start years may go; 0 means every prior
// year. Results are ordered by start time, newest first.
func FindSameDayInPastYears(periods []usage.UsagePeriod, today CalendarDate, lookbackYears int) []usage.UsagePeriod {
	var out []usage.UsagePeriod
	for _, p := range periods {
		year := p.StartTime.Year()
		if year >= today.Year {
			continue
		}
		if lookbackYears > 0 && year < today.Year-lookbackYears {
			continue
		}

		dayStart := referenceDay(year, today.Month, today.Day, p.StartTime.Location())
		dayEnd := dayStart.AddDate(0, 0, 1)
		if !p.StartTime.Before(dayEnd) {
			continue
		}
		if p.EndTime != nil && p.EndTime.Before(dayStart) {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

// referenceDay returns midnight of month/day in year, mapping Feb 29 to
// Feb 28 when year is not a leap year.
func referenceDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	if month == time.February && day == 29 && !isLeap(year) {
		day = 28
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
