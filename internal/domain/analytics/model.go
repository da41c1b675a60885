package analytics

import (
	"fmt"
	"time"
)

// Recommendation is the disposal/maintenance tier derived from usage frequency.
type Recommendation string

const (
	RecommendationKeep            Recommendation = "KEEP"
	RecommendationLowUsage        Recommendation = "LOW_USAGE"
	RecommendationConsiderRemoval Recommendation = "CONSIDER_REMOVAL"
)

// Window labels.
const (
	Window30Days  = "30d"
	Window90Days  = "90d"
	Window365Days = "365d"
	WindowAllTime = "all"
)

// WindowStats aggregates the periods that started inside one trailing window.
type WindowStats struct {
	Window   string `json:"window"`
	Days     int    `json:"days,omitempty"` // 0 for all time
	Count    int    `json:"count"`
	DaysUsed int    `json:"days_used"`
}

// UsageStats is the analytics snapshot for one quilt as of a point in time.
type UsageStats struct {
	QuiltID           string         `json:"quilt_id"`
	AsOf              time.Time      `json:"as_of"`
	Windows           []WindowStats  `json:"windows"`
	LastUsedDate      *time.Time     `json:"last_used_date"`
	DaysSinceLastUse  *int           `json:"days_since_last_use"`
	CurrentlyInUse    bool           `json:"currently_in_use"`
	AverageDaysPerUse float64        `json:"average_days_per_use"`
	Recommendation    Recommendation `json:"recommendation"`
}

// Window returns the stats for a window label.
func (s UsageStats) Window(label string) WindowStats {
	for _, w := range s.Windows {
		if w.Window == label {
			return w
		}
	}
	return WindowStats{Window: label}
}

// CalendarDate is a civil date without time of day.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) CalendarDate {
	y, m, d := t.Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (CalendarDate, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return CalendarDate{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	return DateOf(t), nil
}

func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}
