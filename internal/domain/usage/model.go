package usage

import (
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/quilt"
)

// Day is the unit the ledger reports durations in.
const Day = 24 * time.Hour

// UsagePeriod is one contiguous interval during which a quilt was in use.
// A nil EndTime means the period is still open.
type UsagePeriod struct {
	ID        string     `json:"id"`
	QuiltID   string     `json:"quilt_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Note      string     `json:"note,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsOpen reports whether the period has not been closed yet.
func (p UsagePeriod) IsOpen() bool {
	return p.EndTime == nil
}

// DaysUsed returns the whole days the period covers up to asOf, rounded up.
// Open periods, and periods ending after asOf, are measured to asOf.
func (p UsagePeriod) DaysUsed(asOf time.Time) int {
	end := asOf
	if p.EndTime != nil && p.EndTime.Before(asOf) {
		end = *p.EndTime
	}
	d := end.Sub(p.StartTime)
	if d <= 0 {
		return 0
	}
	return int((d + Day - 1) / Day)
}

// TransitionResult is the state after a status transition. Period is the
// ledger entry opened or closed by the transition, if any.
type TransitionResult struct {
	Quilt  *quilt.Quilt `json:"quilt"`
	Period *UsagePeriod `json:"period,omitempty"`
}

// ReconcileResult describes what Reconcile found for a quilt.
type ReconcileResult struct {
	QuiltID  string       `json:"quilt_id"`
	Status   quilt.Status `json:"status"`
	Repaired bool         `json:"repaired"`
	Issue    string       `json:"issue,omitempty"`
}
