package activity

import "time"

// ActivityType represents the type of activity event
type ActivityType string

const (
	TypeQuiltCreated     ActivityType = "quilt_created"
	TypeStatusChanged    ActivityType = "status_changed"
	TypeUsageOpened      ActivityType = "usage_opened"
	TypeUsageClosed      ActivityType = "usage_closed"
	TypeLedgerReconciled ActivityType = "ledger_reconciled"
	TypeLedgerMigrated   ActivityType = "ledger_migrated"
)

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case TypeQuiltCreated, TypeStatusChanged, TypeUsageOpened, TypeUsageClosed,
		TypeLedgerReconciled, TypeLedgerMigrated:
		return true
	}
	return false
}

// ActivityEntry represents an event in the activity log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	QuiltID      *string      `json:"quilt_id,omitempty"`
	PeriodID     *string      `json:"period_id,omitempty"`
	ActivityType ActivityType `json:"type"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time    `json:"created_at"`
}
