package usage

import (
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/quilt"
)

// Event subjects published after a successful transition.
const (
	SubjectUsageOpened   = "usage.opened"
	SubjectUsageClosed   = "usage.closed"
	SubjectStatusChanged = "status.changed"
)

// Event is the payload published for a transition.
type Event struct {
	QuiltID    string       `json:"quilt_id"`
	PeriodID   string       `json:"period_id,omitempty"`
	From       quilt.Status `json:"from"`
	To         quilt.Status `json:"to"`
	OccurredAt time.Time    `json:"occurred_at"`
}
