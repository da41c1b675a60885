package mcp

import (
	"github.com/ganot/quilt-tracker/internal/domain/activity"
	"github.com/ganot/quilt-tracker/internal/domain/quilt"
	"github.com/ganot/quilt-tracker/internal/domain/usage"
)

type CreateQuiltParams struct {
	ID       string       `json:"id,omitempty" jsonschema:"quilt identifier; generated when omitted"`
	Name     string       `json:"name" jsonschema:"display name"`
	Season   string       `json:"season,omitempty" jsonschema:"season the quilt is meant for"`
	Location string       `json:"location,omitempty" jsonschema:"where the quilt is kept"`
	Notes    string       `json:"notes,omitempty"`
	Status   quilt.Status `json:"status,omitempty" jsonschema:"initial status: AVAILABLE (default), STORAGE or MAINTENANCE"`
}

type GetQuiltParams struct {
	ID string `json:"id" jsonschema:"quilt identifier"`
}

type ListQuiltsParams struct {
	Statuses []quilt.Status `json:"statuses,omitempty" jsonschema:"filter by status"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
}

type TransitionStatusParams struct {
	QuiltID    string       `json:"quilt_id" jsonschema:"quilt identifier"`
	ToStatus   quilt.Status `json:"to_status" jsonschema:"target status: AVAILABLE, STORAGE, IN_USE or MAINTENANCE"`
	OccurredAt *string      `json:"occurred_at,omitempty" jsonschema:"RFC 3339 timestamp of the change; defaults to now and may not be in the future"`
	Note       *string      `json:"note,omitempty" jsonschema:"note stored on the usage period when the quilt is put in use"`
}

type ListUsagePeriodsParams struct {
	QuiltID string `json:"quilt_id" jsonschema:"quilt identifier"`
}

type GetUsageStatsParams struct {
	QuiltID string  `json:"quilt_id" jsonschema:"quilt identifier"`
	AsOf    *string `json:"as_of,omitempty" jsonschema:"RFC 3339 reference time; defaults to now"`
}

type GetRetrospectiveParams struct {
	Date *string `json:"date,omitempty" jsonschema:"calendar day as YYYY-MM-DD; defaults to today"`
}

type GetRecentActivityParams struct {
	QuiltID *string `json:"quilt_id,omitempty" jsonschema:"only activity for this quilt"`
	Type    *string `json:"type,omitempty" jsonschema:"only activity of this type"`
	Since   *string `json:"since,omitempty" jsonschema:"RFC 3339 lower bound on creation time"`
	Limit   int     `json:"limit,omitempty" jsonschema:"maximum entries; defaults to 50"`
	Offset  int     `json:"offset,omitempty"`
}

type QuiltListResponse struct {
	Quilts []quilt.Quilt `json:"quilts"`
}

type UsagePeriodsResponse struct {
	QuiltID string              `json:"quilt_id"`
	Periods []usage.UsagePeriod `json:"periods"`
}

// RetrospectiveEntry is a past usage period joined with its quilt for display.
type RetrospectiveEntry struct {
	usage.UsagePeriod
	QuiltName string `json:"quilt_name"`
	Year      int    `json:"year"`
}

type RetrospectiveResponse struct {
	Date          string               `json:"date"`
	LookbackYears int                  `json:"lookback_years"`
	Entries       []RetrospectiveEntry `json:"entries"`
}

type ActivityResponse struct {
	Entries []activity.ActivityEntry `json:"entries"`
}
