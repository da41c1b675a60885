package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/activity"
	"github.com/ganot/quilt-tracker/internal/domain/analytics"
	"github.com/ganot/quilt-tracker/internal/domain/quilt"
	"github.com/ganot/quilt-tracker/internal/domain/usage"
)

// QuiltService defines quilt operations needed by MCP.
type QuiltService interface {
	Create(ctx context.Context, req quilt.CreateRequest) (*quilt.Quilt, error)
	Get(ctx context.Context, id string) (*quilt.Quilt, error)
	List(ctx context.Context, opts quilt.ListOptions) ([]quilt.Quilt, error)
}

// UsageService defines status transition operations needed by MCP.
type UsageService interface {
	Transition(ctx context.Context, req usage.TransitionRequest) (*usage.TransitionResult, error)
	ListPeriods(ctx context.Context, quiltID string) ([]usage.UsagePeriod, error)
}

// AnalyticsService defines read-side analytics needed by MCP.
type AnalyticsService interface {
	GetStats(ctx context.Context, quiltID string, asOf *time.Time) (*analytics.UsageStats, error)
	GetRetrospective(ctx context.Context, today *analytics.CalendarDate) (*analytics.Retrospective, error)
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Quilts    QuiltService
	Usage     UsageService
	Analytics AnalyticsService
	Activity  ActivityService
}

// Handler dispatches MCP commands.
type Handler struct {
	quilts    QuiltService
	usage     UsageService
	analytics AnalyticsService
	activity  ActivityService
}

// NewHandler creates a new MCP handler.
func NewHandler(svc Services) *Handler {
	return &Handler{
		quilts:    svc.Quilts,
		usage:     svc.Usage,
		analytics: svc.Analytics,
		activity:  svc.Activity,
	}
}

// Methods lists the method names Handle accepts, in tool registration order.
var Methods = []string{
	"create_quilt",
	"get_quilt",
	"list_quilts",
	"transition_status",
	"list_usage_periods",
	"get_usage_stats",
	"get_retrospective",
	"get_recent_activity",
}

// Handle dispatches a JSON-RPC style request to the typed methods.
func (h *Handler) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "create_quilt":
		var req CreateQuiltParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.CreateQuilt(ctx, req)
	case "get_quilt":
		var req GetQuiltParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.GetQuilt(ctx, req)
	case "list_quilts":
		var req ListQuiltsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.ListQuilts(ctx, req)
	case "transition_status":
		var req TransitionStatusParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.TransitionStatus(ctx, req)
	case "list_usage_periods":
		var req ListUsagePeriodsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.ListUsagePeriods(ctx, req)
	case "get_usage_stats":
		var req GetUsageStatsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.GetUsageStats(ctx, req)
	case "get_retrospective":
		var req GetRetrospectiveParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.GetRetrospective(ctx, req)
	case "get_recent_activity":
		var req GetRecentActivityParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.GetRecentActivity(ctx, req)
	default:
		return nil, &APIError{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", method)}
	}
}

func (h *Handler) CreateQuilt(ctx context.Context, req CreateQuiltParams) (*quilt.Quilt, error) {
	q, err := h.quilts.Create(ctx, quilt.CreateRequest{
		ID:       req.ID,
		Name:     req.Name,
		Season:   req.Season,
		Location: req.Location,
		Notes:    req.Notes,
		Status:   req.Status,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return q, nil
}

func (h *Handler) GetQuilt(ctx context.Context, req GetQuiltParams) (*quilt.Quilt, error) {
	if req.ID == "" {
		return nil, invalidInput("id is required")
	}
	q, err := h.quilts.Get(ctx, req.ID)
	if err != nil {
		return nil, mapError(err)
	}
	return q, nil
}

func (h *Handler) ListQuilts(ctx context.Context, req ListQuiltsParams) (*QuiltListResponse, error) {
	quilts, err := h.quilts.List(ctx, quilt.ListOptions{
		Statuses: req.Statuses,
		Limit:    req.Limit,
		Offset:   req.Offset,
	})
	if err != nil {
		return nil, mapError(err)
	}
	if quilts == nil {
		quilts = []quilt.Quilt{}
	}
	return &QuiltListResponse{Quilts: quilts}, nil
}

// TransitionStatus is the only way callers change a quilt's status.
func (h *Handler) TransitionStatus(ctx context.Context, req TransitionStatusParams) (*usage.TransitionResult, error) {
	occurredAt, err := parseTimestamp("occurred_at", req.OccurredAt)
	if err != nil {
		return nil, err
	}
	result, err := h.usage.Transition(ctx, usage.TransitionRequest{
		QuiltID:    req.QuiltID,
		ToStatus:   req.ToStatus,
		OccurredAt: occurredAt,
		Note:       req.Note,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

func (h *Handler) ListUsagePeriods(ctx context.Context, req ListUsagePeriodsParams) (*UsagePeriodsResponse, error) {
	if req.QuiltID == "" {
		return nil, invalidInput("quilt_id is required")
	}
	if _, err := h.quilts.Get(ctx, req.QuiltID); err != nil {
		return nil, mapError(err)
	}
	periods, err := h.usage.ListPeriods(ctx, req.QuiltID)
	if err != nil {
		return nil, mapError(err)
	}
	if periods == nil {
		periods = []usage.UsagePeriod{}
	}
	return &UsagePeriodsResponse{QuiltID: req.QuiltID, Periods: periods}, nil
}

func (h *Handler) GetUsageStats(ctx context.Context, req GetUsageStatsParams) (*analytics.UsageStats, error) {
	if req.QuiltID == "" {
		return nil, invalidInput("quilt_id is required")
	}
	asOf, err := parseTimestamp("as_of", req.AsOf)
	if err != nil {
		return nil, err
	}
	stats, err := h.analytics.GetStats(ctx, req.QuiltID, asOf)
	if err != nil {
		return nil, mapError(err)
	}
	return stats, nil
}

// GetRetrospective returns the periods covering today's calendar day in
// earlier years, labelled with quilt names.
func (h *Handler) GetRetrospective(ctx context.Context, req GetRetrospectiveParams) (*RetrospectiveResponse, error) {
	var today *analytics.CalendarDate
	if req.Date != nil && *req.Date != "" {
		d, err := analytics.ParseDate(*req.Date)
		if err != nil {
			return nil, mapError(err)
		}
		today = &d
	}
	retro, err := h.analytics.GetRetrospective(ctx, today)
	if err != nil {
		return nil, mapError(err)
	}

	names := map[string]string{}
	if len(retro.Periods) > 0 {
		quilts, err := h.quilts.List(ctx, quilt.ListOptions{})
		if err != nil {
			return nil, mapError(err)
		}
		for _, q := range quilts {
			names[q.ID] = q.Name
		}
	}

	entries := make([]RetrospectiveEntry, 0, len(retro.Periods))
	for _, p := range retro.Periods {
		entries = append(entries, RetrospectiveEntry{
			UsagePeriod: p,
			QuiltName:   names[p.QuiltID],
			Year:        p.StartTime.Year(),
		})
	}
	return &RetrospectiveResponse{
		Date:          retro.Date,
		LookbackYears: retro.LookbackYears,
		Entries:       entries,
	}, nil
}

func (h *Handler) GetRecentActivity(ctx context.Context, req GetRecentActivityParams) (*ActivityResponse, error) {
	since, err := parseTimestamp("since", req.Since)
	if err != nil {
		return nil, err
	}
	opts := activity.ListActivityOptions{
		QuiltID: req.QuiltID,
		Since:   since,
		Limit:   req.Limit,
		Offset:  req.Offset,
	}
	if req.Type != nil && *req.Type != "" {
		t := activity.ActivityType(*req.Type)
		opts.ActivityType = &t
	}
	entries, err := h.activity.GetRecentActivity(ctx, opts)
	if err != nil {
		return nil, mapError(err)
	}
	if entries == nil {
		entries = []activity.ActivityEntry{}
	}
	return &ActivityResponse{Entries: entries}, nil
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return invalidInput("invalid params: %v", err)
	}
	return nil
}

func parseTimestamp(field string, val *string) (*time.Time, error) {
	if val == nil || *val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *val)
	if err != nil {
		return nil, invalidInput("%s must be an RFC 3339 timestamp", field)
	}
	return &t, nil
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
