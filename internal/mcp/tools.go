package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerTools(server *sdkmcp.Server, h *Handler) {
	addTool(server, "create_quilt",
		"Register a quilt. New quilts start AVAILABLE unless another idle status is given; IN_USE is only reachable through transition_status.",
		h.CreateQuilt)
	addTool(server, "get_quilt",
		"Get a quilt by ID including its current status",
		h.GetQuilt)
	addTool(server, "list_quilts",
		"List quilts ordered by name, optionally filtered by status",
		h.ListQuilts)
	addTool(server, "transition_status",
		"Change a quilt's status. Entering IN_USE opens a usage period, leaving it closes the open period. Reports ALREADY_IN_USE when the quilt is already in use.",
		h.TransitionStatus)
	addTool(server, "list_usage_periods",
		"List every usage period recorded for a quilt, oldest first",
		h.ListUsagePeriods)
	addTool(server, "get_usage_stats",
		"Usage counts and days used over the last 30, 90 and 365 days and all time, with a KEEP / LOW_USAGE / CONSIDER_REMOVAL recommendation",
		h.GetUsageStats)
	addTool(server, "get_retrospective",
		"Quilts that were in use on this calendar day in previous years",
		h.GetRetrospective)
	addTool(server, "get_recent_activity",
		"Recent activity log entries: creations, status changes, usage periods and ledger repairs",
		h.GetRecentActivity)
}

// addTool registers fn as a tool whose result is returned as JSON text.
// Domain failures become tool errors carrying the API error payload.
func addTool[In, Out any](server *sdkmcp.Server, name, description string, fn func(context.Context, In) (Out, error)) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        name,
		Description: description,
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in In) (*sdkmcp.CallToolResult, any, error) {
		out, err := fn(ctx, in)
		if err != nil {
			apiErr := MapError(err)
			if apiErr == nil {
				return nil, nil, err
			}
			return jsonResult(apiErr, true)
		}
		return jsonResult(out, false)
	})
}

func jsonResult(v any, isError bool) (*sdkmcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
		IsError: isError,
	}, nil, nil
}
