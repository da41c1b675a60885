package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `quilt-tracker records when each quilt is in use and answers questions about usage history.

Core concepts:
- Quilt: an item with a status: AVAILABLE, STORAGE, IN_USE or MAINTENANCE. AVAILABLE and STORAGE are both idle.
- Usage period: one contiguous stretch of use with a start time and, once finished, an end time. A quilt has at most one open period.
- A quilt is IN_USE exactly when it has an open usage period.

Rules of engagement:
1) Find quilts with list_quilts or get_quilt.
2) Change status only through transition_status. Putting a quilt IN_USE opens a period; moving it to any other status closes it.
   - occurred_at may backdate the change but may never be in the future or before the open period started (INVALID_INTERVAL).
   - ALREADY_IN_USE means the quilt is already tracked as in use. It is safe to ignore on retries.
3) Read history with list_usage_periods, get_usage_stats and get_retrospective.
4) get_recent_activity shows what changed, including automatic ledger repairs.

Docs:
- quilts://docs/index
- quilts://docs/lifecycle
- quilts://docs/analytics
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "quilts://docs/index",
		Name:        "docs_index",
		Title:       "quilt-tracker docs index",
		Description: "Entry point: available tools and which doc to read next.",
		Content: `# quilt-tracker: Docs Index

## Tools
- create_quilt, get_quilt, list_quilts: quilt administration
- transition_status: the only way to change status
- list_usage_periods: raw ledger for one quilt
- get_usage_stats: windowed counts and a recommendation
- get_retrospective: "on this day" in previous years
- get_recent_activity: audit log

## Read next
- quilts://docs/lifecycle before changing status
- quilts://docs/analytics before interpreting stats
`,
	},
	{
		URI:         "quilts://docs/lifecycle",
		Name:        "docs_lifecycle",
		Title:       "Status lifecycle and usage periods",
		Description: "How status transitions open and close usage periods, and the errors they report.",
		Content: `# Status lifecycle

| from | to | ledger effect |
|---|---|---|
| AVAILABLE / STORAGE / MAINTENANCE | IN_USE | open a period starting at occurred_at |
| IN_USE | AVAILABLE / STORAGE / MAINTENANCE | close the open period at occurred_at |
| any idle or MAINTENANCE | any idle or MAINTENANCE | none |
| same status | same status | none (IN_USE to IN_USE reports ALREADY_IN_USE) |

## Errors
- ALREADY_IN_USE: an open period already exists. Two simultaneous requests produce exactly one period.
- INVALID_INTERVAL: occurred_at is in the future, or earlier than the start of the period being closed.
- QUILT_NOT_FOUND: unknown quilt id.
- STORAGE_UNAVAILABLE: transient failure; retry the whole request.
- INVALID_INPUT: malformed arguments.

## Self-repair
If the status and the ledger disagree, the server trusts the ledger, repairs the status, and writes a ledger_reconciled activity entry.
`,
	},
	{
		URI:         "quilts://docs/analytics",
		Name:        "docs_analytics",
		Title:       "Usage statistics and retrospective",
		Description: "Window definitions, day counting and recommendation tiers.",
		Content: `# Usage statistics

Windows: 30d, 90d, 365d and all. A period counts in a window when it started inside it.
Days used per period: elapsed time to the end (or to as_of while open) rounded up to whole days.

Recommendation:
- CONSIDER_REMOVAL: no use started in the last 365 days
- LOW_USAGE: one or two uses in the last 365 days, or more than 180 days since the last use
- KEEP: otherwise

# Retrospective

Lists periods that covered today's month and day in any earlier year, newest first.
February 29 is matched against February 28 in non-leap years. Open periods count as still covering every later day.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
