package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ganot/quilt-tracker/internal/domain/quilt"
	"github.com/ganot/quilt-tracker/internal/domain/usage"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

func connectClient(t *testing.T, handler *Handler) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := NewServer(Config{Handler: handler})
	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func toolText(t *testing.T, res *sdkmcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestServer_ListsTools(t *testing.T) {
	session := connectClient(t, NewHandler(Services{}))

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		require.NotNil(t, tool.InputSchema, tool.Name)
	}
	require.ElementsMatch(t, Methods, names)
}

func TestServer_CallTool(t *testing.T) {
	handler := NewHandler(Services{
		Usage: usageStub{
			transitionFn: func(_ context.Context, req usage.TransitionRequest) (*usage.TransitionResult, error) {
				if req.QuiltID == "busy" {
					return nil, usage.ErrAlreadyInUse
				}
				return &usage.TransitionResult{Quilt: &quilt.Quilt{ID: req.QuiltID, Status: req.ToStatus}}, nil
			},
		},
	})
	session := connectClient(t, handler)
	ctx := context.Background()

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "transition_status",
		Arguments: map[string]any{"quilt_id": "q1", "to_status": "STORAGE"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	var result usage.TransitionResult
	require.NoError(t, json.Unmarshal([]byte(toolText(t, res)), &result))
	require.Equal(t, quilt.StatusStorage, result.Quilt.Status)

	res, err = session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "transition_status",
		Arguments: map[string]any{"quilt_id": "busy", "to_status": "IN_USE"},
	})
	require.NoError(t, err)
	require.True(t, res.IsError)

	var apiErr APIError
	require.NoError(t, json.Unmarshal([]byte(toolText(t, res)), &apiErr))
	require.Equal(t, CodeAlreadyInUse, apiErr.Code)
}

func TestServer_ReadsDocResources(t *testing.T) {
	session := connectClient(t, NewHandler(Services{}))

	res, err := session.ReadResource(context.Background(), &sdkmcp.ReadResourceParams{URI: "quilts://docs/lifecycle"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	require.Contains(t, res.Contents[0].Text, "ALREADY_IN_USE")
}
