package testserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ganot/quilt-tracker/internal/app"
	"github.com/ganot/quilt-tracker/internal/config"
	"github.com/ganot/quilt-tracker/internal/events"
	"github.com/ganot/quilt-tracker/internal/mcp"
	"github.com/ganot/quilt-tracker/internal/transport"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

// TestServer is the full HTTP stack on an in-memory SQLite database.
type TestServer struct {
	Server *httptest.Server
	App    *app.App
	Events *events.Recorder
}

// New starts a server with the /rpc, /mcp and /health routes.
func New(t *testing.T) *TestServer {
	t.Helper()

	cfg := config.Default()
	cfg.DB.Path = fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	cfg.Analytics.Timezone = "UTC"

	rec := &events.Recorder{}
	a, err := app.New(context.Background(), cfg, nil, app.WithPublisher(rec))
	require.NoError(t, err)

	handler := a.Handler()
	mcpServer := mcp.NewServer(mcp.Config{Handler: handler})
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{Stateless: true},
	)

	server := httptest.NewServer(transport.NewServer(handler, transport.Options{
		MCP:    mcpHandler,
		Health: a.Health,
	}))

	t.Cleanup(func() {
		server.Close()
		_ = a.Close()
	})

	return &TestServer{Server: server, App: a, Events: rec}
}
