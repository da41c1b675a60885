package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const maxLoggedPayload = 2048

// trafficLoggingMiddleware logs MCP messages at debug level. Tool calls
// carry the tool name, the quilt they target and, on failure, the API
// error code so a transition can be followed through the log.
func trafficLoggingMiddleware(logger *slog.Logger, direction string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if logger == nil || !logger.Enabled(ctx, slog.LevelDebug) {
				return next(ctx, method, req)
			}

			attrs := []any{"direction", direction, "method", method}
			if id := sessionID(req); id != "" {
				attrs = append(attrs, "session_id", id)
			}
			if call, ok := req.(*sdkmcp.CallToolRequest); ok && call.Params != nil {
				attrs = append(attrs, "tool", call.Params.Name)
				if quiltID := argumentQuiltID(call.Params.Arguments); quiltID != "" {
					attrs = append(attrs, "quilt_id", quiltID)
				}
			}
			logger.Debug("mcp request", append(attrs, "params", truncate(encodePayload(requestParams(req)), maxLoggedPayload))...)

			result, err := next(ctx, method, req)
			if strings.HasPrefix(method, "notifications/") {
				return result, err
			}

			switch {
			case err != nil:
				logger.Debug("mcp response", append(attrs, "error", err)...)
			case isToolError(result):
				logger.Debug("mcp response", append(attrs, "error_code", toolErrorCode(result))...)
			default:
				logger.Debug("mcp response", append(attrs, "result", truncate(encodePayload(result), maxLoggedPayload))...)
			}
			return result, err
		}
	}
}

// sessionID and requestParams tolerate requests whose session or params
// accessors panic on zero values.
func sessionID(req sdkmcp.Request) (id string) {
	if req == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()
	if session := req.GetSession(); session != nil {
		return session.ID()
	}
	return ""
}

func requestParams(req sdkmcp.Request) (params any) {
	if req == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			params = nil
		}
	}()
	return req.GetParams()
}

func argumentQuiltID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var args struct {
		QuiltID string `json:"quilt_id"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return ""
	}
	return args.QuiltID
}

func isToolError(result sdkmcp.Result) bool {
	r, ok := result.(*sdkmcp.CallToolResult)
	return ok && r != nil && r.IsError
}

// toolErrorCode reads the code out of an APIError text payload.
func toolErrorCode(result sdkmcp.Result) string {
	r := result.(*sdkmcp.CallToolResult)
	for _, c := range r.Content {
		text, ok := c.(*sdkmcp.TextContent)
		if !ok {
			continue
		}
		var payload struct {
			Code string `json:"code"`
		}
		if json.Unmarshal([]byte(text.Text), &payload) == nil && payload.Code != "" {
			return payload.Code
		}
	}
	return "unknown"
}

func encodePayload(payload any) string {
	if payload == nil {
		return "<nil>"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%T", payload)
	}
	return string(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
