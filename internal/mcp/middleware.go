package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// recoveryMiddleware converts handler panics into internal errors.
func recoveryMiddleware(logger *slog.Logger) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (result sdkmcp.Result, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("mcp handler panic", "method", method, "panic", r, "stack", string(debug.Stack()))
					result = nil
					err = fmt.Errorf("internal error handling %s", method)
				}
			}()
			return next(ctx, method, req)
		}
	}
}

// timingMiddleware logs the duration of tool calls.
func timingMiddleware(logger *slog.Logger) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if !strings.HasPrefix(method, "tools/") {
				return next(ctx, method, req)
			}
			start := time.Now()
			result, err := next(ctx, method, req)
			attrs := []any{"method", method, "tool", toolName(req), "duration", time.Since(start)}
			if err != nil {
				logger.Warn("mcp call failed", append(attrs, "error", err)...)
			} else {
				logger.Info("mcp call", attrs...)
			}
			return result, err
		}
	}
}

func toolName(req sdkmcp.Request) string {
	call, ok := req.(*sdkmcp.CallToolRequest)
	if !ok || call.Params == nil {
		return ""
	}
	return call.Params.Name
}
