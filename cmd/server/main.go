package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ganot/quilt-tracker/internal/app"
	"github.com/ganot/quilt-tracker/internal/config"
	"github.com/ganot/quilt-tracker/internal/mcp"
	"github.com/ganot/quilt-tracker/internal/transport"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if logPath := os.Getenv("QUILTS_LOG_PATH"); logPath != "" {
		file, err := app.OpenLogFile(logPath, app.DefaultLogLimit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = file
		}
	}
	logger := app.NewLogger(cfg.Log, logWriter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	handler := a.Handler()
	mcpServer := mcp.NewServer(mcp.Config{
		Handler: handler,
		Version: version,
		Logger:  logger,
	})

	if cfg.Transport.Mode == "stdio" {
		err = runStdioMode(ctx, logger, mcpServer)
	} else {
		err = runHTTPMode(ctx, logger, cfg.Server, mcpServer, handler, a.Health)
	}
	if err != nil {
		logger.Error("server error", "error", err)
		a.Close()
		os.Exit(1)
	}
}

func runStdioMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport")

	// Run blocks until stdin closes or the context is canceled.
	err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutting down")
	return nil
}

func runHTTPMode(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.ServerConfig,
	mcpServer *sdkmcp.Server,
	handler transport.Handler,
	health func(context.Context) error,
) error {
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{
			Stateless:      false,
			SessionTimeout: 30 * time.Minute,
		},
	)

	router := transport.NewServer(handler, transport.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		MCP:            mcpHandler,
		Health:         health,
		Logger:         logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
