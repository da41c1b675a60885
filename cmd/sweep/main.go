// Command sweep runs one notification pass and exits. Schedule it with cron
// or a systemd timer.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ganot/quilt-tracker/internal/app"
	"github.com/ganot/quilt-tracker/internal/config"
	"github.com/ganot/quilt-tracker/internal/notify"
)

func main() {
	at := flag.String("at", "", "RFC 3339 time to evaluate at (default now)")
	timeout := flag.Duration("timeout", 5*time.Minute, "abort the sweep after this long")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.Log, os.Stderr)

	now := time.Now()
	if *at != "" {
		now, err = time.Parse(time.RFC3339, *at)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -at: %v\n", err)
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, cfg, logger, now); err != nil {
		logger.Error("sweep failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, now time.Time) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	sweeper := notify.NewSweeper(notify.Dependencies{
		Quilts:    a.Quilts,
		Reconcile: a.Usage,
		Stats:     a.Analytics,
		Publisher: a.Publisher,
		Location:  loc,
		Logger:    logger,
	})
	report, err := sweeper.Run(ctx, now)
	if err != nil {
		return err
	}

	return json.NewEncoder(os.Stdout).Encode(report)
}
