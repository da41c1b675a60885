// Command migrate-ledger copies usage history from the legacy
// usage_records and current_usage tables into usage_periods.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ganot/quilt-tracker/internal/app"
	"github.com/ganot/quilt-tracker/internal/config"
	"github.com/ganot/quilt-tracker/internal/migration"
	"github.com/ganot/quilt-tracker/internal/sqlite"
)

// errUnsupportedDriver is returned for stores that never held the legacy tables.
var errUnsupportedDriver = errors.New("legacy ledger migration only supports the sqlite store")

// ledgerPath picks the SQLite file to migrate. The -db flag overrides config.
func ledgerPath(db config.DBConfig, override string) (string, error) {
	if db.Driver != "sqlite" {
		return "", errUnsupportedDriver
	}
	if override != "" {
		return override, nil
	}
	return db.Path, nil
}

func main() {
	dryRun := flag.Bool("dry-run", false, "report what would change without committing")
	dbPath := flag.String("db", "", "SQLite database path (default from config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.Log, os.Stderr)

	path, err := ledgerPath(cfg.DB, *dbPath)
	if err != nil {
		logger.Error("cannot migrate this store", "driver", cfg.DB.Driver, "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.New(path)
	if err != nil {
		logger.Error("failed to open database", "path", path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	report, err := migration.Run(ctx, db, migration.Options{DryRun: *dryRun, Logger: logger})
	if encErr := json.NewEncoder(os.Stdout).Encode(report); encErr != nil {
		logger.Error("failed to write report", "error", encErr)
	}
	if err != nil {
		logger.Error("migration failed; nothing was committed", "error", err)
		db.Close()
		os.Exit(1)
	}
}
