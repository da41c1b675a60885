// Package app assembles stores, caches, publishers and services from
// configuration. The binaries under cmd/ share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ganot/quilt-tracker/internal/cache"
	"github.com/ganot/quilt-tracker/internal/config"
	"github.com/ganot/quilt-tracker/internal/domain/activity"
	"github.com/ganot/quilt-tracker/internal/domain/analytics"
	"github.com/ganot/quilt-tracker/internal/domain/quilt"
	"github.com/ganot/quilt-tracker/internal/domain/usage"
	"github.com/ganot/quilt-tracker/internal/events"
	"github.com/ganot/quilt-tracker/internal/mcp"
	"github.com/ganot/quilt-tracker/internal/postgres"
	"github.com/ganot/quilt-tracker/internal/sqlite"
)

// Publisher is the event sink shared by the coordinator and the sweep.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

type analyticsCache interface {
	analytics.Cache
	usage.CacheInvalidator
}

const flushTimeout = 2 * time.Second

type quiltStore interface {
	quilt.Repository
	usage.QuiltStore
	analytics.QuiltReader
}

type ledgerStore interface {
	usage.LedgerStore
	analytics.PeriodReader
}

type stores struct {
	quilts     quiltStore
	ledger     ledgerStore
	activities activity.Repository
}

// App holds the wired services.
type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Quilts    *quilt.Service
	Usage     *usage.Service
	Analytics *analytics.Service
	Activity  *activity.Service
	Publisher Publisher
	// SQLite is set when the sqlite driver is configured.
	SQLite *sqlite.DB

	health  []func(ctx context.Context) error
	closers []func() error
}

// Option customizes New.
type Option func(*App)

// WithPublisher replaces the configured event publisher.
func WithPublisher(p Publisher) Option {
	return func(a *App) {
		a.Publisher = p
	}
}

// New opens the configured store, cache and event publisher and builds the
// domain services on top of them.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &App{Config: cfg, Logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	st, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	c, err := a.openCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := a.openPublisher(); err != nil {
		a.Close()
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		a.Close()
		return nil, err
	}

	usageOpts := []usage.Option{
		usage.WithPublisher(a.Publisher),
		usage.WithStatusRetry(cfg.Usage.StatusWriteAttempts, cfg.Usage.StatusWriteBackoff),
	}
	var readCache analytics.Cache
	if c != nil {
		usageOpts = append(usageOpts, usage.WithCacheInvalidator(c))
		readCache = c
	}

	a.Activity = activity.NewService(st.activities, logger)
	a.Quilts = quilt.NewService(st.quilts, st.activities, logger)
	a.Usage = usage.NewService(st.quilts, st.ledger, st.activities, logger, usageOpts...)
	a.Analytics = analytics.NewService(st.ledger, st.quilts, readCache, analytics.Config{
		CacheTTL:      cfg.Cache.TTL,
		LookbackYears: cfg.Analytics.RetrospectiveLookbackYears,
		Location:      loc,
	}, logger)

	return a, nil
}

// Handler returns the method dispatcher over the app's services.
func (a *App) Handler() *mcp.Handler {
	return mcp.NewHandler(mcp.Services{
		Quilts:    a.Quilts,
		Usage:     a.Usage,
		Analytics: a.Analytics,
		Activity:  a.Activity,
	})
}

// Health checks every backing service that supports it.
func (a *App) Health(ctx context.Context) error {
	var errs []error
	for _, check := range a.health {
		if err := check(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openStore(ctx context.Context) (*stores, error) {
	switch a.Config.DB.Driver {
	case "postgres":
		db, err := postgres.New(ctx, a.Config.DB.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := db.InitSchema(ctx); err != nil {
			return nil, err
		}
		a.health = append(a.health, db.PingContext)
		a.Logger.Info("using postgres store")
		return &stores{
			quilts:     postgres.NewQuiltRepository(db),
			ledger:     postgres.NewUsageRepository(db),
			activities: postgres.NewActivityRepository(db),
		}, nil
	default:
		if err := ensureDBDir(a.Config.DB.Path); err != nil {
			return nil, fmt.Errorf("failed to prepare database path: %w", err)
		}
		db, err := sqlite.New(a.Config.DB.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := db.RunMigrations(); err != nil {
			return nil, err
		}
		a.SQLite = db
		a.health = append(a.health, db.PingContext)
		a.Logger.Info("using sqlite store", "path", a.Config.DB.Path)
		return &stores{
			quilts:     sqlite.NewQuiltRepository(db),
			ledger:     sqlite.NewUsageRepository(db),
			activities: sqlite.NewActivityRepository(db),
		}, nil
	}
}

func (a *App) openCache(ctx context.Context) (analyticsCache, error) {
	switch a.Config.Cache.Driver {
	case "none":
		return nil, nil
	case "redis":
		client, err := cache.Connect(ctx, a.Config.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		r := cache.NewRedis(client, "quilts:")
		a.closers = append(a.closers, r.Close)
		if err := r.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis unreachable: %w", err)
		}
		a.health = append(a.health, r.Ping)
		return r, nil
	default:
		return cache.NewMemory(), nil
	}
}

func (a *App) openPublisher() error {
	if a.Publisher != nil {
		return nil
	}
	if a.Config.Events.NATSURL == "" {
		a.Publisher = events.Noop{}
		return nil
	}
	conn, err := events.Connect(a.Config.Events.NATSURL, a.Logger)
	if err != nil {
		return err
	}
	pub := events.NewNATSPublisher(conn, a.Config.Events.SubjectPrefix, a.Logger)
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := pub.Flush(ctx); err != nil {
			a.Logger.Warn("flushing events failed", "error", err)
		}
		conn.Close()
		return nil
	})
	a.Publisher = pub
	return nil
}

// NewLogger builds the text logger used by every binary.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLogLevel(cfg.Level),
	}))
}

func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ensureDBDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
