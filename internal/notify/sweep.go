// Package notify turns the ledger into notification events. It decides
// what is worth mentioning; consumers decide whether to alert anyone.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/analytics"
	"github.com/ganot/quilt-tracker/internal/domain/quilt"
	"github.com/ganot/quilt-tracker/internal/domain/usage"
)

// Notification subjects.
const (
	SubjectRecommendation = "notifications.recommendation"
	SubjectRetrospective  = "notifications.retrospective"
)

type QuiltLister interface {
	List(ctx context.Context, opts quilt.ListOptions) ([]quilt.Quilt, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, quiltID string) (*usage.ReconcileResult, error)
}

type StatsReader interface {
	GetStats(ctx context.Context, quiltID string, asOf *time.Time) (*analytics.UsageStats, error)
	GetRetrospective(ctx context.Context, today *analytics.CalendarDate) (*analytics.Retrospective, error)
}

type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

type Dependencies struct {
	Quilts    QuiltLister
	Reconcile Reconciler
	Stats     StatsReader
	Publisher Publisher
	Location  *time.Location
	Logger    *slog.Logger
}

// Sweeper runs one notification pass over every quilt.
type Sweeper struct {
	quilts    QuiltLister
	reconcile Reconciler
	stats     StatsReader
	publisher Publisher
	loc       *time.Location
	logger    *slog.Logger
}

func NewSweeper(deps Dependencies) *Sweeper {
	s := &Sweeper{
		quilts:    deps.Quilts,
		reconcile: deps.Reconcile,
		stats:     deps.Stats,
		publisher: deps.Publisher,
		loc:       deps.Location,
		logger:    deps.Logger,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// RecommendationNotice is published for quilts that are not in the KEEP tier.
type RecommendationNotice struct {
	QuiltID          string                   `json:"quilt_id"`
	QuiltName        string                   `json:"quilt_name"`
	Recommendation   analytics.Recommendation `json:"recommendation"`
	UsesLastYear     int                      `json:"uses_last_year"`
	DaysSinceLastUse *int                     `json:"days_since_last_use"`
	AsOf             time.Time                `json:"as_of"`
}

// RetrospectiveNotice lists what was in use on this day in earlier years.
type RetrospectiveNotice struct {
	Date    string               `json:"date"`
	Entries []RetrospectiveEntry `json:"entries"`
}

type RetrospectiveEntry struct {
	QuiltID   string    `json:"quilt_id"`
	QuiltName string    `json:"quilt_name"`
	PeriodID  string    `json:"period_id"`
	Year      int       `json:"year"`
	StartTime time.Time `json:"start_time"`
}

// Report summarizes a sweep.
type Report struct {
	Quilts          int `json:"quilts"`
	Repaired        int `json:"repaired"`
	Recommendations int `json:"recommendations"`
	Retrospective   int `json:"retrospective_entries"`
	Failed          int `json:"failed"`
}

// Run reconciles each quilt, publishes a recommendation notice for every
// quilt outside the KEEP tier, then publishes one retrospective notice.
// Failures for a single quilt are logged and counted; the sweep continues.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (Report, error) {
	var report Report

	quilts, err := s.quilts.List(ctx, quilt.ListOptions{})
	if err != nil {
		return report, fmt.Errorf("listing quilts: %w", err)
	}

	names := make(map[string]string, len(quilts))
	for _, q := range quilts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		names[q.ID] = q.Name
		report.Quilts++

		published, repaired, err := s.sweepQuilt(ctx, q, now)
		if repaired {
			report.Repaired++
		}
		if err != nil {
			report.Failed++
			s.logger.Warn("sweep failed for quilt", "quilt_id", q.ID, "error", err)
			continue
		}
		if published {
			report.Recommendations++
		}
	}

	today := analytics.DateOf(now.In(s.loc))
	retro, err := s.stats.GetRetrospective(ctx, &today)
	if err != nil {
		return report, fmt.Errorf("loading retrospective: %w", err)
	}

	notice := RetrospectiveNotice{Date: retro.Date, Entries: make([]RetrospectiveEntry, 0, len(retro.Periods))}
	for _, p := range retro.Periods {
		notice.Entries = append(notice.Entries, RetrospectiveEntry{
			QuiltID:   p.QuiltID,
			QuiltName: names[p.QuiltID],
			PeriodID:  p.ID,
			Year:      p.StartTime.Year(),
			StartTime: p.StartTime,
		})
	}
	report.Retrospective = len(notice.Entries)
	if err := s.publisher.Publish(ctx, SubjectRetrospective, notice); err != nil {
		return report, fmt.Errorf("publishing retrospective: %w", err)
	}

	s.logger.Info("notification sweep finished",
		"quilts", report.Quilts,
		"repaired", report.Repaired,
		"recommendations", report.Recommendations,
		"retrospective_entries", report.Retrospective,
		"failed", report.Failed,
	)
	return report, nil
}

func (s *Sweeper) sweepQuilt(ctx context.Context, q quilt.Quilt, now time.Time) (published, repaired bool, err error) {
	rec, err := s.reconcile.Reconcile(ctx, q.ID)
	if err != nil {
		if errors.Is(err, quilt.ErrQuiltNotFound) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("reconciling: %w", err)
	}
	repaired = rec.Repaired
	if rec.Issue != "" {
		s.logger.Info("ledger check", "quilt_id", q.ID, "issue", rec.Issue, "repaired", rec.Repaired)
	}

	stats, err := s.stats.GetStats(ctx, q.ID, &now)
	if err != nil {
		return false, repaired, fmt.Errorf("computing stats: %w", err)
	}
	if stats.Recommendation == analytics.RecommendationKeep {
		return false, repaired, nil
	}

	notice := RecommendationNotice{
		QuiltID:          q.ID,
		QuiltName:        q.Name,
		Recommendation:   stats.Recommendation,
		UsesLastYear:     stats.Window(analytics.Window365Days).Count,
		DaysSinceLastUse: stats.DaysSinceLastUse,
		AsOf:             stats.AsOf,
	}
	if err := s.publisher.Publish(ctx, SubjectRecommendation, notice); err != nil {
		return false, repaired, fmt.Errorf("publishing recommendation: %w", err)
	}
	return true, repaired, nil
}
