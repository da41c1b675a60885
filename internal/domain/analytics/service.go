package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/quilt"
	"github.com/ganot/quilt-tracker/internal/domain/usage"
	"github.com/ganot/quilt-tracker/internal/repository"
)

// Config tunes the read service.
type Config struct {
	CacheTTL      time.Duration
	LookbackYears int
	Location      *time.Location
}

// Retrospective lists what was in use on this calendar day in earlier years.
type Retrospective struct {
	Date          string              `json:"date"`
	LookbackYears int                 `json:"lookback_years"`
	Periods       []usage.UsagePeriod `json:"periods"`
}

// Service serves usage statistics and retrospectives from ledger snapshots.
// The cache wraps the pure computations; results are identical without it.
type Service struct {
	periods PeriodReader
	quilts  QuiltReader
	cache   Cache
	cfg     Config
	logger  *slog.Logger
	nowFn   func() time.Time
}

// NewService creates a new analytics service. cache may be nil.
func NewService(periods PeriodReader, quilts QuiltReader, cache Cache, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Service{
		periods: periods,
		quilts:  quilts,
		cache:   cache,
		cfg:     cfg,
		logger:  logger,
		nowFn:   time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.nowFn = now
}

// GetStats computes usage statistics for a quilt. Only requests without an
// explicit asOf are cached.
func (s *Service) GetStats(ctx context.Context, quiltID string, asOf *time.Time) (*UsageStats, error) {
	if _, err := s.quilts.Get(ctx, quiltID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, quilt.ErrQuiltNotFound
		}
		return nil, fmt.Errorf("loading quilt: %w", err)
	}

	key := ""
	if asOf == nil {
		key = "stats:" + quiltID + ":latest"
		var cached UsageStats
		if s.readCache(ctx, key, &cached) {
			return &cached, nil
		}
	}

	at := s.nowFn()
	if asOf != nil {
		at = *asOf
	}

	periods, err := s.periods.ListPeriods(ctx, quiltID)
	if err != nil {
		return nil, fmt.Errorf("listing usage periods: %w", err)
	}

	stats := ComputeStats(quiltID, periods, at)
	if key != "" {
		s.writeCache(ctx, key, stats)
	}
	return &stats, nil
}

// GetRetrospective returns periods that covered today's month/day in
// previous years. today defaults to the current date in the configured zone.
func (s *Service) GetRetrospective(ctx context.Context, today *CalendarDate) (*Retrospective, error) {
	date := DateOf(s.nowFn().In(s.cfg.Location))
	if today != nil {
		date = *today
	}

	key := fmt.Sprintf("retrospective:%s:%d", date, s.cfg.LookbackYears)
	var cached Retrospective
	if s.readCache(ctx, key, &cached) {
		return &cached, nil
	}

	periods, err := s.periods.ListAllPeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing usage periods: %w", err)
	}

	local := make([]usage.UsagePeriod, len(periods))
	for i, p := range periods {
		p.StartTime = p.StartTime.In(s.cfg.Location)
		if p.EndTime != nil {
			end := p.EndTime.In(s.cfg.Location)
			p.EndTime = &end
		}
		local[i] = p
	}

	result := Retrospective{
		Date:          date.String(),
		LookbackYears: s.cfg.LookbackYears,
		Periods:       FindSameDayInPastYears(local, date, s.cfg.LookbackYears),
	}
	if result.Periods == nil {
		result.Periods = []usage.UsagePeriod{}
	}
	s.writeCache(ctx, key, result)
	return &result, nil
}

func (s *Service) readCache(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Service) writeCache(ctx context.Context, key string, value any) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("encoding cache entry failed", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
}
