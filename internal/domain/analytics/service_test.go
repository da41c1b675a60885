package analytics

import (
	"context"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/quilt"
	"github.com/ganot/quilt-tracker/internal/domain/usage"
	"github.com/ganot/quilt-tracker/internal/repository"
	"github.com/stretchr/testify/require"
)

type fakePeriods struct {
	byQuilt map[string][]usage.UsagePeriod
	calls   int
	err     error
}

func (f *fakePeriods) ListPeriods(_ context.Context, quiltID string) ([]usage.UsagePeriod, error) {
	f.calls++
	return f.byQuilt[quiltID], f.err
}

func (f *fakePeriods) ListAllPeriods(context.Context) ([]usage.UsagePeriod, error) {
	f.calls++
	var all []usage.UsagePeriod
	for _, ps := range f.byQuilt {
		all = append(all, ps...)
	}
	return all, f.err
}

type fakeQuilts map[string]*quilt.Quilt

func (f fakeQuilts) Get(_ context.Context, id string) (*quilt.Quilt, error) {
	q, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return q, nil
}

type mapCache struct {
	entries map[string][]byte
	failGet bool
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if c.failGet {
		return nil, false, errors.New("cache down")
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.entries[key] = value
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, pattern string) (int, error) {
	n := 0
	for k := range c.entries {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}

func newTestService(periods *fakePeriods, cache Cache) *Service {
	quilts := fakeQuilts{
		"q1": {ID: "q1", Name: "Wedding ring", Status: quilt.StatusAvailable},
		"q2": {ID: "q2", Name: "Log cabin", Status: quilt.StatusInUse},
	}
	svc := NewService(periods, quilts, cache, Config{CacheTTL: time.Minute, Location: time.UTC}, nil)
	svc.SetClock(func() time.Time { return time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC) })
	return svc
}

func TestService_GetStats(t *testing.T) {
	end := time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC)
	periods := &fakePeriods{byQuilt: map[string][]usage.UsagePeriod{
		"q1": {{ID: "p1", QuiltID: "q1", StartTime: end.Add(-3 * usage.Day), EndTime: &end}},
	}}
	cache := &mapCache{entries: map[string][]byte{}}
	svc := newTestService(periods, cache)
	ctx := context.Background()

	stats, err := svc.GetStats(ctx, "q1", nil)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Window(Window30Days).Count)
	require.Equal(t, 3, stats.Window(Window30Days).DaysUsed)
	require.Contains(t, cache.entries, "stats:q1:latest")

	again, err := svc.GetStats(ctx, "q1", nil)
	require.NoError(t, err)
	require.Equal(t, 1, periods.calls, "second call served from cache")
	require.Equal(t, stats.Recommendation, again.Recommendation)
	require.True(t, stats.AsOf.Equal(again.AsOf))

	n, err := cache.Invalidate(ctx, "stats:q1:*")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = svc.GetStats(ctx, "q1", nil)
	require.NoError(t, err)
	require.Equal(t, 2, periods.calls)
}

func TestService_GetStats_ExplicitAsOfNotCached(t *testing.T) {
	periods := &fakePeriods{byQuilt: map[string][]usage.UsagePeriod{}}
	cache := &mapCache{entries: map[string][]byte{}}
	svc := newTestService(periods, cache)

	asOf := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	stats, err := svc.GetStats(context.Background(), "q1", &asOf)
	require.NoError(t, err)
	require.True(t, stats.AsOf.Equal(asOf))
	require.Empty(t, cache.entries)
	require.Equal(t, RecommendationConsiderRemoval, stats.Recommendation)
}

func TestService_GetStats_UnknownQuilt(t *testing.T) {
	svc := newTestService(&fakePeriods{}, nil)

	_, err := svc.GetStats(context.Background(), "missing", nil)
	require.ErrorIs(t, err, quilt.ErrQuiltNotFound)
}

func TestService_GetStats_CacheFailureBypassed(t *testing.T) {
	periods := &fakePeriods{byQuilt: map[string][]usage.UsagePeriod{}}
	svc := newTestService(periods, &mapCache{entries: map[string][]byte{}, failGet: true})

	_, err := svc.GetStats(context.Background(), "q1", nil)
	require.NoError(t, err)
	_, err = svc.GetStats(context.Background(), "q1", nil)
	require.NoError(t, err)
	require.Equal(t, 2, periods.calls)
}

func TestService_GetStats_StorageError(t *testing.T) {
	svc := newTestService(&fakePeriods{err: errors.New("disk")}, nil)

	_, err := svc.GetStats(context.Background(), "q1", nil)
	require.Error(t, err)
}

func TestService_GetRetrospective(t *testing.T) {
	end := time.Date(2023, time.January, 20, 0, 0, 0, 0, time.UTC)
	periods := &fakePeriods{byQuilt: map[string][]usage.UsagePeriod{
		"q1": {{ID: "old", QuiltID: "q1", StartTime: time.Date(2023, time.January, 10, 0, 0, 0, 0, time.UTC), EndTime: &end}},
		"q2": {{ID: "open", QuiltID: "q2", StartTime: time.Date(2024, time.January, 15, 8, 0, 0, 0, time.UTC)}},
	}}
	cache := &mapCache{entries: map[string][]byte{}}
	svc := newTestService(periods, cache)
	ctx := context.Background()

	retro, err := svc.GetRetrospective(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, "2025-01-15", retro.Date)
	require.Equal(t, []string{"open", "old"}, ids(retro.Periods))
	require.Contains(t, cache.entries, "retrospective:2025-01-15:0")

	_, err = svc.GetRetrospective(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 1, periods.calls)

	// The still-open period covers July 1 2024.
	summer := CalendarDate{Year: 2025, Month: time.July, Day: 1}
	retro, err = svc.GetRetrospective(ctx, &summer)
	require.NoError(t, err)
	require.Equal(t, []string{"open"}, ids(retro.Periods))

	newYear := CalendarDate{Year: 2024, Month: time.January, Day: 1}
	retro, err = svc.GetRetrospective(ctx, &newYear)
	require.NoError(t, err)
	require.Empty(t, retro.Periods)
	require.NotNil(t, retro.Periods)
}

func TestService_GetRetrospective_UsesConfiguredZone(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	// 2024-01-16 02:00 UTC is still Jan 15 in UTC-5.
	start := time.Date(2024, time.January, 16, 2, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	periods := &fakePeriods{byQuilt: map[string][]usage.UsagePeriod{
		"q1": {{ID: "late", QuiltID: "q1", StartTime: start, EndTime: &end}},
	}}
	svc := NewService(periods, fakeQuilts{}, nil, Config{Location: loc}, nil)

	today := CalendarDate{Year: 2025, Month: time.January, Day: 15}
	retro, err := svc.GetRetrospective(context.Background(), &today)
	require.NoError(t, err)
	require.Equal(t, []string{"late"}, ids(retro.Periods))
}
