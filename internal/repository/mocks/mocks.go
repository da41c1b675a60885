package mocks

import (
	"context"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/activity"
	"github.com/ganot/quilt-tracker/internal/domain/quilt"
	"github.com/ganot/quilt-tracker/internal/domain/usage"
	"github.com/stretchr/testify/mock"
)

// QuiltRepository is a mock for quilt.Repository.
type QuiltRepository struct {
	mock.Mock
}

func (m *QuiltRepository) Create(ctx context.Context, q *quilt.Quilt) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

func (m *QuiltRepository) Get(ctx context.Context, id string) (*quilt.Quilt, error) {
	args := m.Called(ctx, id)
	if q, ok := args.Get(0).(*quilt.Quilt); ok {
		return q, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QuiltRepository) List(ctx context.Context, opts quilt.ListOptions) ([]quilt.Quilt, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]quilt.Quilt); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QuiltRepository) UpdateStatus(ctx context.Context, id string, from, to quilt.Status, at time.Time) error {
	args := m.Called(ctx, id, from, to, at)
	return args.Error(0)
}

// LedgerStore is a mock for usage.LedgerStore.
type LedgerStore struct {
	mock.Mock
}

func (m *LedgerStore) OpenPeriod(ctx context.Context, period *usage.UsagePeriod) error {
	args := m.Called(ctx, period)
	return args.Error(0)
}

func (m *LedgerStore) ClosePeriod(ctx context.Context, periodID string, endTime time.Time) (*usage.UsagePeriod, error) {
	args := m.Called(ctx, periodID, endTime)
	if p, ok := args.Get(0).(*usage.UsagePeriod); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LedgerStore) FindOpenPeriod(ctx context.Context, quiltID string) (*usage.UsagePeriod, error) {
	args := m.Called(ctx, quiltID)
	if p, ok := args.Get(0).(*usage.UsagePeriod); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LedgerStore) ListPeriods(ctx context.Context, quiltID string) ([]usage.UsagePeriod, error) {
	args := m.Called(ctx, quiltID)
	if list, ok := args.Get(0).([]usage.UsagePeriod); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LedgerStore) ListAllPeriods(ctx context.Context) ([]usage.UsagePeriod, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]usage.UsagePeriod); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// Publisher is a mock for usage.Publisher.
type Publisher struct {
	mock.Mock
}

func (m *Publisher) Publish(ctx context.Context, subject string, payload any) error {
	args := m.Called(ctx, subject, payload)
	return args.Error(0)
}

// CacheInvalidator is a mock for usage.CacheInvalidator.
type CacheInvalidator struct {
	mock.Mock
}

func (m *CacheInvalidator) Invalidate(ctx context.Context, pattern string) (int, error) {
	args := m.Called(ctx, pattern)
	return args.Int(0), args.Error(1)
}
