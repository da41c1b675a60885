package quilt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/activity"
	"github.com/ganot/quilt-tracker/internal/repository"
	"github.com/google/uuid"
)

// Service handles quilt administration. Status changes into or out of
// IN_USE go through the usage coordinator, never through this service.
type Service struct {
	repo       Repository
	activities ActivityRepository
	logger     *slog.Logger
}

// NewService creates a new quilt service. activities may be nil.
func NewService(repo Repository, activities ActivityRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, activities: activities, logger: logger}
}

// CreateRequest defines quilt creation inputs.
type CreateRequest struct {
	ID       string
	Name     string
	Season   string
	Location string
	Notes    string
	Status   Status
}

// Create registers a new quilt. New quilts may not start IN_USE since no
// usage period would back that status.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Quilt, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrInvalidInput
	}

	status := req.Status
	if status == "" {
		status = StatusAvailable
	}
	if !status.Valid() || status == StatusInUse {
		return nil, ErrInvalidStatus
	}

	id := req.ID
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	q := &Quilt{
		ID:        id,
		Name:      strings.TrimSpace(req.Name),
		Season:    req.Season,
		Location:  req.Location,
		Notes:     req.Notes,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, q); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: id %s already exists", ErrInvalidInput, id)
		}
		return nil, fmt.Errorf("creating quilt: %w", err)
	}

	if s.activities != nil {
		entry := &activity.ActivityEntry{
			QuiltID:      &q.ID,
			ActivityType: activity.TypeQuiltCreated,
			Summary:      fmt.Sprintf("quilt %q created as %s", q.Name, q.Status),
			CreatedAt:    now,
		}
		if err := s.activities.Log(ctx, entry); err != nil {
			s.logger.Warn("logging activity failed", "quilt_id", q.ID, "error", err)
		}
	}

	s.logger.Info("quilt created", "quilt_id", q.ID, "status", q.Status)
	return q, nil
}

// Get fetches a quilt by ID.
func (s *Service) Get(ctx context.Context, id string) (*Quilt, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuiltNotFound
		}
		return nil, fmt.Errorf("getting quilt: %w", err)
	}
	return q, nil
}

// List returns quilts matching the options.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Quilt, error) {
	for _, st := range opts.Statuses {
		if !st.Valid() {
			return nil, ErrInvalidStatus
		}
	}
	return s.repo.List(ctx, opts)
}
