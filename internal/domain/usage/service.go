package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ganot/quilt-tracker/internal/domain/activity"
	"github.com/ganot/quilt-tracker/internal/domain/quilt"
	"github.com/ganot/quilt-tracker/internal/repository"
	"github.com/google/uuid"
)

const (
	defaultStatusAttempts = 3
	defaultStatusBackoff  = 50 * time.Millisecond
	defaultRepairGrace    = 30 * time.Second

	// maxStatusRaces bounds how often one transition re-reads a quilt whose
	// status another writer changed underneath it.
	maxStatusRaces = 3
)

// errStatusMoved reports that the stored status no longer matches the one a
// write was based on.
var errStatusMoved = errors.New("quilt status changed concurrently")

// Service coordinates quilt status and the usage ledger. It is the only
// component that opens or closes usage periods.
type Service struct {
	quilts      QuiltStore
	ledger      LedgerStore
	activities  ActivityRepository
	publisher   Publisher
	invalidator CacheInvalidator
	logger      *slog.Logger

	nowFn          func() time.Time
	statusAttempts int
	statusBackoff  time.Duration
	repairGrace    time.Duration
}

// NewService creates a new usage coordinator. activities may be nil.
func NewService(
	quilts QuiltStore,
	ledger LedgerStore,
	activities ActivityRepository,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		quilts:         quilts,
		ledger:         ledger,
		activities:     activities,
		logger:         logger,
		nowFn:          time.Now,
		statusAttempts: defaultStatusAttempts,
		statusBackoff:  defaultStatusBackoff,
		repairGrace:    defaultRepairGrace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TransitionRequest describes a status change. OccurredAt defaults to now
// and may be backdated, never set in the future.
type TransitionRequest struct {
	QuiltID    string
	ToStatus   quilt.Status
	OccurredAt *time.Time
	Note       *string
}

// Transition moves a quilt to a new status, opening or closing a usage
// period when the change enters or leaves IN_USE.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if strings.TrimSpace(req.QuiltID) == "" {
		return nil, ErrInvalidInput
	}
	if !req.ToStatus.Valid() {
		return nil, quilt.ErrInvalidStatus
	}

	now := s.nowFn()
	at := now
	if req.OccurredAt != nil {
		at = *req.OccurredAt
		if at.After(now) {
			return nil, fmt.Errorf("%w: %s is in the future", ErrInvalidInterval, at.Format(time.RFC3339))
		}
	}
	at = at.UTC()

	current, err := s.loadQuilt(ctx, req.QuiltID)
	if err != nil {
		return nil, err
	}

	for race := 1; ; race++ {
		result, err := s.dispatch(ctx, current, req.ToStatus, at, stringValue(req.Note))
		if !errors.Is(err, errStatusMoved) {
			return result, err
		}
		if race >= maxStatusRaces {
			return nil, fmt.Errorf("writing quilt status: %w: %w", ErrStorageUnavailable, err)
		}
		s.logger.Info("quilt status changed during transition; re-reading",
			"quilt_id", req.QuiltID, "expected", current.Status, "to", req.ToStatus)
		if current, err = s.loadQuilt(ctx, req.QuiltID); err != nil {
			return nil, err
		}
		if req.OccurredAt == nil {
			// The request now applies after the change that beat it.
			at = s.nowFn().UTC()
		}
	}
}

// dispatch applies one transition attempt against the quilt as last read.
// It returns errStatusMoved when it made no ledger change and the status it
// read is stale, so the caller can re-read and try again.
func (s *Service) dispatch(ctx context.Context, current *quilt.Quilt, to quilt.Status, at time.Time, note string) (*TransitionResult, error) {
	from := current.Status
	switch {
	case from == to && to == quilt.StatusInUse:
		return nil, ErrAlreadyInUse
	case from == to:
		return &TransitionResult{Quilt: current}, nil
	case to == quilt.StatusInUse:
		return s.beginUse(ctx, current, at, note)
	case from == quilt.StatusInUse:
		return s.endUse(ctx, current, to, at)
	}

	if from.IsIdle() && to.IsIdle() {
		s.logger.Debug("moving idle quilt", "quilt_id", current.ID, "from", from, "to", to)
	}
	updated, err := s.writeStatus(ctx, current, to)
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, from, updated, nil, at)
	return &TransitionResult{Quilt: updated}, nil
}

func (s *Service) beginUse(ctx context.Context, current *quilt.Quilt, at time.Time, note string) (*TransitionResult, error) {
	period := &UsagePeriod{
		ID:        uuid.NewString(),
		QuiltID:   current.ID,
		StartTime: at,
		Note:      note,
		CreatedAt: s.nowFn().UTC(),
	}

	if err := s.ledger.OpenPeriod(ctx, period); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			s.repairOpenDrift(ctx, current.ID)
			return nil, ErrAlreadyInUse
		case errors.Is(err, repository.ErrForeignKeyViolation):
			return nil, quilt.ErrQuiltNotFound
		default:
			return nil, fmt.Errorf("opening usage period: %w: %w", ErrStorageUnavailable, err)
		}
	}

	// The ledger write is kept even if the status write fails; drift is
	// repaired by the next conflicting open or by Reconcile. This call owns
	// the open period, so IN_USE wins over any status written meanwhile.
	updated, from, err := s.claimStatus(ctx, current, quilt.StatusInUse)
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, from, updated, period, at)
	return &TransitionResult{Quilt: updated, Period: period}, nil
}

func (s *Service) endUse(ctx context.Context, current *quilt.Quilt, to quilt.Status, at time.Time) (*TransitionResult, error) {
	open, err := s.ledger.FindOpenPeriod(ctx, current.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("finding open usage period: %w: %w", ErrStorageUnavailable, err)
	}

	var closed *UsagePeriod
	if open == nil {
		s.logger.Warn("quilt is IN_USE without an open usage period; updating status anyway",
			"quilt_id", current.ID, "to", to)
		s.logActivity(ctx, &activity.ActivityEntry{
			QuiltID:      &current.ID,
			ActivityType: activity.TypeLedgerReconciled,
			Summary:      fmt.Sprintf("no open usage period found while leaving IN_USE for quilt %s", current.ID),
		})
	} else {
		if at.Before(open.StartTime) {
			return nil, fmt.Errorf("%w: end %s precedes start %s", ErrInvalidInterval,
				at.Format(time.RFC3339), open.StartTime.Format(time.RFC3339))
		}
		closed, err = s.ledger.ClosePeriod(ctx, open.ID, at)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			// Closed concurrently, e.g. a retried request whose first attempt succeeded.
			s.logger.Info("usage period already closed", "quilt_id", current.ID, "period_id", open.ID)
			closed = nil
		case errors.Is(err, repository.ErrInvalidInput):
			return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
		case err != nil:
			return nil, fmt.Errorf("closing usage period: %w: %w", ErrStorageUnavailable, err)
		}
	}

	updated, err := s.writeStatus(ctx, current, to)
	if errors.Is(err, errStatusMoved) && closed != nil {
		return s.settleAfterClose(ctx, current.ID, to, closed, at)
	}
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, current.Status, updated, closed, at)
	return &TransitionResult{Quilt: updated, Period: closed}, nil
}

// settleAfterClose finishes a close whose status write lost a race. If a
// newer period is already open, its opener owns the status and it is left
// alone; otherwise the requested status is written over whatever is stored.
func (s *Service) settleAfterClose(ctx context.Context, quiltID string, to quilt.Status, closed *UsagePeriod, at time.Time) (*TransitionResult, error) {
	current, err := s.loadQuilt(ctx, quiltID)
	if err != nil {
		return nil, err
	}
	open, err := s.ledger.FindOpenPeriod(ctx, quiltID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("finding open usage period: %w: %w", ErrStorageUnavailable, err)
	}
	if open != nil {
		s.logger.Info("quilt reopened while closing; keeping the newer period",
			"quilt_id", quiltID, "closed_period_id", closed.ID, "open_period_id", open.ID)
		s.afterTransition(ctx, quilt.StatusInUse, current, closed, at)
		return &TransitionResult{Quilt: current, Period: closed}, nil
	}

	updated, from, err := s.claimStatus(ctx, current, to)
	if err != nil {
		return nil, err
	}
	s.afterTransition(ctx, from, updated, closed, at)
	return &TransitionResult{Quilt: updated, Period: closed}, nil
}

// Reconcile repairs the one drift direction the coordinator can resolve on
// its own: an open period whose quilt status was never set to IN_USE. The
// opposite drift is reported and left for the next transition.
func (s *Service) Reconcile(ctx context.Context, quiltID string) (*ReconcileResult, error) {
	current, err := s.loadQuilt(ctx, quiltID)
	if err != nil {
		return nil, err
	}

	open, err := s.ledger.FindOpenPeriod(ctx, quiltID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("finding open usage period: %w: %w", ErrStorageUnavailable, err)
	}

	result := &ReconcileResult{QuiltID: quiltID, Status: current.Status}
	switch {
	case open != nil && current.Status != quilt.StatusInUse:
		if s.nowFn().Sub(open.CreatedAt) < s.repairGrace {
			result.Issue = "open period is recent; transition may be in flight"
			return result, nil
		}
		updated, err := s.writeStatus(ctx, current, quilt.StatusInUse)
		if errors.Is(err, errStatusMoved) {
			result.Issue = "status changed while reconciling; left for the next pass"
			return result, nil
		}
		if err != nil {
			return nil, err
		}
		s.recordRepair(ctx, quiltID, current.Status, open.ID)
		result.Status = updated.Status
		result.Repaired = true
		result.Issue = "open period without IN_USE status"
	case open == nil && current.Status == quilt.StatusInUse:
		s.logger.Warn("quilt is IN_USE without an open usage period", "quilt_id", quiltID)
		result.Issue = "IN_USE status without open period"
	}
	return result, nil
}

// ListPeriods returns a quilt's ledger ordered by start time.
func (s *Service) ListPeriods(ctx context.Context, quiltID string) ([]UsagePeriod, error) {
	if _, err := s.loadQuilt(ctx, quiltID); err != nil {
		return nil, err
	}
	periods, err := s.ledger.ListPeriods(ctx, quiltID)
	if err != nil {
		return nil, fmt.Errorf("listing usage periods: %w", err)
	}
	return periods, nil
}

// repairOpenDrift runs after an open was rejected by the store. If the
// existing open period is old enough to rule out a concurrent opener and the
// quilt status still disagrees, status is brought back in line.
func (s *Service) repairOpenDrift(ctx context.Context, quiltID string) {
	current, err := s.quilts.Get(ctx, quiltID)
	if err != nil || current.Status == quilt.StatusInUse {
		return
	}
	open, err := s.ledger.FindOpenPeriod(ctx, quiltID)
	if err != nil || s.nowFn().Sub(open.CreatedAt) < s.repairGrace {
		return
	}
	s.logger.Warn("open usage period found for quilt not marked IN_USE; repairing status",
		"quilt_id", quiltID, "status", current.Status, "period_id", open.ID)
	if _, err := s.writeStatus(ctx, current, quilt.StatusInUse); err != nil {
		if errors.Is(err, errStatusMoved) {
			s.logger.Info("status changed during repair; skipping", "quilt_id", quiltID)
			return
		}
		s.logger.Error("status repair failed", "quilt_id", quiltID, "error", err)
		return
	}
	s.recordRepair(ctx, quiltID, current.Status, open.ID)
}

func (s *Service) recordRepair(ctx context.Context, quiltID string, from quilt.Status, periodID string) {
	s.logActivity(ctx, &activity.ActivityEntry{
		QuiltID:      &quiltID,
		PeriodID:     &periodID,
		ActivityType: activity.TypeLedgerReconciled,
		Summary:      fmt.Sprintf("status of quilt %s repaired from %s to IN_USE", quiltID, from),
	})
	s.invalidate(ctx, quiltID)
}

// writeStatus moves current to status, retrying transient failures. The
// write is conditional on the status current was read with and returns
// errStatusMoved, without retrying, when another writer got there first.
func (s *Service) writeStatus(ctx context.Context, current *quilt.Quilt, status quilt.Status) (*quilt.Quilt, error) {
	var lastErr error
	for attempt := 1; attempt <= s.statusAttempts; attempt++ {
		now := s.nowFn().UTC()
		err := s.quilts.UpdateStatus(ctx, current.ID, current.Status, status, now)
		if err == nil {
			updated := *current
			updated.Status = status
			updated.UpdatedAt = now
			return &updated, nil
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, quilt.ErrQuiltNotFound
		}
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: %v", errStatusMoved, err)
		}
		lastErr = err
		s.logger.Warn("quilt status write failed", "quilt_id", current.ID, "status", status,
			"attempt", attempt, "error", err)

		if attempt < s.statusAttempts {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("writing quilt status: %w: %w", ErrStorageUnavailable, ctx.Err())
			case <-time.After(s.statusBackoff * time.Duration(attempt)):
			}
		}
	}
	return nil, fmt.Errorf("writing quilt status: %w: %w", ErrStorageUnavailable, lastErr)
}

// claimStatus writes a status that a ledger change made by this call
// requires, re-reading the quilt whenever another writer moved it. It also
// returns the status that was replaced.
func (s *Service) claimStatus(ctx context.Context, current *quilt.Quilt, status quilt.Status) (*quilt.Quilt, quilt.Status, error) {
	for race := 1; ; race++ {
		updated, err := s.writeStatus(ctx, current, status)
		if err == nil {
			return updated, current.Status, nil
		}
		if !errors.Is(err, errStatusMoved) {
			return nil, "", err
		}
		if race >= maxStatusRaces {
			return nil, "", fmt.Errorf("writing quilt status: %w: %w", ErrStorageUnavailable, err)
		}
		if current, err = s.loadQuilt(ctx, current.ID); err != nil {
			return nil, "", err
		}
	}
}

func (s *Service) afterTransition(ctx context.Context, from quilt.Status, updated *quilt.Quilt, period *UsagePeriod, at time.Time) {
	entry := &activity.ActivityEntry{
		QuiltID:      &updated.ID,
		ActivityType: activity.TypeStatusChanged,
		Summary:      fmt.Sprintf("quilt %s changed from %s to %s", updated.ID, from, updated.Status),
	}
	subject := SubjectStatusChanged
	event := Event{QuiltID: updated.ID, From: from, To: updated.Status, OccurredAt: at}

	if period != nil {
		entry.PeriodID = &period.ID
		event.PeriodID = period.ID
		if period.IsOpen() {
			entry.ActivityType = activity.TypeUsageOpened
			entry.Summary = fmt.Sprintf("quilt %s put in use", updated.ID)
			subject = SubjectUsageOpened
		} else {
			entry.ActivityType = activity.TypeUsageClosed
			entry.Summary = fmt.Sprintf("quilt %s no longer in use after %d days", updated.ID, period.DaysUsed(at))
			subject = SubjectUsageClosed
		}
	}

	s.logActivity(ctx, entry)
	s.invalidate(ctx, updated.ID)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, subject, event); err != nil {
			s.logger.Warn("publishing usage event failed", "subject", subject, "quilt_id", updated.ID, "error", err)
		}
	}

	s.logger.Info("quilt status changed", "quilt_id", updated.ID, "from", from, "to", updated.Status)
}

func (s *Service) invalidate(ctx context.Context, quiltID string) {
	if s.invalidator == nil {
		return
	}
	for _, pattern := range []string{"stats:" + quiltID + ":*", "retrospective:*"} {
		if _, err := s.invalidator.Invalidate(ctx, pattern); err != nil {
			s.logger.Warn("cache invalidation failed", "pattern", pattern, "error", err)
		}
	}
}

func (s *Service) logActivity(ctx context.Context, entry *activity.ActivityEntry) {
	if s.activities == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.nowFn().UTC()
	}
	if err := s.activities.Log(ctx, entry); err != nil {
		s.logger.Warn("logging activity failed", "type", entry.ActivityType, "error", err)
	}
}

func (s *Service) loadQuilt(ctx context.Context, id string) (*quilt.Quilt, error) {
	q, err := s.quilts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, quilt.ErrQuiltNotFound
		}
		return nil, fmt.Errorf("loading quilt: %w: %w", ErrStorageUnavailable, err)
	}
	return q, nil
}

func stringValue(val *string) string {
	if val == nil {
		return ""
	}
	return *val
}
