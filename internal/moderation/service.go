// Package moderation governs the pending -> approved | rejected lifecycle of works.
package moderation

import (
	"context"
	"log/slog"
	"time"

	"github.com/vidshare/backend/internal/logging"
	"github.com/vidshare/backend/internal/metrics"
	"github.com/vidshare/backend/internal/models"
)

const component = "moderation"

// DefaultFeedLimit bounds the public feed and queue listings when no limit is given.
const DefaultFeedLimit = 50

// Store persists works. ReviewWork re-checks the moderator's role within the same
// atomic unit that writes the transition.
type Store interface {
	ReviewWork(ctx context.Context, workID, moderatorID string, status models.WorkStatus, note string, at time.Time) (models.Work, error)
	ListWorksByStatus(ctx context.Context, status models.WorkStatus, limit int) ([]models.Work, error)
}

// Service applies moderation transitions and serves the status queues.
type Service struct {
	store   Store
	metrics *metrics.Recorder
	now     func() time.Time
}

// NewService constructs a moderation service.
func NewService(store Store, recorder *metrics.Recorder) *Service {
	return &Service{
		store:   store,
		metrics: recorder,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Review moves workID to target and records the caller, note and time. Re-reviewing
// an already reviewed work overwrites the previous decision.
func (s *Service) Review(ctx context.Context, caller models.Caller, workID string, target models.WorkStatus, note string) (work models.Work, err error) {
	ctx, span := logging.StartSpan(ctx, "moderation.review")
	defer func() {
		span.RecordError(err)
		span.End()
		s.metrics.Observe(component, "review", err)
	}()

	if !caller.Privileged {
		return models.Work{}, models.ErrNotAuthorized
	}
	if target != models.StatusApproved && target != models.StatusRejected {
		return models.Work{}, models.ErrInvalidInput
	}

	work, err = s.store.ReviewWork(ctx, workID, caller.AccountID, target, note, s.now())
	if err != nil {
		return models.Work{}, err
	}

	logging.FromContext(ctx).Info("work reviewed",
		slog.String("work_id", workID),
		slog.String("status", string(target)),
		slog.String("moderator_id", caller.AccountID),
	)
	return work, nil
}

// Queue lists works in status for privileged callers, newest first.
func (s *Service) Queue(ctx context.Context, caller models.Caller, status models.WorkStatus, limit int) ([]models.Work, error) {
	if !caller.Privileged {
		return nil, models.ErrNotAuthorized
	}
	if !status.Valid() {
		return nil, models.ErrInvalidInput
	}
	return s.store.ListWorksByStatus(ctx, status, normalizeLimit(limit))
}

// Feed lists approved works, newest first.
func (s *Service) Feed(ctx context.Context, limit int) ([]models.Work, error) {
	return s.store.ListWorksByStatus(ctx, models.StatusApproved, normalizeLimit(limit))
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultFeedLimit
	}
	return limit
}
