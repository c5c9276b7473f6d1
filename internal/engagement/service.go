// Package engagement records traffic counters and the one-time "triple" mark.
//
// Views and likes are cumulative by design; repeated calls keep counting. The
// triple mark is exactly-once per (work, actor) and its member set is only ever
// changed together with the counter it guards.
package engagement

import (
	"context"
	"log/slog"

	"github.com/vidshare/backend/internal/logging"
	"github.com/vidshare/backend/internal/metrics"
	"github.com/vidshare/backend/internal/models"
)

const component = "engagement"

// Store applies the counter mutations atomically.
type Store interface {
	IncrementViews(ctx context.Context, workID string) (int64, error)
	LikeWork(ctx context.Context, workID string) (models.LikeResult, error)
	ApplyTriple(ctx context.Context, workID, actorID string) (int64, error)
}

// Service exposes engagement operations.
type Service struct {
	store   Store
	metrics *metrics.Recorder
}

// NewService constructs an engagement service.
func NewService(store Store, recorder *metrics.Recorder) *Service {
	return &Service{store: store, metrics: recorder}
}

// RecordView adds one view to workID and returns the new total.
func (s *Service) RecordView(ctx context.Context, workID string) (views int64, err error) {
	defer func() { s.metrics.Observe(component, "view", err) }()
	return s.store.IncrementViews(ctx, workID)
}

// Like adds one like to workID and one received like to its owner.
func (s *Service) Like(ctx context.Context, caller models.Caller, workID string) (result models.LikeResult, err error) {
	ctx, span := logging.StartSpan(ctx, "engagement.like")
	defer func() {
		span.RecordError(err)
		span.End()
		s.metrics.Observe(component, "like", err)
	}()

	result, err = s.store.LikeWork(ctx, workID)
	if err != nil {
		return models.LikeResult{}, err
	}
	logging.FromContext(ctx).Debug("work liked",
		slog.String("work_id", workID),
		slog.String("actor_id", caller.AccountID),
	)
	return result, nil
}

// ApplyTriple records the caller's one-time engagement on workID and returns the
// work's new triple count. A second attempt by the same caller fails with
// models.ErrAlreadyApplied.
func (s *Service) ApplyTriple(ctx context.Context, caller models.Caller, workID string) (count int64, err error) {
	ctx, span := logging.StartSpan(ctx, "engagement.triple")
	defer func() {
		span.RecordError(err)
		span.End()
		s.metrics.Observe(component, "triple", err)
	}()

	if caller.AccountID == "" {
		return 0, models.ErrNotAuthorized
	}

	count, err = s.store.ApplyTriple(ctx, workID, caller.AccountID)
	if err != nil {
		return 0, err
	}
	logging.FromContext(ctx).Info("triple applied",
		slog.String("work_id", workID),
		slog.String("actor_id", caller.AccountID),
		slog.Int64("count", count),
	)
	return count, nil
}
