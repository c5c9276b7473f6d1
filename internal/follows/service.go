// Package follows manages the directed follow graph. "Followers" is always a
// projection of the same edge set as "following".
package follows

import (
	"context"
	"log/slog"

	"github.com/vidshare/backend/internal/logging"
	"github.com/vidshare/backend/internal/metrics"
	"github.com/vidshare/backend/internal/models"
)

const component = "follows"

// Store owns the canonical edge set. ToggleFollow must be atomic per pair.
type Store interface {
	ToggleFollow(ctx context.Context, followerID, followedID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followedID string) (bool, error)
	ListFollowing(ctx context.Context, accountID string) ([]models.Account, error)
	ListFollowers(ctx context.Context, accountID string) ([]models.Account, error)
}

// Service exposes follow graph operations.
type Service struct {
	store   Store
	metrics *metrics.Recorder
}

// NewService constructs a follow graph service.
func NewService(store Store, recorder *metrics.Recorder) *Service {
	return &Service{store: store, metrics: recorder}
}

// Toggle follows targetID when the caller does not follow it yet and unfollows
// otherwise. It reports whether the caller follows targetID afterwards.
func (s *Service) Toggle(ctx context.Context, caller models.Caller, targetID string) (following bool, err error) {
	ctx, span := logging.StartSpan(ctx, "follows.toggle")
	defer func() {
		span.RecordError(err)
		span.End()
		s.metrics.Observe(component, "toggle", err)
	}()

	if caller.AccountID == targetID {
		return false, models.ErrSelfFollow
	}

	following, err = s.store.ToggleFollow(ctx, caller.AccountID, targetID)
	if err != nil {
		return false, err
	}
	logging.FromContext(ctx).Info("follow toggled",
		slog.String("follower_id", caller.AccountID),
		slog.String("followed_id", targetID),
		slog.Bool("following", following),
	)
	return following, nil
}

// IsFollowing reports whether followerID follows followedID.
func (s *Service) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	return s.store.IsFollowing(ctx, followerID, followedID)
}

// Following lists the accounts accountID follows.
func (s *Service) Following(ctx context.Context, accountID string) ([]models.Account, error) {
	return s.store.ListFollowing(ctx, accountID)
}

// Followers lists the accounts that follow accountID.
func (s *Service) Followers(ctx context.Context, accountID string) ([]models.Account, error) {
	return s.store.ListFollowers(ctx, accountID)
}
