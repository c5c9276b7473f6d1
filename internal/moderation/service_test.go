package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vidshare/backend/internal/models"
	"github.com/vidshare/backend/internal/repositories"
)

func setup(t *testing.T) (*Service, *repositories.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	for _, a := range []models.Account{
		{ID: "m", Handle: "m", Email: "m@example.com", Privileged: true, Active: true},
		{ID: "u", Handle: "u", Email: "u@example.com", Active: true},
		{ID: "retired", Handle: "retired", Email: "r@example.com", Privileged: true, Active: false},
	} {
		require.NoError(t, store.CreateAccount(ctx, a))
	}
	require.NoError(t, store.CreateWork(ctx, models.Work{
		ID:        "w",
		OwnerID:   "u",
		Title:     "clip",
		MediaRef:  "media/clip",
		Status:    models.StatusPending,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	svc := NewService(store, nil)
	svc.now = func() time.Time { return time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC) }
	return svc, store
}

func TestReviewScenario(t *testing.T) {
	ctx := context.Background()
	svc, store := setup(t)
	moderator := models.Caller{AccountID: "m", Privileged: true}

	work, err := svc.Review(ctx, moderator, "w", models.StatusApproved, "ok")
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, work.Status)
	require.NotNil(t, work.ModeratorID)
	require.Equal(t, "m", *work.ModeratorID)
	require.Equal(t, "ok", work.ModerationNote)

	feed, err := svc.Feed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Equal(t, "w", feed[0].ID)

	_, err = svc.Review(ctx, models.Caller{AccountID: "u"}, "w", models.StatusRejected, "nope")
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	unchanged, err := store.GetWork(ctx, "w")
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, unchanged.Status)
	require.Equal(t, "ok", unchanged.ModerationNote)
}

func TestReviewRechecksPrivilegeInStore(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	_, err := svc.Review(ctx, models.Caller{AccountID: "u", Privileged: true}, "w", models.StatusApproved, "forged")
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	_, err = svc.Review(ctx, models.Caller{AccountID: "retired", Privileged: true}, "w", models.StatusApproved, "stale")
	require.ErrorIs(t, err, models.ErrNotAuthorized)
}

func TestReviewFailures(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	moderator := models.Caller{AccountID: "m", Privileged: true}

	_, err := svc.Review(ctx, moderator, "missing", models.StatusApproved, "")
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.Review(ctx, moderator, "w", models.StatusPending, "")
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestReReviewRefreshesDecision(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)
	moderator := models.Caller{AccountID: "m", Privileged: true}

	_, err := svc.Review(ctx, moderator, "w", models.StatusApproved, "first")
	require.NoError(t, err)

	later := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return later }
	work, err := svc.Review(ctx, moderator, "w", models.StatusApproved, "second")
	require.NoError(t, err)
	require.Equal(t, "second", work.ModerationNote)
	require.True(t, work.ModeratedAt.Equal(later))

	work, err = svc.Review(ctx, moderator, "w", models.StatusRejected, "changed my mind")
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, work.Status)

	feed, err := svc.Feed(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, feed)
}

func TestQueue(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	_, err := svc.Queue(ctx, models.Caller{AccountID: "u"}, models.StatusPending, 0)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	_, err = svc.Queue(ctx, models.Caller{AccountID: "m", Privileged: true}, "archived", 0)
	require.ErrorIs(t, err, models.ErrInvalidInput)

	pending, err := svc.Queue(ctx, models.Caller{AccountID: "m", Privileged: true}, models.StatusPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}
