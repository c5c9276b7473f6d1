package handlers

import (
	"context"
	"io"
	"time"

	"github.com/vidshare/backend/internal/catalog"
	"github.com/vidshare/backend/internal/models"
	"github.com/vidshare/backend/internal/timeline"
)

// AccountStore captures the persistence operations required by the auth and admin handlers.
type AccountStore interface {
	CreateAccount(ctx context.Context, account models.Account) error
	GetAccount(ctx context.Context, id string) (models.Account, error)
	FindAccountByEmail(ctx context.Context, email string) (models.Account, error)
	FindAccountByHandle(ctx context.Context, handle string) (models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	UpdateAccountProfile(ctx context.Context, id, handle, email string, active bool) error
	SetAccountPassword(ctx context.Context, id, hash string, changed bool) error
	SetAccountAvatar(ctx context.Context, id, avatar string) error
	SetAccountActive(ctx context.Context, id string, active bool) error
}

// SessionManager issues and refreshes authentication tokens for accounts.
type SessionManager interface {
	Issue(ctx context.Context, accountID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, token string)
	RevokeAccount(ctx context.Context, accountID string) (int, error)
}

// Moderation reviews works and lists them by status.
type Moderation interface {
	Review(ctx context.Context, caller models.Caller, workID string, target models.WorkStatus, note string) (models.Work, error)
	Queue(ctx context.Context, caller models.Caller, status models.WorkStatus, limit int) ([]models.Work, error)
	Feed(ctx context.Context, limit int) ([]models.Work, error)
}

// Engagement records views, likes and the one-time mark.
type Engagement interface {
	RecordView(ctx context.Context, workID string) (int64, error)
	Like(ctx context.Context, caller models.Caller, workID string) (models.LikeResult, error)
	ApplyTriple(ctx context.Context, caller models.Caller, workID string) (int64, error)
}

// Currency moves balance between accounts.
type Currency interface {
	Transfer(ctx context.Context, caller models.Caller, toID string, amount int64) (models.TransferResult, error)
	Grant(ctx context.Context, accountID string, now time.Time) (models.Account, bool, error)
	Balance(ctx context.Context, accountID string) (int64, error)
}

// Follows maintains the follow graph.
type Follows interface {
	Toggle(ctx context.Context, caller models.Caller, targetID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followedID string) (bool, error)
	Following(ctx context.Context, accountID string) ([]models.Account, error)
	Followers(ctx context.Context, accountID string) ([]models.Account, error)
}

// Timeline stores playback annotations.
type Timeline interface {
	Append(ctx context.Context, caller models.Caller, in timeline.AppendInput) (models.Annotation, error)
	List(ctx context.Context, workID string) ([]models.Annotation, error)
}

// Catalog covers the work and comment lifecycle.
type Catalog interface {
	Create(ctx context.Context, caller models.Caller, in catalog.CreateInput) (models.Work, error)
	Get(ctx context.Context, caller models.Caller, workID string) (models.Work, error)
	Delete(ctx context.Context, caller models.Caller, workID string) error
	SetThumbnail(ctx context.Context, caller models.Caller, workID, thumbnail string) error
	Profile(ctx context.Context, ownerID string) (catalog.Profile, error)
	Search(ctx context.Context, query string, limit int) ([]models.Work, error)
	Comment(ctx context.Context, caller models.Caller, workID, content string) (models.Comment, error)
	Comments(ctx context.Context, caller models.Caller, workID string) ([]models.Comment, error)
}

// MediaStorage persists uploaded media and returns the reference stored on the work.
type MediaStorage interface {
	Save(ctx context.Context, ownerID, filename, contentType string, r io.Reader) (string, error)
}
