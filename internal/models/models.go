package models

import "time"

// Account represents an identity within the vidshare platform.
type Account struct {
	ID            string
	Handle        string
	Email         string
	Password      string
	Privileged    bool
	Active        bool
	Balance       int64
	ReceivedLikes int64
	LastGrantDate *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Avatar is a storage reference, empty until the owner uploads one.
	Avatar string
	// PasswordChanged is false while the account still uses an assigned password.
	PasswordChanged bool
}

// Caller identifies the already-authenticated account performing an operation.
type Caller struct {
	AccountID  string
	Privileged bool
}

// WorkStatus is the moderation state of a Work.
type WorkStatus string

const (
	StatusPending  WorkStatus = "pending"
	StatusApproved WorkStatus = "approved"
	StatusRejected WorkStatus = "rejected"
)

// Valid reports whether s is one of the known moderation states.
func (s WorkStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Work is a submitted media item subject to moderation.
type Work struct {
	ID             string
	OwnerID        string
	Title          string
	Description    string
	MediaRef       string
	Thumbnail      string
	Status         WorkStatus
	Views          int64
	Likes          int64
	ModerationNote string
	ModeratorID    *string
	ModeratedAt    *time.Time
	TripleCount    int64
	TripleMembers  MemberSet
	CreatedAt      time.Time
}

// Comment is immutable text attached to a Work.
type Comment struct {
	ID        string
	WorkID    string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}

// Annotation is a time-offset overlay message rendered during playback.
type Annotation struct {
	ID        string
	WorkID    string
	AuthorID  string
	Content   string
	Offset    float64
	Style     string
	Color     string
	Seq       int64
	CreatedAt time.Time
}

// FollowEdge is a directed subscription from Follower to Followed.
type FollowEdge struct {
	FollowerID string
	FollowedID string
	CreatedAt  time.Time
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether a and b fall on the same UTC calendar day.
func SameDate(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}

// TransferResult reports both account balances after a committed transfer.
type TransferResult struct {
	Source      Account
	Destination Account
	Amount      int64
}

// LikeResult reports the counters touched by a plain like.
type LikeResult struct {
	WorkID             string
	Likes              int64
	OwnerID            string
	OwnerReceivedLikes int64
}
