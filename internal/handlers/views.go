package handlers

import (
	"time"

	"github.com/vidshare/backend/internal/catalog"
	"github.com/vidshare/backend/internal/models"
)

type accountView struct {
	ID            string     `json:"id"`
	Handle        string     `json:"handle"`
	Email         string     `json:"email,omitempty"`
	Privileged    bool       `json:"privileged"`
	Active        bool       `json:"active"`
	Balance       *int64     `json:"balance,omitempty"`
	ReceivedLikes int64      `json:"receivedLikes"`
	LastGrantDate *time.Time `json:"lastGrantDate,omitempty"`
	Avatar        string     `json:"avatar,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`

	MustChangePassword bool `json:"mustChangePassword,omitempty"`
}

// newAccountView renders a for its owner or an administrator.
func newAccountView(a models.Account) accountView {
	balance := a.Balance
	return accountView{
		ID:            a.ID,
		Handle:        a.Handle,
		Email:         a.Email,
		Privileged:    a.Privileged,
		Active:        a.Active,
		Balance:       &balance,
		ReceivedLikes: a.ReceivedLikes,
		LastGrantDate: a.LastGrantDate,
		Avatar:        a.Avatar,
		CreatedAt:     a.CreatedAt,

		MustChangePassword: !a.PasswordChanged,
	}
}

// newPublicAccountView omits the private fields.
func newPublicAccountView(a models.Account) accountView {
	return accountView{
		ID:            a.ID,
		Handle:        a.Handle,
		Privileged:    a.Privileged,
		Active:        a.Active,
		ReceivedLikes: a.ReceivedLikes,
		Avatar:        a.Avatar,
		CreatedAt:     a.CreatedAt,
	}
}

func publicAccountViews(accounts []models.Account) []accountView {
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, newPublicAccountView(a))
	}
	return views
}

type workView struct {
	ID             string            `json:"id"`
	OwnerID        string            `json:"ownerId"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	MediaRef       string            `json:"mediaRef"`
	Thumbnail      string            `json:"thumbnail,omitempty"`
	Status         models.WorkStatus `json:"status"`
	Views          int64             `json:"views"`
	Likes          int64             `json:"likes"`
	TripleCount    int64             `json:"tripleCount"`
	ModerationNote string            `json:"moderationNote,omitempty"`
	ModeratorID    *string           `json:"moderatorId,omitempty"`
	ModeratedAt    *time.Time        `json:"moderatedAt,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

func newWorkView(w models.Work) workView {
	return workView{
		ID:             w.ID,
		OwnerID:        w.OwnerID,
		Title:          w.Title,
		Description:    w.Description,
		MediaRef:       w.MediaRef,
		Thumbnail:      w.Thumbnail,
		Status:         w.Status,
		Views:          w.Views,
		Likes:          w.Likes,
		TripleCount:    w.TripleCount,
		ModerationNote: w.ModerationNote,
		ModeratorID:    w.ModeratorID,
		ModeratedAt:    w.ModeratedAt,
		CreatedAt:      w.CreatedAt,
	}
}

func workViews(works []models.Work) []workView {
	views := make([]workView, 0, len(works))
	for _, w := range works {
		views = append(views, newWorkView(w))
	}
	return views
}

type profileView struct {
	Pending  []workView `json:"pending"`
	Approved []workView `json:"approved"`
	Rejected []workView `json:"rejected"`
}

func newProfileView(p catalog.Profile) profileView {
	return profileView{
		Pending:  workViews(p.Pending),
		Approved: workViews(p.Approved),
		Rejected: workViews(p.Rejected),
	}
}

type commentView struct {
	ID        string    `json:"id"`
	WorkID    string    `json:"workId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func newCommentView(c models.Comment) commentView {
	return commentView{ID: c.ID, WorkID: c.WorkID, AuthorID: c.AuthorID, Content: c.Content, CreatedAt: c.CreatedAt}
}

type annotationView struct {
	ID        string    `json:"id"`
	WorkID    string    `json:"workId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	Offset    float64   `json:"offset"`
	Style     string    `json:"style"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

func newAnnotationView(a models.Annotation) annotationView {
	return annotationView{
		ID:        a.ID,
		WorkID:    a.WorkID,
		AuthorID:  a.AuthorID,
		Content:   a.Content,
		Offset:    a.Offset,
		Style:     a.Style,
		Color:     a.Color,
		CreatedAt: a.CreatedAt,
	}
}

type tokensView struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

func newTokensView(t models.SessionTokens) tokensView {
	return tokensView{
		AccessToken:      t.AccessToken,
		AccessExpiresAt:  t.AccessExpiresAt,
		RefreshToken:     t.RefreshToken,
		RefreshExpiresAt: t.RefreshExpiresAt,
	}
}
