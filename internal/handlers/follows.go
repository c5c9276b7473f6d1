package handlers

import (
	"context"
	"net/http"

	"github.com/vidshare/backend/internal/models"
)

// FollowHandler manages the follow graph.
type FollowHandler struct {
	Follows Follows
}

// Toggle handles POST /api/v1/accounts/{id}/follow: follow when not following, unfollow otherwise.
func (h FollowHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	targetID := r.PathValue("id")
	following, err := h.Follows.Toggle(r.Context(), caller, targetID)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, followResponse{AccountID: targetID, Following: following})
}

// Status handles GET /api/v1/accounts/{id}/follow.
func (h FollowHandler) Status(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	targetID := r.PathValue("id")
	following, err := h.Follows.IsFollowing(r.Context(), caller.AccountID, targetID)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, followResponse{AccountID: targetID, Following: following})
}

// Following handles GET /api/v1/accounts/{id}/following.
func (h FollowHandler) Following(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Follows.Following)
}

// Followers handles GET /api/v1/accounts/{id}/followers.
func (h FollowHandler) Followers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Follows.Followers)
}

func (h FollowHandler) list(w http.ResponseWriter, r *http.Request, load func(ctx context.Context, accountID string) ([]models.Account, error)) {
	accounts, err := load(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"accounts": publicAccountViews(accounts)})
}

type followResponse struct {
	AccountID string `json:"accountId"`
	Following bool   `json:"following"`
}
