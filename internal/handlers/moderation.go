package handlers

import (
	"net/http"

	"github.com/vidshare/backend/internal/models"
)

// ModerationHandler exposes the review queue to privileged accounts.
type ModerationHandler struct {
	Moderation Moderation
}

// Queue handles GET /api/v1/admin/works?status=pending.
func (h ModerationHandler) Queue(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	status := models.WorkStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.StatusPending
	}
	works, err := h.Moderation.Queue(r.Context(), caller, status, queryLimit(r))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"status": status, "works": workViews(works)})
}

// Review handles POST /api/v1/admin/works/{id}/review.
func (h ModerationHandler) Review(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	work, err := h.Moderation.Review(ctx, caller, r.PathValue("id"), models.WorkStatus(req.Status), req.Note)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, newWorkView(work))
}

type reviewRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}
