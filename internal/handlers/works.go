package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vidshare/backend/internal/auth"
	"github.com/vidshare/backend/internal/catalog"
	"github.com/vidshare/backend/internal/logging"
	"github.com/vidshare/backend/internal/models"
	"github.com/vidshare/backend/internal/timeline"
)

const defaultUploadLimit = 500 << 20

// WorkHandler serves the work lifecycle along with its engagement, comments and annotations.
type WorkHandler struct {
	Catalog        Catalog
	Engagement     Engagement
	Moderation     Moderation
	Timeline       Timeline
	Storage        MediaStorage
	Limiter        RateLimiter
	UploadMaxBytes int64
}

// Create handles POST /api/v1/works for media that is already stored.
func (h WorkHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var req createWorkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	work, err := h.Catalog.Create(ctx, caller, catalog.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		MediaRef:    req.MediaRef,
		Thumbnail:   req.Thumbnail,
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, newWorkView(work))
}

// Upload handles multipart POST /api/v1/works/upload: the "media" file is stored first
// and the work is created pointing at it.
func (h WorkHandler) Upload(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Storage == nil {
		respondMessage(ctx, w, http.StatusServiceUnavailable, "media uploads are not configured")
		return
	}

	limit := h.UploadMaxBytes
	if limit <= 0 {
		limit = defaultUploadLimit
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondMessage(ctx, w, http.StatusRequestEntityTooLarge, "media exceeds the upload limit")
			return
		}
		respondMessage(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" || len(title) > catalog.MaxTitleLength {
		respondMessage(ctx, w, http.StatusBadRequest, "title is required")
		return
	}

	file, header, err := r.FormFile("media")
	if err != nil {
		respondMessage(ctx, w, http.StatusBadRequest, "media file is required")
		return
	}
	defer file.Close()

	ref, err := h.Storage.Save(ctx, caller.AccountID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		logger.Error("media upload failed", "error", err, "filename", header.Filename)
		respondMessage(ctx, w, http.StatusBadGateway, "failed to store media")
		return
	}

	work, err := h.Catalog.Create(ctx, caller, catalog.CreateInput{
		Title:       title,
		Description: r.FormValue("description"),
		MediaRef:    ref,
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, newWorkView(work))
}

// Get handles GET /api/v1/works/{id} and counts a view.
func (h WorkHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := auth.CallerFromContext(ctx)

	work, err := h.Catalog.Get(ctx, caller, r.PathValue("id"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	views, err := h.Engagement.RecordView(ctx, work.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	work.Views = views
	respondJSON(ctx, w, http.StatusOK, newWorkView(work))
}

// Delete handles DELETE /api/v1/works/{id}.
func (h WorkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.Catalog.Delete(r.Context(), caller, r.PathValue("id")); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetThumbnail handles PUT /api/v1/works/{id}/thumbnail.
func (h WorkHandler) SetThumbnail(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var req thumbnailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Catalog.SetThumbnail(ctx, caller, r.PathValue("id"), req.Thumbnail); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadThumbnail handles multipart POST /api/v1/works/{id}/thumbnail. Only the owner
// may replace the thumbnail, and nothing is stored for anyone else.
func (h WorkHandler) UploadThumbnail(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	work, err := h.Catalog.Get(ctx, caller, r.PathValue("id"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if work.OwnerID != caller.AccountID {
		respondError(ctx, w, models.ErrNotAuthorized)
		return
	}

	ref, ok := storeImage(w, r, h.Storage, caller.AccountID, "thumbnail")
	if !ok {
		return
	}
	if err := h.Catalog.SetThumbnail(ctx, caller, work.ID, ref); err != nil {
		respondError(ctx, w, err)
		return
	}
	work.Thumbnail = ref
	respondJSON(ctx, w, http.StatusOK, newWorkView(work))
}

// Feed handles GET /api/v1/works/feed.
func (h WorkHandler) Feed(w http.ResponseWriter, r *http.Request) {
	works, err := h.Moderation.Feed(r.Context(), queryLimit(r))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"works": workViews(works)})
}

// Search handles GET /api/v1/works/search?q=.
func (h WorkHandler) Search(w http.ResponseWriter, r *http.Request) {
	works, err := h.Catalog.Search(r.Context(), r.URL.Query().Get("q"), queryLimit(r))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"works": workViews(works)})
}

// Profile handles GET /api/v1/accounts/{id}/works. Only the owner and privileged
// callers see pending and rejected works.
func (h WorkHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := r.PathValue("id")

	profile, err := h.Catalog.Profile(ctx, ownerID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	view := newProfileView(profile)
	if caller, ok := auth.CallerFromContext(ctx); !ok || (caller.AccountID != ownerID && !caller.Privileged) {
		view.Pending = []workView{}
		view.Rejected = []workView{}
	}
	respondJSON(ctx, w, http.StatusOK, view)
}

// Like handles POST /api/v1/works/{id}/like.
func (h WorkHandler) Like(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	workID := r.PathValue("id")
	if !h.visible(w, r, caller, workID) {
		return
	}
	result, err := h.Engagement.Like(r.Context(), caller, workID)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, likeResponse{
		WorkID:             result.WorkID,
		Likes:              result.Likes,
		OwnerID:            result.OwnerID,
		OwnerReceivedLikes: result.OwnerReceivedLikes,
	})
}

// Triple handles POST /api/v1/works/{id}/triple, the once-per-account mark.
func (h WorkHandler) Triple(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if !allowCaller(h.Limiter, "triple", caller) {
		respondMessage(ctx, w, http.StatusTooManyRequests, "too many requests")
		return
	}

	workID := r.PathValue("id")
	if !h.visible(w, r, caller, workID) {
		return
	}
	count, err := h.Engagement.ApplyTriple(ctx, caller, workID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"workId": workID, "tripleCount": count})
}

// Comments handles GET /api/v1/works/{id}/comments.
func (h WorkHandler) Comments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := auth.CallerFromContext(ctx)

	comments, err := h.Catalog.Comments(ctx, caller, r.PathValue("id"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	views := make([]commentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, newCommentView(c))
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"comments": views})
}

// Comment handles POST /api/v1/works/{id}/comments.
func (h WorkHandler) Comment(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	comment, err := h.Catalog.Comment(ctx, caller, r.PathValue("id"), req.Content)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, newCommentView(comment))
}

// Annotations handles GET /api/v1/works/{id}/annotations in playback order.
func (h WorkHandler) Annotations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := auth.CallerFromContext(ctx)

	workID := r.PathValue("id")
	if !h.visible(w, r, caller, workID) {
		return
	}
	annotations, err := h.Timeline.List(ctx, workID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	views := make([]annotationView, 0, len(annotations))
	for _, a := range annotations {
		views = append(views, newAnnotationView(a))
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"annotations": views})
}

// Annotate handles POST /api/v1/works/{id}/annotations.
func (h WorkHandler) Annotate(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var req annotationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	workID := r.PathValue("id")
	if !h.visible(w, r, caller, workID) {
		return
	}
	annotation, err := h.Timeline.Append(ctx, caller, timeline.AppendInput{
		WorkID:  workID,
		Content: req.Content,
		Offset:  req.Offset,
		Style:   req.Style,
		Color:   req.Color,
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, newAnnotationView(annotation))
}

// visible writes 404 unless caller may see workID.
func (h WorkHandler) visible(w http.ResponseWriter, r *http.Request, caller models.Caller, workID string) bool {
	if _, err := h.Catalog.Get(r.Context(), caller, workID); err != nil {
		respondError(r.Context(), w, err)
		return false
	}
	return true
}

type createWorkRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	MediaRef    string `json:"mediaRef"`
	Thumbnail   string `json:"thumbnail"`
}

type thumbnailRequest struct {
	Thumbnail string `json:"thumbnail"`
}

type commentRequest struct {
	Content string `json:"content"`
}

type annotationRequest struct {
	Content string  `json:"content"`
	Offset  float64 `json:"offset"`
	Style   string  `json:"style"`
	Color   string  `json:"color"`
}

type likeResponse struct {
	WorkID             string `json:"workId"`
	Likes              int64  `json:"likes"`
	OwnerID            string `json:"ownerId"`
	OwnerReceivedLikes int64  `json:"ownerReceivedLikes"`
}
