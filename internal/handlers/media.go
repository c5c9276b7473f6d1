package handlers

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/vidshare/backend/internal/logging"
)

// maxImageBytes bounds avatars and thumbnails.
const maxImageBytes = 5 << 20

// multipart framing allowance on top of the file itself
const formOverhead = 64 << 10

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

// storeImage reads the image in the multipart field and saves it under ownerID. On
// failure the response has already been written and ok is false.
func storeImage(w http.ResponseWriter, r *http.Request, storage MediaStorage, ownerID, field string) (ref string, ok bool) {
	ctx := r.Context()
	if storage == nil {
		respondMessage(ctx, w, http.StatusServiceUnavailable, "media uploads are not configured")
		return "", false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+formOverhead)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondMessage(ctx, w, http.StatusRequestEntityTooLarge, "image must be 5 MB or smaller")
			return "", false
		}
		respondMessage(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return "", false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(field)
	if err != nil {
		respondMessage(ctx, w, http.StatusBadRequest, field+" file is required")
		return "", false
	}
	defer file.Close()

	if header.Size > maxImageBytes {
		respondMessage(ctx, w, http.StatusRequestEntityTooLarge, "image must be 5 MB or smaller")
		return "", false
	}
	contentType := header.Header.Get("Content-Type")
	if !isImage(header.Filename, contentType) {
		respondMessage(ctx, w, http.StatusBadRequest, "only jpg, png, gif and webp images are accepted")
		return "", false
	}

	ref, err = storage.Save(ctx, ownerID, header.Filename, contentType, file)
	if err != nil {
		logging.FromContext(ctx).Error("image upload failed", "error", err, "field", field, "filename", header.Filename)
		respondMessage(ctx, w, http.StatusBadGateway, "failed to store image")
		return "", false
	}
	return ref, true
}

// isImage accepts a known image extension whose declared type, when present, is an
// image type.
func isImage(filename, contentType string) bool {
	if _, ok := imageExtensions[strings.ToLower(filepath.Ext(filename))]; !ok {
		return false
	}
	if contentType == "" || contentType == "application/octet-stream" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.HasPrefix(mediaType, "image/")
}
