package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"pixel-catalog/internal/logging"
	"pixel-catalog/internal/thumbnail"
)

// GetThumbnail serves the JPEG preview for a row. Any path without a
// preview, whether gated out or undecodable, is a 404.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := rowID(r)
	if !ok {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}
	row, ok := h.catalog.Row(id)
	if !ok {
		http.Error(w, "Video not found", http.StatusNotFound)
		return
	}

	data, err := h.thumbnails.Get(r.Context(), row.Entry.Path)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return
	case errors.Is(err, thumbnail.ErrNotVideo), errors.Is(err, thumbnail.ErrAbsent):
		http.Error(w, "No thumbnail", http.StatusNotFound)
		return
	default:
		logging.Debug("Thumbnail for %d unavailable: %v", id, err)
		http.Error(w, "No thumbnail", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(data); err != nil {
		logging.Debug("Thumbnail write for %d failed: %v", id, err)
	}
}
