package handlers

import (
	"errors"
	"net/http"

	"pixel-catalog/internal/logging"
	"pixel-catalog/internal/mediatypes"
	"pixel-catalog/internal/pipeline"
	"pixel-catalog/internal/player"
)

// ListVideos returns every row in catalog order.
func (h *Handlers) ListVideos(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.catalog.Rows())
}

// GetVideo returns one row.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := rowID(r)
	if !ok {
		writeJSONError(w, "Invalid id", http.StatusBadRequest)
		return
	}
	row, ok := h.catalog.Row(id)
	if !ok {
		writeJSONError(w, "Video not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, row)
}

// MarkVisible schedules enrichment and thumbnail work for a row.
func (h *Handlers) MarkVisible(w http.ResponseWriter, r *http.Request) {
	h.visibility(w, r, h.catalog.Visible)
}

// MarkHidden abandons pending work for a row.
func (h *Handlers) MarkHidden(w http.ResponseWriter, r *http.Request) {
	h.visibility(w, r, h.catalog.Hidden)
}

func (h *Handlers) visibility(w http.ResponseWriter, r *http.Request, apply func(int64) error) {
	id, ok := rowID(r)
	if !ok {
		writeJSONError(w, "Invalid id", http.StatusBadRequest)
		return
	}

	switch err := apply(id); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, pipeline.ErrUnknownRow):
		writeJSONError(w, "Video not found", http.StatusNotFound)
	case errors.Is(err, pipeline.ErrClosed):
		writeJSONError(w, "Shutting down", http.StatusServiceUnavailable)
	default:
		logging.Error("visibility update for %d failed: %v", id, err)
		writeJSONError(w, "Visibility update failed", http.StatusInternalServerError)
	}
}

// PlayVideo hands the row's reference to the external player.
func (h *Handlers) PlayVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := rowID(r)
	if !ok {
		writeJSONError(w, "Invalid id", http.StatusBadRequest)
		return
	}
	row, ok := h.catalog.Row(id)
	if !ok {
		writeJSONError(w, "Video not found", http.StatusNotFound)
		return
	}

	if err := h.player.Launch(r.Context(), row.Entry.URI, mediatypes.VideoContentType); err != nil {
		if errors.Is(err, player.ErrNoCommand) {
			writeJSONError(w, "No player configured", http.StatusServiceUnavailable)
			return
		}
		logging.Warn("Player handoff for %d failed: %v", id, err)
		writeJSONError(w, "Player failed to start", http.StatusBadGateway)
		return
	}

	writeJSONStatusCode(w, http.StatusAccepted, map[string]string{
		"status": "launched",
		"uri":    row.Entry.URI,
	})
}

// Reload re-reads the media index into the catalog and asks the indexer for
// a fresh directory walk. The walk finishing triggers another reload.
func (h *Handlers) Reload(w http.ResponseWriter, r *http.Request) {
	h.indexer.Trigger()

	select {
	case err := <-h.catalog.Load(r.Context()):
		if err != nil {
			logging.Error("Catalog reload failed: %v", err)
			writeJSONError(w, "Reload failed", http.StatusInternalServerError)
			return
		}
	case <-r.Context().Done():
		return
	}

	writeJSONStatusCode(w, http.StatusOK, map[string]interface{}{
		"status": "reloaded",
		"count":  len(h.catalog.Entries()),
	})
}
