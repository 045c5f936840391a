package handlers

import (
	"net/http"
	"time"

	"pixel-catalog/internal/catalog"
	"pixel-catalog/internal/playlist"
	"pixel-catalog/internal/startup"
)

// StatsResponse summarises the index and the live catalog.
type StatsResponse struct {
	TotalVideos     int    `json:"totalVideos"`
	TotalSize       string `json:"totalSize"`
	TotalBytes      int64  `json:"totalBytes"`
	LastIndexed     string `json:"lastIndexed,omitempty"`
	IndexDuration   string `json:"indexDuration,omitempty"`
	CatalogRows     int    `json:"catalogRows"`
	FactsReady      int    `json:"factsReady"`
	ThumbnailsReady int    `json:"thumbnailsReady"`
	Playlists       int    `json:"playlists"`
	CachedPreviews  int    `json:"cachedPreviews"`
}

// GetStats returns index and catalog statistics.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	s := h.stats.GetStats()
	rows := h.catalog.Rows()

	resp := StatsResponse{
		TotalVideos:    s.TotalVideos,
		TotalBytes:     s.TotalBytes,
		TotalSize:      catalog.FormatSize(s.TotalBytes),
		IndexDuration:  s.IndexDuration,
		CatalogRows:    len(rows),
		Playlists:      len(playlist.FromEntries(h.catalog.Entries())),
		CachedPreviews: h.thumbnails.Len(),
	}
	if !s.LastIndexed.IsZero() {
		resp.LastIndexed = s.LastIndexed.Format(time.RFC3339)
	}
	for _, row := range rows {
		if row.FactsReady {
			resp.FactsReady++
		}
		if row.ThumbnailReady {
			resp.ThumbnailsReady++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, startup.GetBuildInfo())
}
