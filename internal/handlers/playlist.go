package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"pixel-catalog/internal/logging"
	"pixel-catalog/internal/playlist"

	"github.com/gorilla/mux"
)

// playlistSummary is a playlist without its video list.
type playlistSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Path  string `json:"path"`
	Count int    `json:"videoCount"`
}

// ListPlaylists returns one playlist per folder of the current catalog.
func (h *Handlers) ListPlaylists(w http.ResponseWriter, _ *http.Request) {
	playlists := playlist.FromEntries(h.catalog.Entries())

	out := make([]playlistSummary, 0, len(playlists))
	for _, p := range playlists {
		out = append(out, playlistSummary{ID: p.ID, Title: p.Title, Path: p.Path, Count: p.Count})
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, out)
}

// GetPlaylist returns a playlist with its videos.
func (h *Handlers) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	p, ok := h.findPlaylist(r)
	if !ok {
		writeJSONError(w, "Playlist not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, p)
}

// ExportPlaylist downloads a playlist as a Windows Media Player .wpl file.
func (h *Handlers) ExportPlaylist(w http.ResponseWriter, r *http.Request) {
	p, ok := h.findPlaylist(r)
	if !ok {
		http.Error(w, "Playlist not found", http.StatusNotFound)
		return
	}

	data, err := playlist.EncodeWPL(p)
	if err != nil {
		logging.Error("Failed to encode playlist %s: %v", p.ID, err)
		http.Error(w, "Failed to encode playlist", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.ms-wpl")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", wplFilename(p.Title)))
	if _, err := w.Write(data); err != nil {
		logging.Debug("Playlist write failed: %v", err)
	}
}

func (h *Handlers) findPlaylist(r *http.Request) (playlist.Playlist, bool) {
	return playlist.Find(playlist.FromEntries(h.catalog.Entries()), mux.Vars(r)["id"])
}

// wplFilename keeps a header-safe download name.
func wplFilename(title string) string {
	name := strings.Map(func(r rune) rune {
		if r < 0x20 || r == '"' || r == '\\' || r == '/' {
			return '_'
		}
		return r
	}, title)
	if name == "" || name == "." {
		name = "playlist"
	}
	return name + ".wpl"
}
