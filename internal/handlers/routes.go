package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Router builds the API router.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/videos", h.ListVideos).Methods(http.MethodGet)
	api.HandleFunc("/videos/{id:[0-9]+}", h.GetVideo).Methods(http.MethodGet)
	api.HandleFunc("/videos/{id:[0-9]+}/visible", h.MarkVisible).Methods(http.MethodPost)
	api.HandleFunc("/videos/{id:[0-9]+}/hidden", h.MarkHidden).Methods(http.MethodPost)
	api.HandleFunc("/videos/{id:[0-9]+}/play", h.PlayVideo).Methods(http.MethodPost)
	api.HandleFunc("/thumbnail/{id:[0-9]+}", h.GetThumbnail).Methods(http.MethodGet)
	api.HandleFunc("/events", h.Events).Methods(http.MethodGet)
	api.HandleFunc("/reload", h.Reload).Methods(http.MethodPost)
	api.HandleFunc("/playlists", h.ListPlaylists).Methods(http.MethodGet)
	api.HandleFunc("/playlists/{id}", h.GetPlaylist).Methods(http.MethodGet)
	api.HandleFunc("/playlists/{id}/wpl", h.ExportPlaylist).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	return r
}
