// Package handlers is the JSON/HTTP presentation adapter over the catalog
// pipeline.
//
// Clients list rows, report which rows are on screen (visible/hidden), and
// either poll rows or follow /api/events for updates as facts and previews
// arrive. Thumbnails are served from the thumbnail cache; rows without a
// preview answer 404. Playback is handed to the external player.
package handlers
