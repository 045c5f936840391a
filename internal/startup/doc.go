// Package startup loads configuration and writes the startup and shutdown
// log sections.
//
// # Configuration
//
// [LoadConfig] reads the environment:
//
//   - MEDIA_DIR: root of the video library (default: /media)
//   - CACHE_DIR: thumbnail disk cache lives under CACHE_DIR/thumbnails (default: /cache)
//   - DATABASE_DIR: SQLite index location (default: /database)
//   - PORT: HTTP API port (default: 8080)
//   - METRICS_PORT, METRICS_ENABLED: Prometheus endpoint (default: 9090, true)
//   - INDEX_INTERVAL: periodic re-index as a Go duration (default: 30m)
//   - PIPELINE_WORKERS: concurrent decode tasks, 0 for auto (default: 0)
//   - THUMBNAIL_SIZE: bounding box as WIDTHxHEIGHT (default: 320x180)
//   - THUMBNAIL_MEMORY_ENTRIES: in-memory thumbnail cache size (default: 256)
//   - USE_VIPS: encode thumbnails with libvips (default: false)
//   - FFPROBE_PATH, FFMPEG_PATH: decoder binaries (default: from PATH)
//   - FRAME_CODEC: intermediate frame format, png or bmp (default: png)
//   - PLAYER_CMD: external player command line, "none" disables handoff
//     (default: xdg-open)
//   - PLAYER_URI_BASE: base of the content reference handed to the player
//   - LOG_LEVEL, LOG_HEALTH_CHECKS: logging controls
//
// The database directory must be writable. An unwritable cache directory
// only disables the thumbnail disk tier.
//
// Build metadata is injected with -ldflags and exposed via [GetBuildInfo].
package startup
