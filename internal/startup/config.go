package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"pixel-catalog/internal/catalog"
	"pixel-catalog/internal/logging"
	"pixel-catalog/internal/player"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all application configuration
type Config struct {
	MediaDir        string
	CacheDir        string
	DatabaseDir     string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	IndexInterval   time.Duration
	PipelineWorkers int

	ThumbnailWidth         int
	ThumbnailHeight        int
	ThumbnailMemoryEntries int
	UseVips                bool

	FFprobePath string
	FFmpegPath  string
	// FrameCodec is the intermediate image format ffmpeg emits: png or bmp.
	FrameCodec string

	PlayerCmd     string
	PlayerURIBase string

	// Derived paths
	DatabasePath string
	ThumbnailDir string

	// ThumbnailsEnabled reports whether the disk tier of the thumbnail
	// cache is usable. Thumbnails are still served from memory without it.
	ThumbnailsEnabled bool
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	section("CONFIGURATION")

	cfg := &Config{
		MediaDir:               getEnv("MEDIA_DIR", "/media"),
		CacheDir:               getEnv("CACHE_DIR", "/cache"),
		DatabaseDir:            getEnv("DATABASE_DIR", "/database"),
		Port:                   getEnv("PORT", "8080"),
		MetricsPort:            getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:         getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks:        getEnvBool("LOG_HEALTH_CHECKS", false),
		IndexInterval:          getEnvDuration("INDEX_INTERVAL", 30*time.Minute),
		PipelineWorkers:        getEnvInt("PIPELINE_WORKERS", 0),
		ThumbnailMemoryEntries: getEnvInt("THUMBNAIL_MEMORY_ENTRIES", 256),
		UseVips:                getEnvBool("USE_VIPS", false),
		FFprobePath:            getEnv("FFPROBE_PATH", "ffprobe"),
		FFmpegPath:             getEnv("FFMPEG_PATH", "ffmpeg"),
		FrameCodec:             getEnv("FRAME_CODEC", "png"),
		PlayerCmd:              getEnv("PLAYER_CMD", player.DefaultCommand),
		PlayerURIBase:          getEnv("PLAYER_URI_BASE", catalog.DefaultURIBase),
	}

	size := getEnv("THUMBNAIL_SIZE", "320x180")
	w, h, err := parseSize(size)
	if err != nil {
		logging.Warn("  Invalid THUMBNAIL_SIZE %q (%v), using default: 320x180", size, err)
		w, h = 320, 180
	}
	cfg.ThumbnailWidth, cfg.ThumbnailHeight = w, h

	logging.Info("  MEDIA_DIR:                 %s", cfg.MediaDir)
	logging.Info("  CACHE_DIR:                 %s", cfg.CacheDir)
	logging.Info("  DATABASE_DIR:              %s", cfg.DatabaseDir)
	logging.Info("  PORT:                      %s", cfg.Port)
	logging.Info("  METRICS_PORT:              %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:           %v", cfg.MetricsEnabled)
	logging.Info("  INDEX_INTERVAL:            %v", cfg.IndexInterval)
	logging.Info("  PIPELINE_WORKERS:          %s", workersString(cfg.PipelineWorkers))
	logging.Info("  THUMBNAIL_SIZE:            %dx%d", cfg.ThumbnailWidth, cfg.ThumbnailHeight)
	logging.Info("  THUMBNAIL_MEMORY_ENTRIES:  %d", cfg.ThumbnailMemoryEntries)
	logging.Info("  USE_VIPS:                  %v", cfg.UseVips)
	logging.Info("  FFPROBE_PATH:              %s", cfg.FFprobePath)
	logging.Info("  FFMPEG_PATH:               %s", cfg.FFmpegPath)
	logging.Info("  FRAME_CODEC:               %s", cfg.FrameCodec)
	logging.Info("  PLAYER_CMD:                %s", cfg.PlayerCmd)
	logging.Info("  PLAYER_URI_BASE:           %s", cfg.PlayerURIBase)
	logging.Info("  LOG_HEALTH_CHECKS:         %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:                 %s", logging.GetLevel())

	section("DIRECTORY SETUP")

	for _, d := range []struct {
		name string
		path *string
	}{
		{"media", &cfg.MediaDir},
		{"cache", &cfg.CacheDir},
		{"database", &cfg.DatabaseDir},
	} {
		abs, err := filepath.Abs(*d.path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s directory path: %w", d.name, err)
		}
		*d.path = abs
		logging.Info("  %s directory (absolute): %s", strings.ToUpper(d.name[:1])+d.name[1:], abs)
	}

	// A missing media directory only means an empty catalog.
	if err := ensureDirectory(cfg.MediaDir, "media"); err != nil {
		logging.Warn("  Media directory issue: %v", err)
	}

	if err := ensureDirectory(cfg.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "catalog.db")
	cfg.ThumbnailDir = filepath.Join(cfg.CacheDir, "thumbnails")
	cfg.ThumbnailsEnabled = setupOptionalDir(cfg.ThumbnailDir, "thumbnails")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:         ENABLED (required)")
	logging.Info("    Thumbnail disk:   %s", enabledString(cfg.ThumbnailsEnabled))
	logging.Info("    libvips:          %s", enabledString(cfg.UseVips))
	logging.Info("    Metrics:          %s", enabledString(cfg.MetricsEnabled))

	return cfg, nil
}

// parseSize parses a "WIDTHxHEIGHT" bounding box.
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("expected WIDTHxHEIGHT")
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("width: %w", err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("height: %w", err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("dimensions must be positive")
	}
	return w, h, nil
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s disk cache will be disabled", name)
		return false
	}
	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s disk cache will be disabled", name)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	probe := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(probe, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(probe); err != nil {
		logging.Warn("failed to remove write test file %s: %v", probe, err)
	}
	return nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func workersString(n int) string {
	if n <= 0 {
		return "auto"
	}
	return strconv.Itoa(n)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
