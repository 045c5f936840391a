package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixel_catalog_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pixel_catalog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pixel_catalog_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixel_catalog_db_queries_total",
			Help: "Total number of media index queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pixel_catalog_db_query_duration_seconds",
			Help:    "Media index query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pixel_catalog_db_transaction_duration_seconds",
			Help:    "Media index write transaction duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pixel_catalog_db_rows_affected",
			Help:    "Rows affected per media index write",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pixel_catalog_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pixel_catalog_indexer_runs_total",
			Help: "Total number of indexer runs",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pixel_catalog_indexer_last_run_duration_seconds",
			Help: "Duration of the last indexer run in seconds",
		},
	)

	IndexerFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pixel_catalog_indexer_files_processed_total",
			Help: "Total number of video files processed by the indexer",
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pixel_catalog_indexer_errors_total",
			Help: "Total number of indexer errors",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pixel_catalog_indexer_running",
			Help: "Whether the indexer is currently running (1 = running, 0 = idle)",
		},
	)
)

// Catalog scanner metrics
var (
	CatalogScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixel_catalog_scans_total",
			Help: "Total number of catalog scans by status",
		},
		[]string{"status"},
	)

	CatalogScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pixel_catalog_scan_duration_seconds",
			Help:    "Catalog scan duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	CatalogEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pixel_catalog_entries",
			Help: "Number of entries produced by the last catalog scan",
		},
	)

	CatalogRowsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pixel_catalog_rows_dropped_total",
			Help: "Index rows dropped because the referenced file no longer exists",
		},
	)
)

// Enrichment metrics
var (
	EnrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixel_catalog_enrichments_total",
			Help: "Total number of metadata enrichments by outcome",
		},
		[]string{"outcome"}, // "ok", "partial", "unavailable"
	)

	EnrichmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pixel_catalog_enrichment_duration_seconds",
			Help:    "Metadata enrichment duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixel_catalog_thumbnail_extractions_total",
			Help: "Total number of frame extractions by outcome",
		},
		[]string{"outcome"}, // "ok", "absent"
	)

	ThumbnailExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pixel_catalog_thumbnail_extraction_duration_seconds",
			Help:    "Frame extraction duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ThumbnailCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixel_catalog_thumbnail_cache_lookups_total",
			Help: "Thumbnail cache lookups by tier and result",
		},
		[]string{"tier", "result"}, // tier: "memory", "disk"; result: "hit", "miss"
	)

	ThumbnailCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pixel_catalog_thumbnail_cache_memory_entries",
			Help: "Number of encoded thumbnails held in memory",
		},
	)

	ThumbnailGateRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pixel_catalog_thumbnail_gate_rejections_total",
			Help: "Thumbnail requests rejected before decode because the path is not a frame-extraction container",
		},
	)
)

// Pipeline metrics
var (
	PipelineTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixel_catalog_pipeline_tasks_total",
			Help: "Per-row tasks by kind and result",
		},
		[]string{"kind", "result"}, // kind: "facts", "thumbnail"; result: "done", "abandoned"
	)

	PipelineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pixel_catalog_pipeline_queue_depth",
			Help: "Per-row tasks waiting for a worker",
		},
	)

	PipelineWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pixel_catalog_pipeline_workers",
			Help: "Number of pipeline workers",
		},
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixel_catalog_filesystem_retry_attempts_total",
			Help: "Filesystem operations retried after a stale NFS handle",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixel_catalog_filesystem_stale_errors_total",
			Help: "Stale NFS file handle errors observed",
		},
		[]string{"operation"},
	)
)

// Player metrics
var (
	PlayerLaunchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixel_catalog_player_launches_total",
			Help: "External player handoffs by status",
		},
		[]string{"status"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pixel_catalog_memory_usage_ratio",
			Help: "Heap usage as a ratio of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pixel_catalog_memory_paused",
			Help: "1 while decode work is held back for memory pressure",
		},
	)
)

// Library metrics, refreshed by Collector
var (
	LibraryVideos = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pixel_catalog_library_videos",
			Help: "Videos in the media index",
		},
	)

	LibraryBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pixel_catalog_library_bytes",
			Help: "Total size of indexed videos in bytes",
		},
	)

	LibraryFolders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pixel_catalog_library_folders",
			Help: "Folders holding at least one catalog entry",
		},
	)
)
