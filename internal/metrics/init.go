package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup.
func InitializeMetrics() {
	for _, status := range []string{"success", "error"} {
		CatalogScansTotal.WithLabelValues(status)
		PlayerLaunchesTotal.WithLabelValues(status)
	}

	for _, outcome := range []string{"ok", "partial", "unavailable"} {
		EnrichmentsTotal.WithLabelValues(outcome)
	}

	for _, outcome := range []string{"ok", "absent"} {
		ThumbnailExtractionsTotal.WithLabelValues(outcome)
	}

	for _, tier := range []string{"memory", "disk"} {
		ThumbnailCacheLookups.WithLabelValues(tier, "hit")
		ThumbnailCacheLookups.WithLabelValues(tier, "miss")
	}

	for _, kind := range []string{"facts", "thumbnail"} {
		PipelineTasksTotal.WithLabelValues(kind, "done")
		PipelineTasksTotal.WithLabelValues(kind, "abandoned")
	}

	for _, op := range []string{"upsert_video", "delete_missing", "list_rows", "count"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	FilesystemRetryAttempts.WithLabelValues("stat")
	FilesystemStaleErrors.WithLabelValues("stat")
}
