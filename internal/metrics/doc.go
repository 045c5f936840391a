// Package metrics provides Prometheus instrumentation for pixel-catalog.
//
// All metrics are prefixed with "pixel_catalog_" and registered with the
// default registry through promauto, so importing the package is enough to
// expose them on /metrics.
//
// # Metric Categories
//
//   - HTTP: request counts, durations and in-flight requests
//   - Database: media index query counts and durations by operation
//   - Indexer: runs, files processed, errors, running gauge
//   - Catalog: scans, entries produced, rows dropped for missing files
//   - Enrichment: outcomes ("ok", "partial", "unavailable") and duration
//   - Thumbnail: extraction outcomes, cache lookups per tier, gate rejections
//   - Pipeline: per-row task results, queue depth, worker count
//   - Filesystem: stale NFS handle retries
//   - Player: handoff results
//
// Call InitializeMetrics once at startup so labelled series exist before the
// first scrape.
package metrics
