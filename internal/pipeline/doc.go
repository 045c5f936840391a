// Package pipeline drives per-row enrichment and thumbnail extraction for
// the catalog list.
//
// Load scans the catalog off the caller's goroutine and installs the list.
// When the presentation layer reports a row as visible, the pipeline
// schedules at most one facts task and one thumbnail task for it on a
// bounded worker pool. Reporting the row hidden cancels the row's context;
// unfinished tasks are abandoned and will be scheduled again the next time
// the row becomes visible.
//
// Results flow back to a single writer goroutine, which merges them into
// that row only and publishes a RowUpdate to subscribers:
//
//	Visible(id) -> pool -> Enrich / Cache.Get -> writer -> RowUpdate
//
// Paths that fail the thumbnail dispatch gate are marked thumbnail-ready at
// load time and never reach the decoder.
package pipeline
