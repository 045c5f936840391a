// Package indexer keeps the media index in step with the media directory.
//
// Each run walks MEDIA_DIR, skipping hidden files and directories, and keeps
// files whose extension is a known video format. New or changed files have
// their duration probed through a decoder session on a small worker set;
// unchanged files reuse the duration already stored. Rows are upserted in
// batches and rows for files that were not seen are deleted at the end of
// the run.
//
// Runs happen at startup, every INDEX_INTERVAL, and on Trigger. Only one run
// is active at a time.
package indexer
