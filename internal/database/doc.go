// Package database stores the media index in SQLite.
//
// The index has one row per video file: a stable numeric id, display name,
// absolute path, size, duration and the time the file was first indexed.
// Rows are written by the indexer inside a batch transaction and read back
// newest-first by the catalog scanner through Rows, which satisfies
// catalog.MediaIndex.
//
// The database uses WAL mode so the scanner can read while the indexer
// writes.
package database
