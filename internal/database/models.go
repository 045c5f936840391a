package database

import "time"

// Video is one row of the videos table.
type Video struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"displayName"`
	Path        string    `json:"path"`
	SizeBytes   int64     `json:"sizeBytes"`
	DurationMs  int64     `json:"durationMs"`
	ModTime     time.Time `json:"modTime"`
	DateAdded   time.Time `json:"dateAdded"`
}

// IndexStats summarises the media index.
type IndexStats struct {
	TotalVideos   int       `json:"totalVideos"`
	TotalBytes    int64     `json:"totalBytes"`
	LastIndexed   time.Time `json:"lastIndexed"`
	IndexDuration string    `json:"indexDuration"`
}
