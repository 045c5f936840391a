package catalog

import (
	"context"
	"strconv"
	"strings"

	"pixel-catalog/internal/enricher"
)

// DefaultURIBase is the reference base handed to the player when none is
// configured.
const DefaultURIBase = "content://media/external/video/media"

// Placeholders set by the scanner until enrichment arrives.
const (
	PlaceholderCodec      = "Auto"
	PlaceholderResolution = "HD"
)

// Entry is one discovered video file. Identity and path never change after
// the scanner creates it; technical facts are attached with WithFacts.
type Entry struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Path       string `json:"path"`
	URI        string `json:"uri"`
	DurationMs int64  `json:"durationMs"`
	Duration   string `json:"duration"`
	SizeBytes  int64  `json:"sizeBytes"`
	Size       string `json:"size"`
	Container  string `json:"container"`
	Codec      string `json:"codec"`
	Resolution string `json:"resolution"`
}

// WithFacts returns a copy of e carrying the given codec and resolution.
// The receiver is left untouched.
func (e Entry) WithFacts(f enricher.Facts) Entry {
	e.Codec = f.Codec
	e.Resolution = f.Resolution
	return e
}

// IndexRow is one row of the media index.
type IndexRow struct {
	ID          int64
	DisplayName string
	Path        string
	SizeBytes   int64
	DurationMs  int64
}

// MediaIndex yields index rows ordered newest-first.
type MediaIndex interface {
	Rows(ctx context.Context) ([]IndexRow, error)
}

// MediaIndexFunc adapts a function to MediaIndex.
type MediaIndexFunc func(ctx context.Context) ([]IndexRow, error)

// Rows implements MediaIndex.
func (f MediaIndexFunc) Rows(ctx context.Context) ([]IndexRow, error) {
	return f(ctx)
}

// ExistsFunc reports whether a file is currently present on storage.
type ExistsFunc func(path string) bool

// URIFor returns the player reference for id under DefaultURIBase.
func URIFor(id int64) string {
	return JoinURI(DefaultURIBase, id)
}

// JoinURI appends id to base.
func JoinURI(base string, id int64) string {
	return strings.TrimRight(base, "/") + "/" + strconv.FormatInt(id, 10)
}
