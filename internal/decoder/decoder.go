package decoder

import (
	"context"
	"errors"
	"image"
	"time"
)

var (
	// ErrNotFound is returned when the path cannot be opened.
	ErrNotFound = errors.New("decoder: file not found")
	// ErrUnsupported is returned when the file has no decodable video stream.
	ErrUnsupported = errors.New("decoder: no decodable video stream")
	// ErrSessionClosed is returned by Session methods after Close.
	ErrSessionClosed = errors.New("decoder: session closed")
	// ErrNoFrame is returned when a frame request produced no image.
	ErrNoFrame = errors.New("decoder: no frame produced")
)

// SeekMode selects how precisely FrameAt seeks.
type SeekMode int

const (
	// SeekClosest returns the keyframe nearest the requested time. Cheap,
	// and good enough for previews.
	SeekClosest SeekMode = iota
	// SeekExact decodes forward to the requested time.
	SeekExact
)

func (m SeekMode) String() string {
	if m == SeekExact {
		return "exact"
	}
	return "closest"
}

// Decoder opens decode sessions against media files.
type Decoder interface {
	Open(ctx context.Context, path string) (Session, error)
}

// Session is a scoped handle on one opened file. Callers must Close it on
// every path; Close is idempotent.
type Session interface {
	// Codec returns the video codec identifier as reported by the decoder.
	Codec() (string, bool)
	Width() (int, bool)
	Height() (int, bool)
	DurationMs() (int64, bool)
	FrameAt(ctx context.Context, at time.Duration, mode SeekMode) (image.Image, error)
	Close() error
}
