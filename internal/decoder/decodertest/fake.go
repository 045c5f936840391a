// Package decodertest provides an in-memory decoder.Decoder for tests.
package decodertest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"pixel-catalog/internal/decoder"
)

// Media describes what the fake returns for one path. Zero values mean the
// corresponding fact is absent.
type Media struct {
	Codec      string
	Width      int
	Height     int
	DurationMs int64
	Frame      image.Image

	OpenErr  error
	FrameErr error
	// PanicOnOpen simulates a crashing native binding.
	PanicOnOpen bool
}

// FrameRequest records one FrameAt call.
type FrameRequest struct {
	Path string
	At   time.Duration
	Mode decoder.SeekMode
}

// Fake is a decoder.Decoder over a fixed set of paths. It counts opens and
// closes per path so tests can check every session is released.
type Fake struct {
	mu     sync.Mutex
	media  map[string]Media
	opens  map[string]int
	closes map[string]int
	frames []FrameRequest

	// Block, when non-nil, makes FrameAt wait until it is closed or the
	// call's context is done.
	Block chan struct{}
	// Started receives the path each time FrameAt begins waiting on Block.
	Started chan string
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		media:  make(map[string]Media),
		opens:  make(map[string]int),
		closes: make(map[string]int),
	}
}

// Add registers media for path.
func (f *Fake) Add(path string, m Media) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media[path] = m
	return f
}

// Open implements decoder.Decoder.
func (f *Fake) Open(ctx context.Context, path string) (decoder.Session, error) {
	f.mu.Lock()
	m, ok := f.media[path]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", decoder.ErrNotFound, path)
	}
	if m.PanicOnOpen {
		panic("decodertest: native decoder crashed on " + path)
	}
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}

	f.mu.Lock()
	f.opens[path]++
	f.mu.Unlock()

	return &session{fake: f, path: path, media: m}, nil
}

// Opens returns how many sessions were opened for path.
func (f *Fake) Opens(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens[path]
}

// Closes returns how many sessions were closed for path.
func (f *Fake) Closes(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes[path]
}

// Outstanding returns the number of sessions opened but not yet closed.
func (f *Fake) Outstanding() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for p, o := range f.opens {
		n += o - f.closes[p]
	}
	return n
}

// Frames returns a copy of every frame request made so far.
func (f *Fake) Frames() []FrameRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FrameRequest(nil), f.frames...)
}

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

type session struct {
	fake   *Fake
	path   string
	media  Media
	mu     sync.Mutex
	closed bool
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *session) Codec() (string, bool) {
	if s.isClosed() || s.media.Codec == "" {
		return "", false
	}
	return s.media.Codec, true
}

func (s *session) Width() (int, bool) {
	if s.isClosed() || s.media.Width == 0 {
		return 0, false
	}
	return s.media.Width, true
}

func (s *session) Height() (int, bool) {
	if s.isClosed() || s.media.Height == 0 {
		return 0, false
	}
	return s.media.Height, true
}

func (s *session) DurationMs() (int64, bool) {
	if s.isClosed() || s.media.DurationMs == 0 {
		return 0, false
	}
	return s.media.DurationMs, true
}

func (s *session) FrameAt(ctx context.Context, at time.Duration, mode decoder.SeekMode) (image.Image, error) {
	if s.isClosed() {
		return nil, decoder.ErrSessionClosed
	}

	s.fake.mu.Lock()
	s.fake.frames = append(s.fake.frames, FrameRequest{Path: s.path, At: at, Mode: mode})
	block := s.fake.Block
	started := s.fake.Started
	s.fake.mu.Unlock()

	if block != nil {
		if started != nil {
			started <- s.path
		}
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if s.media.FrameErr != nil {
		return nil, s.media.FrameErr
	}
	if s.media.Frame == nil {
		return nil, fmt.Errorf("%w: %s", decoder.ErrNoFrame, s.path)
	}
	return s.media.Frame, nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.fake.mu.Lock()
	s.fake.closes[s.path]++
	s.fake.mu.Unlock()
	return nil
}
