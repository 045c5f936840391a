package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixel-catalog/internal/decoder"
	"pixel-catalog/internal/decoder/decodertest"
)

func TestExtract(t *testing.T) {
	frame := decodertest.Solid(64, 36, color.RGBA{R: 200, A: 255})
	fake := decodertest.New().
		Add("/v/ok.mkv", decodertest.Media{Codec: "av1", Width: 64, Height: 36, Frame: frame}).
		Add("/v/noframe.mp4", decodertest.Media{Codec: "h264", Width: 64, Height: 36}).
		Add("/v/badstream.webm", decodertest.Media{FrameErr: errors.New("unsupported codec")}).
		Add("/v/corrupt.mkv", decodertest.Media{OpenErr: errors.New("moov atom not found")}).
		Add("/v/crash.mkv", decodertest.Media{PanicOnOpen: true})

	x := NewExtractor(fake)

	tests := []struct {
		name      string
		path      string
		wantImage bool
	}{
		{name: "frame extracted", path: "/v/ok.mkv", wantImage: true},
		{name: "no frame", path: "/v/noframe.mp4"},
		{name: "frame error", path: "/v/badstream.webm"},
		{name: "open error", path: "/v/corrupt.mkv"},
		{name: "missing file", path: "/v/deleted.mp4"},
		{name: "decoder panic", path: "/v/crash.mkv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var img image.Image
			require.NotPanics(t, func() { img = x.Extract(context.Background(), tt.path) })
			assert.Equal(t, tt.wantImage, img != nil)
		})
	}

	assert.Zero(t, fake.Outstanding(), "every opened session must be closed")
}

func TestExtractRequestsClosestFrameAtOneSecond(t *testing.T) {
	fake := decodertest.New().Add("/v/a.mkv", decodertest.Media{Frame: decodertest.Solid(8, 8, color.White)})
	NewExtractor(fake).Extract(context.Background(), "/v/a.mkv")

	frames := fake.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, time.Second, frames[0].At)
	assert.Equal(t, decoder.SeekClosest, frames[0].Mode)
}

func TestExtractCancelledReleasesSession(t *testing.T) {
	fake := decodertest.New().Add("/v/slow.mkv", decodertest.Media{Frame: decodertest.Solid(8, 8, color.White)})
	fake.Block = make(chan struct{})
	fake.Started = make(chan string, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan image.Image)
	go func() { done <- NewExtractor(fake).Extract(ctx, "/v/slow.mkv") }()

	<-fake.Started
	cancel()

	select {
	case img := <-done:
		assert.Nil(t, img)
	case <-time.After(2 * time.Second):
		t.Fatal("Extract did not return after cancellation")
	}
	assert.Zero(t, fake.Outstanding())
}

// countingSource wraps a Source and counts calls.
type countingSource struct {
	calls atomic.Int32
	delay time.Duration
	img   image.Image
}

func (s *countingSource) Extract(ctx context.Context, path string) image.Image {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.img
}

func testConfig(dir string) CacheConfig {
	return CacheConfig{Dir: dir, MaxEntries: 8, Width: 32, Height: 18, Quality: 80}
}

func TestCacheDecodesOncePerPath(t *testing.T) {
	src := &countingSource{img: decodertest.Solid(320, 180, color.RGBA{G: 255, A: 255})}
	c := NewCache(src, testConfig(""))

	first, err := c.Get(context.Background(), "/v/a.mkv")
	require.NoError(t, err)
	second, err := c.Get(context.Background(), "/v/a.mkv")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, src.calls.Load())

	img, err := jpeg.Decode(bytes.NewReader(first))
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), 32)
	assert.LessOrEqual(t, img.Bounds().Dy(), 18)
}

func TestCacheGateRejectsNonVideo(t *testing.T) {
	src := &countingSource{img: decodertest.Solid(8, 8, color.White)}
	c := NewCache(src, testConfig(""))

	for _, p := range []string{"/v/a.avi", "/pictures/b.jpg", "relative/c.mp4", "content://media/external/video/media/3"} {
		_, err := c.Get(context.Background(), p)
		assert.ErrorIs(t, err, ErrNotVideo, p)
	}
	assert.Zero(t, src.calls.Load(), "extractor must not be invoked for gated paths")
}

func TestCacheAbsentNotCached(t *testing.T) {
	src := &countingSource{}
	c := NewCache(src, testConfig(""))

	_, err := c.Get(context.Background(), "/v/broken.mp4")
	assert.ErrorIs(t, err, ErrAbsent)
	_, err = c.Get(context.Background(), "/v/broken.mp4")
	assert.ErrorIs(t, err, ErrAbsent)

	assert.EqualValues(t, 2, src.calls.Load())
	assert.Zero(t, c.Len())
}

func TestCacheConcurrentRequestsShareDecode(t *testing.T) {
	src := &countingSource{img: decodertest.Solid(64, 64, color.White), delay: 50 * time.Millisecond}
	c := NewCache(src, testConfig(""))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), "/v/shared.webm")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, src.calls.Load())
}

func TestCacheDiskTierSurvivesNewInstance(t *testing.T) {
	dir := t.TempDir()
	src := &countingSource{img: decodertest.Solid(64, 64, color.White)}

	first, err := NewCache(src, testConfig(dir)).Get(context.Background(), "/v/persist.mkv")
	require.NoError(t, err)

	again, err := NewCache(src, testConfig(dir)).Get(context.Background(), "/v/persist.mkv")
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestCacheEvictsOldest(t *testing.T) {
	src := &countingSource{img: decodertest.Solid(16, 16, color.White)}
	cfg := testConfig("")
	cfg.MaxEntries = 2
	c := NewCache(src, cfg)

	for _, p := range []string{"/v/1.mp4", "/v/2.mp4", "/v/3.mp4"} {
		_, err := c.Get(context.Background(), p)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())

	_, err := c.Get(context.Background(), "/v/1.mp4")
	require.NoError(t, err)
	assert.EqualValues(t, 4, src.calls.Load(), "evicted path is decoded again")
}

func TestCachePurge(t *testing.T) {
	dir := t.TempDir()
	src := &countingSource{img: decodertest.Solid(16, 16, color.White)}
	c := NewCache(src, testConfig(dir))

	_, err := c.Get(context.Background(), "/v/a.mp4")
	require.NoError(t, err)
	require.NoError(t, c.Purge())

	assert.Zero(t, c.Len())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCacheImage(t *testing.T) {
	src := &countingSource{img: decodertest.Solid(640, 360, color.White)}
	c := NewCache(src, testConfig(""))

	img, err := c.Image(context.Background(), "/v/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 18, img.Bounds().Dy())
}

func TestCacheCallerCancelFillsCacheInBackground(t *testing.T) {
	src := &countingSource{img: decodertest.Solid(16, 16, color.White), delay: 100 * time.Millisecond}
	c := NewCache(src, testConfig(""))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Get(ctx, "/v/late.mkv")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Eventually(t, func() bool { return c.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = c.Get(context.Background(), "/v/late.mkv")
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestNewCacheDefaults(t *testing.T) {
	c := NewCache(&countingSource{}, CacheConfig{})
	def := DefaultCacheConfig()
	assert.Equal(t, def.MaxEntries, c.cfg.MaxEntries)
	assert.Equal(t, def.Width, c.cfg.Width)
	assert.Equal(t, def.Quality, c.cfg.Quality)
}
