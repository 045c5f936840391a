package pipeline

import (
	"context"
	"errors"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixel-catalog/internal/catalog"
	"pixel-catalog/internal/decoder/decodertest"
	"pixel-catalog/internal/enricher"
	"pixel-catalog/internal/thumbnail"
)

const waitFor = 2 * time.Second

type stubScanner struct {
	mu      sync.Mutex
	entries []catalog.Entry
	err     error
}

func (s *stubScanner) Scan(ctx context.Context) ([]catalog.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]catalog.Entry(nil), s.entries...), s.err
}

func (s *stubScanner) set(entries ...catalog.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
}

// stubFacts counts Enrich calls. When block is set, calls wait for it or
// for cancellation.
type stubFacts struct {
	mu      sync.Mutex
	calls   map[string]int
	facts   enricher.Facts
	block   chan struct{}
	started chan string
}

func newStubFacts(f enricher.Facts) *stubFacts {
	return &stubFacts{calls: make(map[string]int), facts: f}
}

func (s *stubFacts) Enrich(ctx context.Context, path string) enricher.Facts {
	s.mu.Lock()
	s.calls[path]++
	block, started := s.block, s.started
	s.mu.Unlock()

	if started != nil {
		started <- path
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return enricher.Unavailable
		}
	}
	return s.facts
}

func (s *stubFacts) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

type stubThumbs struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func newStubThumbs(err error) *stubThumbs {
	return &stubThumbs{calls: make(map[string]int), err: err}
}

func (s *stubThumbs) Get(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	s.calls[path]++
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return []byte{0xff, 0xd8}, nil
}

func (s *stubThumbs) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func entry(id int64, path string) catalog.Entry {
	return catalog.Entry{
		ID:         id,
		Title:      path,
		Path:       path,
		Codec:      catalog.PlaceholderCodec,
		Resolution: catalog.PlaceholderResolution,
	}
}

func load(t *testing.T, p *Pipeline) {
	t.Helper()
	select {
	case err := <-p.Load(context.Background()):
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Load did not finish")
	}
}

func settled(p *Pipeline, id int64) func() bool {
	return func() bool {
		r, ok := p.Row(id)
		return ok && r.FactsReady && r.ThumbnailReady
	}
}

func TestLoadInstallsPendingRows(t *testing.T) {
	scanner := &stubScanner{entries: []catalog.Entry{entry(2, "/v/b.mkv"), entry(1, "/v/a.avi")}}
	p := New(scanner, newStubFacts(enricher.Facts{}), newStubThumbs(nil), Config{Workers: 2})
	defer p.Close()

	load(t, p)

	rows := p.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0].Entry.ID, "scanner order is kept")
	assert.Equal(t, enricher.PendingFacts, rows[0].Facts)
	assert.False(t, rows[0].FactsReady)
	assert.False(t, rows[0].ThumbnailReady)

	assert.True(t, rows[1].ThumbnailReady, "gated path is thumbnail-ready without decoding")
	assert.False(t, rows[1].HasThumbnail)
}

func TestLoadScanError(t *testing.T) {
	boom := errors.New("index unavailable")
	p := New(&stubScanner{err: boom}, newStubFacts(enricher.Facts{}), newStubThumbs(nil), Config{Workers: 1})
	defer p.Close()

	err := <-p.Load(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, p.Rows())
}

func TestVisibleSchedulesEachTaskOnce(t *testing.T) {
	scanner := &stubScanner{entries: []catalog.Entry{entry(1, "/v/a.mkv")}}
	facts := newStubFacts(enricher.Facts{Codec: "HEVC", Resolution: "4K"})
	thumbs := newStubThumbs(nil)
	p := New(scanner, facts, thumbs, Config{Workers: 4})
	defer p.Close()
	load(t, p)

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Visible(1))
	}
	require.Eventually(t, settled(p, 1), waitFor, 5*time.Millisecond)

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Visible(1))
	}
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, facts.count("/v/a.mkv"))
	assert.Equal(t, 1, thumbs.count("/v/a.mkv"))

	row, _ := p.Row(1)
	assert.Equal(t, "HEVC", row.Entry.Codec, "facts merged into the entry")
	assert.Equal(t, "4K", row.Entry.Resolution)
	assert.Equal(t, enricher.Facts{Codec: "HEVC", Resolution: "4K"}, row.Facts)
	assert.True(t, row.HasThumbnail)
}

func TestVisibleOnlyTouchesThatRow(t *testing.T) {
	scanner := &stubScanner{entries: []catalog.Entry{entry(1, "/v/a.mkv"), entry(2, "/v/b.mkv")}}
	facts := newStubFacts(enricher.Facts{Codec: "AV1", Resolution: "1080p"})
	p := New(scanner, facts, newStubThumbs(nil), Config{Workers: 2})
	defer p.Close()
	load(t, p)

	require.NoError(t, p.Visible(2))
	require.Eventually(t, settled(p, 2), waitFor, 5*time.Millisecond)

	other, _ := p.Row(1)
	assert.False(t, other.FactsReady)
	assert.Equal(t, catalog.PlaceholderCodec, other.Entry.Codec)
	assert.Zero(t, facts.count("/v/a.mkv"))
}

func TestAbsentThumbnailIsReadyWithoutImage(t *testing.T) {
	scanner := &stubScanner{entries: []catalog.Entry{entry(1, "/v/broken.mp4")}}
	p := New(scanner, newStubFacts(enricher.Unavailable), newStubThumbs(thumbnail.ErrAbsent), Config{Workers: 1})
	defer p.Close()
	load(t, p)

	require.NoError(t, p.Visible(1))
	require.Eventually(t, settled(p, 1), waitFor, 5*time.Millisecond)

	row, _ := p.Row(1)
	assert.False(t, row.HasThumbnail)
	assert.Equal(t, enricher.Unavailable, row.Facts)
}

func TestHiddenAbandonsAndVisibleReschedules(t *testing.T) {
	scanner := &stubScanner{entries: []catalog.Entry{entry(1, "/v/slow.mkv")}}
	facts := newStubFacts(enricher.Facts{Codec: "H264", Resolution: "720p"})
	facts.block = make(chan struct{})
	facts.started = make(chan string, 4)
	p := New(scanner, facts, newStubThumbs(nil), Config{Workers: 2})
	defer p.Close()
	load(t, p)

	require.NoError(t, p.Visible(1))
	<-facts.started
	require.NoError(t, p.Hidden(1))

	time.Sleep(20 * time.Millisecond)
	row, _ := p.Row(1)
	assert.False(t, row.FactsReady, "abandoned task must not be applied")

	require.NoError(t, p.Visible(1))
	<-facts.started
	close(facts.block)

	require.Eventually(t, func() bool {
		r, _ := p.Row(1)
		return r.FactsReady
	}, waitFor, 5*time.Millisecond)

	row, _ = p.Row(1)
	assert.Equal(t, "H264", row.Entry.Codec)
	assert.Equal(t, 2, facts.count("/v/slow.mkv"))
}

func TestUnknownRow(t *testing.T) {
	p := New(&stubScanner{}, newStubFacts(enricher.Facts{}), newStubThumbs(nil), Config{Workers: 1})
	defer p.Close()
	load(t, p)

	assert.ErrorIs(t, p.Visible(99), ErrUnknownRow)
	assert.ErrorIs(t, p.Hidden(99), ErrUnknownRow)
	_, ok := p.Row(99)
	assert.False(t, ok)
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	scanner := &stubScanner{entries: []catalog.Entry{entry(1, "/v/a.webm")}}
	p := New(scanner, newStubFacts(enricher.Facts{Codec: "VP9", Resolution: "2K"}), newStubThumbs(nil), Config{Workers: 1})
	defer p.Close()

	updates, unsubscribe := p.Subscribe()
	defer unsubscribe()

	load(t, p)
	require.NoError(t, p.Visible(1))

	seen := map[UpdateKind]RowUpdate{}
	timeout := time.After(waitFor)
	for len(seen) < 3 {
		select {
		case u := <-updates:
			seen[u.Kind] = u
		case <-timeout:
			t.Fatalf("missing updates, got %v", seen)
		}
	}

	assert.Equal(t, int64(1), seen[UpdateFacts].ID)
	assert.Equal(t, "VP9", seen[UpdateFacts].Row.Entry.Codec)
	assert.True(t, seen[UpdateThumbnail].Row.HasThumbnail)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	p := New(&stubScanner{}, newStubFacts(enricher.Facts{}), newStubThumbs(nil), Config{Workers: 1})
	defer p.Close()

	updates, unsubscribe := p.Subscribe()
	unsubscribe()
	unsubscribe()

	_, open := <-updates
	assert.False(t, open)
}

func TestReloadReplacesList(t *testing.T) {
	scanner := &stubScanner{entries: []catalog.Entry{entry(1, "/v/a.mkv")}}
	facts := newStubFacts(enricher.Facts{Codec: "H264", Resolution: "720p"})
	p := New(scanner, facts, newStubThumbs(nil), Config{Workers: 1})
	defer p.Close()
	load(t, p)

	require.NoError(t, p.Visible(1))
	require.Eventually(t, settled(p, 1), waitFor, 5*time.Millisecond)

	scanner.set(entry(2, "/v/b.mkv"), entry(1, "/v/a.mkv"))
	load(t, p)

	rows := p.Rows()
	require.Len(t, rows, 2)
	assert.False(t, rows[1].FactsReady, "facts are recomputed after reload")

	require.NoError(t, p.Visible(1))
	require.Eventually(t, settled(p, 1), waitFor, 5*time.Millisecond)
	assert.Equal(t, 2, facts.count("/v/a.mkv"))
}

func TestCloseStopsPipeline(t *testing.T) {
	scanner := &stubScanner{entries: []catalog.Entry{entry(1, "/v/a.mkv")}}
	p := New(scanner, newStubFacts(enricher.Facts{}), newStubThumbs(nil), Config{Workers: 1})
	load(t, p)

	updates, _ := p.Subscribe()
	p.Close()
	p.Close()

	assert.ErrorIs(t, p.Visible(1), ErrClosed)
	_, open := <-updates
	assert.False(t, open, "subscriber channel closed on Close")

	late, _ := p.Subscribe()
	_, open = <-late
	assert.False(t, open)
}

func TestEndToEndReleasesSessions(t *testing.T) {
	fake := decodertest.New().
		Add("/v/a.mkv", decodertest.Media{Codec: "hevc", Width: 3840, Height: 2160, Frame: decodertest.Solid(64, 36, color.White)}).
		Add("/v/b.mp4", decodertest.Media{OpenErr: errors.New("corrupt")})

	scanner := &stubScanner{entries: []catalog.Entry{entry(1, "/v/a.mkv"), entry(2, "/v/b.mp4")}}
	cache := thumbnail.NewCache(thumbnail.NewExtractor(fake), thumbnail.CacheConfig{MaxEntries: 4, Width: 32, Height: 18, Quality: 80})
	p := New(scanner, enricher.New(fake), cache, Config{Workers: 4})
	defer p.Close()
	load(t, p)

	require.NoError(t, p.Visible(1))
	require.NoError(t, p.Visible(2))
	require.Eventually(t, settled(p, 1), waitFor, 5*time.Millisecond)
	require.Eventually(t, settled(p, 2), waitFor, 5*time.Millisecond)

	a, _ := p.Row(1)
	assert.Equal(t, "HEVC", a.Entry.Codec)
	assert.Equal(t, "4K", a.Entry.Resolution)
	assert.True(t, a.HasThumbnail)

	b, _ := p.Row(2)
	assert.Equal(t, enricher.Unavailable, b.Facts)
	assert.False(t, b.HasThumbnail)

	assert.Zero(t, fake.Outstanding())
}

func TestHiddenDuringDecodeReleasesSession(t *testing.T) {
	fake := decodertest.New().Add("/v/a.mkv", decodertest.Media{Codec: "h264", Width: 1280, Height: 720, Frame: decodertest.Solid(8, 8, color.White)})
	fake.Block = make(chan struct{})
	fake.Started = make(chan string, 1)

	scanner := &stubScanner{entries: []catalog.Entry{entry(1, "/v/a.mkv")}}
	p := New(scanner, newStubFacts(enricher.Facts{Codec: "H264", Resolution: "720p"}),
		thumbnail.NewCache(thumbnail.NewExtractor(fake), thumbnail.CacheConfig{}), Config{Workers: 2})
	defer p.Close()
	load(t, p)

	require.NoError(t, p.Visible(1))
	<-fake.Started
	require.NoError(t, p.Hidden(1))

	// The cache finishes the decode in the background; unblocking lets it
	// complete and close the session.
	close(fake.Block)
	require.Eventually(t, func() bool { return fake.Outstanding() == 0 && fake.Opens("/v/a.mkv") == 1 }, waitFor, 5*time.Millisecond)

	row, _ := p.Row(1)
	assert.False(t, row.ThumbnailReady, "abandoned thumbnail is not applied")

	require.NoError(t, p.Visible(1))
	require.Eventually(t, settled(p, 1), waitFor, 5*time.Millisecond)
	row, _ = p.Row(1)
	assert.True(t, row.HasThumbnail)
	assert.Equal(t, 1, fake.Opens("/v/a.mkv"), "second request is served from the cache")
}

// chanGate holds decode tasks until open is closed.
type chanGate struct {
	open    chan struct{}
	waiting chan struct{}
}

func (g *chanGate) Wait(ctx context.Context) error {
	select {
	case g.waiting <- struct{}{}:
	default:
	}
	select {
	case <-g.open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestGateHoldsDecodes(t *testing.T) {
	gate := &chanGate{open: make(chan struct{}), waiting: make(chan struct{}, 4)}
	facts := newStubFacts(enricher.Facts{Codec: "VP9", Resolution: "2K"})
	thumbs := newStubThumbs(nil)
	p := New(&stubScanner{entries: []catalog.Entry{entry(1, "/v/a.webm")}}, facts, thumbs, Config{Workers: 2, Gate: gate})
	defer p.Close()
	load(t, p)

	require.NoError(t, p.Visible(1))
	select {
	case <-gate.waiting:
	case <-time.After(waitFor):
		t.Fatal("decode task never reached the gate")
	}
	assert.Zero(t, facts.count("/v/a.webm"), "no decode while the gate is closed")

	close(gate.open)
	require.Eventually(t, settled(p, 1), waitFor, 5*time.Millisecond)
	assert.Equal(t, 1, facts.count("/v/a.webm"))
	assert.Equal(t, 1, thumbs.count("/v/a.webm"))
}

func TestHiddenWhileGatedSkipsDecode(t *testing.T) {
	gate := &chanGate{open: make(chan struct{}), waiting: make(chan struct{}, 4)}
	facts := newStubFacts(enricher.Facts{Codec: "H264", Resolution: "720p"})
	thumbs := newStubThumbs(nil)
	p := New(&stubScanner{entries: []catalog.Entry{entry(1, "/v/a.mp4")}}, facts, thumbs, Config{Workers: 2, Gate: gate})
	defer p.Close()
	load(t, p)

	require.NoError(t, p.Visible(1))
	select {
	case <-gate.waiting:
	case <-time.After(waitFor):
		t.Fatal("decode task never reached the gate")
	}
	require.NoError(t, p.Hidden(1))

	require.Eventually(t, func() bool {
		r, ok := p.Row(1)
		return ok && !r.FactsReady && !r.ThumbnailReady
	}, waitFor, 5*time.Millisecond)

	close(gate.open)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, facts.count("/v/a.mp4"))
	assert.Zero(t, thumbs.count("/v/a.mp4"))
}

func TestVisibleQueuedBehindLoadSeesNewList(t *testing.T) {
	scanner := &stubScanner{entries: []catalog.Entry{entry(1, "/v/a.mkv")}}
	facts := newStubFacts(enricher.Facts{Codec: "AV1", Resolution: "4K"})
	p := New(scanner, facts, newStubThumbs(nil), Config{Workers: 1})
	defer p.Close()
	load(t, p)

	// Queue the install directly so the calls below are handled after it,
	// whether or not the writer has reached it yet.
	installed := make(chan struct{})
	require.NoError(t, p.send(loadCmd{entries: []catalog.Entry{entry(2, "/v/b.mkv")}, installed: installed}))

	assert.ErrorIs(t, p.Visible(1), ErrUnknownRow, "row dropped by the new list")
	assert.ErrorIs(t, p.Hidden(1), ErrUnknownRow)
	require.NoError(t, p.Visible(2))

	<-installed
	require.Eventually(t, settled(p, 2), waitFor, 5*time.Millisecond)
	assert.Zero(t, facts.count("/v/a.mkv"))
	assert.Equal(t, 1, facts.count("/v/b.mkv"))
}

func TestVisibleAfterClose(t *testing.T) {
	p := New(&stubScanner{entries: []catalog.Entry{entry(1, "/v/a.mkv")}}, newStubFacts(enricher.Facts{}), newStubThumbs(nil), Config{Workers: 1})
	load(t, p)
	p.Close()

	assert.ErrorIs(t, p.Visible(1), ErrClosed)
	assert.ErrorIs(t, p.Hidden(1), ErrClosed)
}
