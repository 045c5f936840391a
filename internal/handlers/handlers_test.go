package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pixel-catalog/internal/catalog"
	"pixel-catalog/internal/database"
	"pixel-catalog/internal/decoder/decodertest"
	"pixel-catalog/internal/enricher"
	"pixel-catalog/internal/indexer"
	"pixel-catalog/internal/pipeline"
	"pixel-catalog/internal/player"
	"pixel-catalog/internal/playlist"
	"pixel-catalog/internal/thumbnail"
)

type stubIndexer struct {
	mu       sync.Mutex
	triggers int
	status   indexer.HealthStatus
}

func (s *stubIndexer) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers++
}

func (s *stubIndexer) IsReady() bool { return s.status.Ready }

func (s *stubIndexer) GetHealthStatus() indexer.HealthStatus { return s.status }

type stubStats struct {
	stats database.IndexStats
}

func (s stubStats) GetStats() database.IndexStats { return s.stats }

type stubLauncher struct {
	mu          sync.Mutex
	ref         string
	contentType string
	err         error
}

func (s *stubLauncher) Launch(_ context.Context, ref, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ref, s.contentType = ref, contentType
	return s.err
}

type testEnv struct {
	handler  http.Handler
	pipeline *pipeline.Pipeline
	indexer  *stubIndexer
	launcher *stubLauncher
	index    []catalog.IndexRow
	mu       sync.Mutex
}

func (e *testEnv) setIndex(rows ...catalog.IndexRow) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.index = rows
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fake := decodertest.New().
		Add("/videos/trip/beach.mkv", decodertest.Media{Codec: "hevc", Width: 3840, Height: 2160, Frame: decodertest.Solid(64, 36, color.White)}).
		Add("/videos/trip/old.avi", decodertest.Media{Codec: "mpeg4", Width: 640, Height: 480}).
		Add("/videos/home/broken.mp4", decodertest.Media{OpenErr: errors.New("moov atom not found")})

	env := &testEnv{
		indexer:  &stubIndexer{status: indexer.HealthStatus{Ready: true, Uptime: "1m"}},
		launcher: &stubLauncher{},
	}
	env.setIndex(
		catalog.IndexRow{ID: 3, DisplayName: "beach.mkv", Path: "/videos/trip/beach.mkv", SizeBytes: 2 << 30, DurationMs: 125000},
		catalog.IndexRow{ID: 2, DisplayName: "old.avi", Path: "/videos/trip/old.avi", SizeBytes: 500 << 20, DurationMs: 60000},
		catalog.IndexRow{ID: 1, DisplayName: "broken.mp4", Path: "/videos/home/broken.mp4", SizeBytes: 1 << 20, DurationMs: 0},
	)

	index := catalog.MediaIndexFunc(func(context.Context) ([]catalog.IndexRow, error) {
		env.mu.Lock()
		defer env.mu.Unlock()
		return append([]catalog.IndexRow(nil), env.index...), nil
	})
	scanner := catalog.NewScanner(index, func(string) bool { return true })

	cache := thumbnail.NewCache(thumbnail.NewExtractor(fake), thumbnail.CacheConfig{Width: 32, Height: 18})
	env.pipeline = pipeline.New(scanner, enricher.New(fake), cache, pipeline.Config{Workers: 2})
	t.Cleanup(env.pipeline.Close)

	if err := <-env.pipeline.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	stats := stubStats{stats: database.IndexStats{TotalVideos: 3, TotalBytes: 2<<30 + 500<<20 + 1<<20, IndexDuration: "1s"}}
	env.handler = New(env.pipeline, cache, env.indexer, stats, env.launcher).Router()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(method, path, http.NoBody))
	return rec
}

func (e *testEnv) waitRow(t *testing.T, id int64, ready func(pipeline.RowState) bool) pipeline.RowState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		row, ok := e.pipeline.Row(id)
		if ok && ready(row) {
			return row
		}
		if time.Now().After(deadline) {
			t.Fatalf("row %d not ready: %+v", id, row)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestListVideos(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/videos")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var rows []pipeline.RowState
	if err := json.NewDecoder(rec.Body).Decode(&rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}

	first := rows[0].Entry
	if first.ID != 3 || first.Duration != "02:05" || first.Size != "2.0 GB" || first.Container != "MKV" {
		t.Errorf("first entry = %+v", first)
	}
	if first.Codec != catalog.PlaceholderCodec || first.Resolution != catalog.PlaceholderResolution {
		t.Errorf("placeholders = %q/%q", first.Codec, first.Resolution)
	}
}

func TestGetVideo(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/api/videos/2"); rec.Code != http.StatusOK {
		t.Errorf("known id status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/videos/99"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/videos/abc"); rec.Code != http.StatusNotFound {
		t.Errorf("non-numeric id status = %d, want 404 from router", rec.Code)
	}
}

func TestVisibleEnrichesRow(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/api/videos/3/visible"); rec.Code != http.StatusNoContent {
		t.Fatalf("visible status = %d", rec.Code)
	}

	row := env.waitRow(t, 3, func(r pipeline.RowState) bool { return r.FactsReady && r.ThumbnailReady })
	if row.Entry.Codec != "HEVC" || row.Entry.Resolution != "4K" {
		t.Errorf("facts = %q/%q, want HEVC/4K", row.Entry.Codec, row.Entry.Resolution)
	}
	if !row.HasThumbnail {
		t.Error("expected a thumbnail for an mkv with a frame")
	}

	if rec := env.do(t, http.MethodPost, "/api/videos/3/hidden"); rec.Code != http.StatusNoContent {
		t.Errorf("hidden status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/videos/42/visible"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown visible status = %d, want 404", rec.Code)
	}
}

func TestVisibleUnavailableFacts(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/videos/1/visible")

	row := env.waitRow(t, 1, func(r pipeline.RowState) bool { return r.FactsReady && r.ThumbnailReady })
	if row.Entry.Codec != enricher.NotAvailable || row.Entry.Resolution != enricher.NotAvailable {
		t.Errorf("facts = %q/%q, want N/A sentinels", row.Entry.Codec, row.Entry.Resolution)
	}
	if row.HasThumbnail {
		t.Error("broken file must not have a thumbnail")
	}
}

func TestGetThumbnail(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/thumbnail/3")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty thumbnail body")
	}

	for _, path := range []string{"/api/thumbnail/2", "/api/thumbnail/1", "/api/thumbnail/77"} {
		if rec := env.do(t, http.MethodGet, path); rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestPlayVideo(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/videos/2/play")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.launcher.ref != catalog.URIFor(2) {
		t.Errorf("ref = %q, want %q", env.launcher.ref, catalog.URIFor(2))
	}
	if env.launcher.contentType != "video/*" {
		t.Errorf("contentType = %q", env.launcher.contentType)
	}

	env.launcher.err = player.ErrNoCommand
	if rec := env.do(t, http.MethodPost, "/api/videos/2/play"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("no command status = %d, want 503", rec.Code)
	}

	env.launcher.err = errors.New("exec: not found")
	if rec := env.do(t, http.MethodPost, "/api/videos/2/play"); rec.Code != http.StatusBadGateway {
		t.Errorf("launch failure status = %d, want 502", rec.Code)
	}

	if rec := env.do(t, http.MethodPost, "/api/videos/9/play"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}
}

func TestReload(t *testing.T) {
	env := newTestEnv(t)
	env.setIndex(catalog.IndexRow{ID: 10, DisplayName: "new.webm", Path: "/videos/new.webm"})

	rec := env.do(t, http.MethodPost, "/api/reload")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.indexer.triggers != 1 {
		t.Errorf("indexer triggers = %d, want 1", env.indexer.triggers)
	}
	if _, ok := env.pipeline.Row(10); !ok {
		t.Error("reloaded row missing")
	}
	if _, ok := env.pipeline.Row(3); ok {
		t.Error("old row still present after reload")
	}
}

func TestPlaylists(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/playlists")
	var list []playlistSummary
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(playlists) = %d, want 2", len(list))
	}
	if list[0].Title != "trip" || list[0].Count != 2 {
		t.Errorf("first playlist = %+v", list[0])
	}

	rec = env.do(t, http.MethodGet, "/api/playlists/"+list[0].ID)
	var full playlist.Playlist
	if err := json.NewDecoder(rec.Body).Decode(&full); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(full.Videos) != 2 {
		t.Errorf("videos = %d, want 2", len(full.Videos))
	}

	rec = env.do(t, http.MethodGet, "/api/playlists/"+list[0].ID+"/wpl")
	if rec.Code != http.StatusOK {
		t.Fatalf("wpl status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `trip.wpl`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	var doc playlist.WPL
	if err := xml.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("wpl unmarshal: %v", err)
	}

	if rec := env.do(t, http.MethodGet, "/api/playlists/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown playlist status = %d", rec.Code)
	}
}

func TestStatsAndVersion(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/stats")
	var stats StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalVideos != 3 || stats.CatalogRows != 3 || stats.Playlists != 2 {
		t.Errorf("stats = %+v", stats)
	}

	if rec := env.do(t, http.MethodGet, "/api/version"); rec.Code != http.StatusOK {
		t.Errorf("version status = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d", rec.Code)
	}

	env.indexer.status = indexer.HealthStatus{Ready: false}
	rec := env.do(t, http.MethodGet, "/healthz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("starting healthz status = %d, want 503", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != statusStarting {
		t.Errorf("status = %q, want %q", resp.Status, statusStarting)
	}

	if rec := env.do(t, http.MethodHead, "/livez"); rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("HEAD livez = %d with %d body bytes", rec.Code, rec.Body.Len())
	}
}

func TestEvents(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	post, err := http.Post(srv.URL+"/api/videos/3/visible", "application/json", http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	post.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if sc.Text() == "event: facts" {
			return
		}
	}
	t.Fatalf("no facts event received: %v", sc.Err())
}

func TestWPLFilename(t *testing.T) {
	tests := map[string]string{
		"trip":        "trip.wpl",
		`a"b`:         "a_b.wpl",
		"":            "playlist.wpl",
		"line\nbreak": "line_break.wpl",
	}
	for in, want := range tests {
		if got := wplFilename(in); got != want {
			t.Errorf("wplFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPlayVideoDisabledPlayer(t *testing.T) {
	env := newTestEnv(t)
	cache := thumbnail.NewCache(thumbnail.NewExtractor(decodertest.New()), thumbnail.CacheConfig{})
	h := New(env.pipeline, cache, env.indexer, stubStats{}, player.NewCommandLauncher(player.DisabledCommand)).Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/videos/2/play", http.NoBody))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
