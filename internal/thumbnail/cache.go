package thumbnail

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"

	"pixel-catalog/internal/logging"
	"pixel-catalog/internal/mediatypes"
	"pixel-catalog/internal/metrics"

	"github.com/disintegration/imaging"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotVideo is returned for paths that fail the frame-extraction gate.
	// The extractor is not called for them.
	ErrNotVideo = errors.New("thumbnail: not a frame-extraction container")
	// ErrAbsent is returned when no preview frame could be extracted.
	ErrAbsent = errors.New("thumbnail: no preview available")
)

// Source produces a preview frame for a path, or nil.
type Source interface {
	Extract(ctx context.Context, path string) image.Image
}

// CacheConfig configures the thumbnail cache.
type CacheConfig struct {
	// Dir holds encoded thumbnails on disk. Empty disables the disk tier.
	Dir string
	// MaxEntries bounds the in-memory tier; oldest entries are evicted first.
	MaxEntries int
	// Width and Height bound the encoded thumbnail; aspect ratio is kept.
	Width   int
	Height  int
	Quality int
}

// DefaultCacheConfig returns a memory-only configuration with 320x180 JPEGs.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxEntries: 256,
		Width:      320,
		Height:     180,
		Quality:    80,
	}
}

// Cache is the image pipeline in front of the extractor. Results are keyed
// by path and held in memory and on disk, so a path is decoded at most once
// per cache lifetime. Concurrent requests for the same path share a single
// decode. Absent results are not cached.
type Cache struct {
	cfg   CacheConfig
	src   Source
	group singleflight.Group

	mu    sync.Mutex
	mem   map[string][]byte
	order []string
}

// NewCache creates a cache over src.
func NewCache(src Source, cfg CacheConfig) *Cache {
	def := DefaultCacheConfig()
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = def.Quality
	}

	if cfg.Dir != "" {
		logging.Debug("Thumbnail cache: disk tier at %s", cfg.Dir)
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			logging.Warn("Thumbnail cache: failed to create cache dir, using memory only: %v", err)
			cfg.Dir = ""
		}
	}

	return &Cache{
		cfg: cfg,
		src: src,
		mem: make(map[string][]byte),
	}
}

// Get returns the JPEG-encoded preview for path.
//
// If ctx is cancelled while a decode is in flight, Get returns ctx.Err()
// and the decode finishes in the background, filling the cache for the
// next request.
func (c *Cache) Get(ctx context.Context, path string) ([]byte, error) {
	if !mediatypes.NeedsFrameExtraction(path) {
		metrics.ThumbnailGateRejections.Inc()
		return nil, ErrNotVideo
	}

	if data, ok := c.fromMemory(path); ok {
		return data, nil
	}

	ch := c.group.DoChan(path, func() (interface{}, error) {
		return c.load(context.WithoutCancel(ctx), path)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Image returns the decoded preview raster for path.
func (c *Cache) Image(ctx context.Context, path string) (image.Image, error) {
	data, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode cached thumbnail: %w", err)
	}
	return img, nil
}

// Len returns the number of thumbnails held in memory.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.mem)
}

// Purge drops every cached thumbnail from memory and disk.
func (c *Cache) Purge() error {
	c.mu.Lock()
	c.mem = make(map[string][]byte)
	c.order = nil
	c.mu.Unlock()
	metrics.ThumbnailCacheEntries.Set(0)

	if c.cfg.Dir == "" {
		return nil
	}
	entries, err := os.ReadDir(c.cfg.Dir)
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jpg" {
			continue
		}
		if err := os.Remove(filepath.Join(c.cfg.Dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Cache) load(ctx context.Context, path string) ([]byte, error) {
	if data, ok := c.fromDisk(path); ok {
		c.remember(path, data)
		return data, nil
	}

	img := c.src.Extract(ctx, path)
	if img == nil {
		return nil, ErrAbsent
	}

	data, err := encodeThumbnail(img, c.cfg.Width, c.cfg.Height, c.cfg.Quality)
	if err != nil {
		logging.Warn("Thumbnail cache: encode %s: %v", path, err)
		return nil, ErrAbsent
	}

	c.remember(path, data)
	c.toDisk(path, data)
	return data, nil
}

func (c *Cache) fromMemory(path string) ([]byte, bool) {
	c.mu.Lock()
	data, ok := c.mem[path]
	c.mu.Unlock()

	result := "miss"
	if ok {
		result = "hit"
	}
	metrics.ThumbnailCacheLookups.WithLabelValues("memory", result).Inc()
	return data, ok
}

func (c *Cache) remember(path string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.mem[path]; !ok {
		c.order = append(c.order, path)
	}
	c.mem[path] = data

	for len(c.order) > c.cfg.MaxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.mem, oldest)
	}
	metrics.ThumbnailCacheEntries.Set(float64(len(c.mem)))
}

// diskPath maps a media path to its cache file. The key is a hash so that
// paths with separators or odd characters stay flat and fixed length.
func (c *Cache) diskPath(path string) string {
	sum := blake2b.Sum256([]byte(path))
	return filepath.Join(c.cfg.Dir, hex.EncodeToString(sum[:16])+".jpg")
}

func (c *Cache) fromDisk(path string) ([]byte, bool) {
	if c.cfg.Dir == "" {
		return nil, false
	}
	data, err := os.ReadFile(c.diskPath(path))
	if err != nil || len(data) == 0 {
		metrics.ThumbnailCacheLookups.WithLabelValues("disk", "miss").Inc()
		return nil, false
	}
	metrics.ThumbnailCacheLookups.WithLabelValues("disk", "hit").Inc()
	logging.Debug("Thumbnail cache hit on disk: %s", path)
	return data, true
}

// toDisk writes through a temp file and rename so readers never see a
// partial JPEG.
func (c *Cache) toDisk(path string, data []byte) {
	if c.cfg.Dir == "" {
		return
	}
	dst := c.diskPath(path)

	tmp, err := os.CreateTemp(c.cfg.Dir, ".thumb-*.tmp")
	if err != nil {
		logging.Warn("Failed to cache thumbnail %s: %v", dst, err)
		return
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		logging.Warn("Failed to cache thumbnail %s: %v", dst, err)
		return
	}
	if err := tmp.Close(); err != nil {
		logging.Warn("Failed to cache thumbnail %s: %v", dst, err)
		return
	}
	if err := os.Rename(tmpName, dst); err != nil {
		logging.Warn("Failed to cache thumbnail %s: %v", dst, err)
		return
	}
	logging.Debug("Thumbnail cached: %s", dst)
}

// encodeThumbnail fits img into width x height and encodes it as JPEG,
// through libvips when it has been initialised.
func encodeThumbnail(img image.Image, width, height, quality int) ([]byte, error) {
	if IsVipsAvailable() {
		data, err := fitWithVips(img, width, height, quality)
		if err == nil {
			return data, nil
		}
		logging.Debug("vips encode failed, falling back to imaging: %v", err)
	}

	thumb := imaging.Fit(img, width, height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
