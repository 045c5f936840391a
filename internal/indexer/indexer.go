package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"pixel-catalog/internal/database"
	"pixel-catalog/internal/decoder"
	"pixel-catalog/internal/logging"
	"pixel-catalog/internal/metrics"
)

const (
	// Number of rows written per transaction
	batchSize = 500

	// Delay between batches to allow readers in
	batchDelay = 10 * time.Millisecond
)

// ErrIndexing is returned by Index when a run is already in progress.
var ErrIndexing = errors.New("indexer: index already in progress")

// Indexer keeps the media index in sync with the media directory.
type Indexer struct {
	db                   *database.Database
	dec                  decoder.Decoder
	mediaDir             string
	indexInterval        time.Duration
	stopChan             chan struct{}
	stopOnce             sync.Once
	triggerChan          chan struct{}
	indexMu              sync.Mutex
	isIndexing           bool
	lastIndexTime        time.Time
	initialIndexComplete bool
	initialIndexError    error
	startTime            time.Time

	filesIndexed  atomic.Int64
	indexProgress atomic.Value

	parallelConfig ParallelWalkerConfig

	// Callback when indexing completes
	onIndexComplete func()
}

// IndexProgress tracks the current indexing progress
type IndexProgress struct {
	FilesIndexed int64     `json:"filesIndexed"`
	IsIndexing   bool      `json:"isIndexing"`
	StartedAt    time.Time `json:"startedAt,omitempty"`
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready             bool           `json:"ready"`
	Indexing          bool           `json:"indexing"`
	StartTime         time.Time      `json:"startTime"`
	Uptime            string         `json:"uptime"`
	LastIndexed       time.Time      `json:"lastIndexed,omitempty"`
	InitialIndexError string         `json:"initialIndexError,omitempty"`
	FilesIndexed      int64          `json:"filesIndexed"`
	IndexProgress     *IndexProgress `json:"indexProgress,omitempty"`
}

// New creates a new Indexer. dec is used to probe durations of new or
// changed files. indexInterval <= 0 disables periodic runs.
func New(db *database.Database, dec decoder.Decoder, mediaDir string, indexInterval time.Duration) *Indexer {
	if abs, err := filepath.Abs(mediaDir); err == nil {
		mediaDir = abs
	}
	idx := &Indexer{
		db:             db,
		dec:            dec,
		mediaDir:       mediaDir,
		indexInterval:  indexInterval,
		stopChan:       make(chan struct{}),
		triggerChan:    make(chan struct{}, 1),
		startTime:      time.Now(),
		parallelConfig: DefaultParallelWalkerConfig(),
	}
	idx.indexProgress.Store(IndexProgress{})
	return idx
}

// SetParallelConfig sets the parallel walker configuration.
func (idx *Indexer) SetParallelConfig(config ParallelWalkerConfig) {
	idx.parallelConfig = config
}

// SetOnIndexComplete sets a callback invoked after every successful run.
func (idx *Indexer) SetOnIndexComplete(callback func()) {
	idx.onIndexComplete = callback
}

// Start runs the initial index in the background and then re-indexes every
// indexInterval or whenever Trigger is called.
func (idx *Indexer) Start() error {
	go func() {
		logging.Info("Starting initial index in background...")
		if err := idx.runIndex(); err != nil {
			logging.Error("Initial index error: %v", err)
			idx.indexMu.Lock()
			idx.initialIndexError = err
			idx.indexMu.Unlock()
		}
		idx.loop()
	}()
	return nil
}

// Stop stops periodic indexing and cancels a run in progress.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(func() { close(idx.stopChan) })
}

// Trigger requests an index run. It never blocks; requests made while a run
// is pending are coalesced.
func (idx *Indexer) Trigger() {
	select {
	case idx.triggerChan <- struct{}{}:
	default:
	}
}

// IsReady returns true once the initial index has finished.
func (idx *Indexer) IsReady() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.initialIndexComplete
}

// IsIndexing reports whether a run is in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.isIndexing
}

func (idx *Indexer) getProgress() IndexProgress {
	if progress, ok := idx.indexProgress.Load().(IndexProgress); ok {
		return progress
	}
	return IndexProgress{}
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	status := HealthStatus{
		Ready:        idx.initialIndexComplete,
		Indexing:     idx.isIndexing,
		StartTime:    idx.startTime,
		Uptime:       time.Since(idx.startTime).String(),
		LastIndexed:  idx.lastIndexTime,
		FilesIndexed: idx.filesIndexed.Load(),
	}

	if idx.isIndexing {
		progress := idx.getProgress()
		status.IndexProgress = &progress
	}

	if idx.initialIndexError != nil {
		status.InitialIndexError = idx.initialIndexError.Error()
	}

	return status
}

// runIndex runs Index under a context that Stop cancels.
func (idx *Indexer) runIndex() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-idx.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return idx.Index(ctx)
}

func (idx *Indexer) loop() {
	var tick <-chan time.Time
	if idx.indexInterval > 0 {
		ticker := time.NewTicker(idx.indexInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			logging.Info("Starting periodic re-index...")
		case <-idx.triggerChan:
			logging.Info("Starting requested re-index...")
		case <-idx.stopChan:
			logging.Info("Indexer stopped")
			return
		}

		if err := idx.runIndex(); err != nil && !errors.Is(err, ErrIndexing) {
			logging.Error("Re-index error: %v", err)
		}
	}
}

// Index runs one full pass: walk, probe, upsert, and delete rows for files
// that are gone. Concurrent calls return ErrIndexing.
func (idx *Indexer) Index(ctx context.Context) error {
	if !idx.tryStartIndexing() {
		logging.Info("Index already in progress, skipping...")
		return ErrIndexing
	}
	defer idx.finishIndexing()

	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)
	metrics.IndexerRunsTotal.Inc()

	startTime := time.Now()
	logging.Info("Starting file indexing in %s", idx.mediaDir)

	idx.filesIndexed.Store(0)
	idx.indexProgress.Store(IndexProgress{IsIndexing: true, StartedAt: startTime})

	known, err := idx.db.ModTimes(ctx)
	if err != nil {
		logging.Warn("Could not load known files, probing everything: %v", err)
		known = nil
	}

	walker := NewParallelWalker(ctx, idx.mediaDir, idx.dec, known, idx.parallelConfig)
	videos, err := walker.Walk()
	if err != nil {
		metrics.IndexerErrors.Inc()
		return fmt.Errorf("walk error: %w", err)
	}

	if err := idx.writeBatches(videos, startTime); err != nil {
		metrics.IndexerErrors.Inc()
		return err
	}

	if err := idx.cleanupMissingFiles(startTime); err != nil {
		logging.Error("Error cleaning up missing files: %v", err)
		metrics.IndexerErrors.Inc()
	}

	idx.finalizeIndex(ctx, startTime, len(videos))

	if idx.onIndexComplete != nil {
		idx.onIndexComplete()
	}
	return nil
}

func (idx *Indexer) tryStartIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.isIndexing {
		return false
	}
	idx.isIndexing = true
	return true
}

func (idx *Indexer) finishIndexing() {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	idx.isIndexing = false
	idx.initialIndexComplete = true
}

func (idx *Indexer) writeBatches(videos []database.Video, seen time.Time) error {
	for start := 0; start < len(videos); start += batchSize {
		end := min(start+batchSize, len(videos))
		if err := idx.processBatch(videos[start:end], seen); err != nil {
			return fmt.Errorf("batch write failed: %w", err)
		}

		idx.filesIndexed.Add(int64(end - start))
		progress := idx.getProgress()
		progress.FilesIndexed = idx.filesIndexed.Load()
		idx.indexProgress.Store(progress)

		if end < len(videos) {
			time.Sleep(batchDelay)
		}
	}
	return nil
}

func (idx *Indexer) processBatch(videos []database.Video, seen time.Time) error {
	tx, err := idx.db.BeginBatch()
	if err != nil {
		return err
	}

	for i := range videos {
		if err = idx.db.UpsertVideo(tx, &videos[i], seen); err != nil {
			logging.Error("Error upserting %s: %v", videos[i].Path, err)
			break
		}
	}

	return idx.db.EndBatch(tx, err)
}

func (idx *Indexer) cleanupMissingFiles(indexTime time.Time) error {
	tx, err := idx.db.BeginBatch()
	if err != nil {
		return err
	}

	deleted, err := idx.db.DeleteMissing(tx, indexTime)
	if err := idx.db.EndBatch(tx, err); err != nil {
		return err
	}

	if deleted > 0 {
		logging.Info("Removed %d missing videos from index", deleted)
	}
	return nil
}

func (idx *Indexer) finalizeIndex(ctx context.Context, startTime time.Time, total int) {
	duration := time.Since(startTime)
	now := time.Now()

	idx.indexMu.Lock()
	idx.lastIndexTime = now
	idx.indexMu.Unlock()

	idx.indexProgress.Store(IndexProgress{FilesIndexed: int64(total)})

	idx.db.UpdateStats(database.IndexStats{
		TotalVideos:   total,
		LastIndexed:   now,
		IndexDuration: duration.Round(time.Millisecond).String(),
	})
	if err := idx.db.SetLastIndexRun(ctx, now); err != nil {
		logging.Warn("Failed to record index run time: %v", err)
	}
	idx.db.UpdateDBMetrics()

	metrics.IndexerLastRunDuration.Set(duration.Seconds())
	metrics.IndexerFilesProcessed.Add(float64(total))

	logging.Info("Indexing complete: %d videos in %v", total, duration)
}
