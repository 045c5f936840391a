package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pixel-catalog/internal/database"
	"pixel-catalog/internal/decoder"
	"pixel-catalog/internal/logging"
	"pixel-catalog/internal/mediatypes"
	"pixel-catalog/internal/workers"
)

// ParallelWalkerConfig configures the parallel directory walker
type ParallelWalkerConfig struct {
	// NumWorkers is the number of parallel probe workers (0 = workers.ForIO)
	NumWorkers int
	// ChannelBuffer is the size of the work channel buffer
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
}

// DefaultParallelWalkerConfig returns defaults sized for decoder subprocesses.
func DefaultParallelWalkerConfig() ParallelWalkerConfig {
	return ParallelWalkerConfig{
		NumWorkers:    workers.ForIO(8),
		ChannelBuffer: 256,
		SkipHidden:    true,
	}
}

// fileJob is a video file found by the walk.
type fileJob struct {
	path string
	info os.FileInfo
}

type fileResult struct {
	video *database.Video
	err   error
}

// ParallelWalker walks the media directory and probes each video file's
// duration on a fixed set of workers. Files whose size and modification
// time match a known row reuse that row's duration instead of being probed.
type ParallelWalker struct {
	config   ParallelWalkerConfig
	mediaDir string
	dec      decoder.Decoder
	known    map[string]database.Video

	jobs    chan fileJob
	results chan fileResult

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	filesProcessed atomic.Int64
	filesProbed    atomic.Int64
	errorsCount    atomic.Int64
}

// NewParallelWalker creates a walker over mediaDir. known may be nil.
func NewParallelWalker(ctx context.Context, mediaDir string, dec decoder.Decoder, known map[string]database.Video, config ParallelWalkerConfig) *ParallelWalker {
	if config.NumWorkers <= 0 {
		config.NumWorkers = workers.ForIO(8)
	}
	ctx, cancel := context.WithCancel(ctx)

	return &ParallelWalker{
		config:   config,
		mediaDir: mediaDir,
		dec:      dec,
		known:    known,
		jobs:     make(chan fileJob, config.ChannelBuffer),
		results:  make(chan fileResult, config.ChannelBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Walk returns every video file under the media directory.
func (pw *ParallelWalker) Walk() ([]database.Video, error) {
	logging.Info("Starting parallel directory walk with %d workers", pw.config.NumWorkers)
	startTime := time.Now()

	for i := 0; i < pw.config.NumWorkers; i++ {
		pw.wg.Add(1)
		go pw.worker(i)
	}

	var videos []database.Video
	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for result := range pw.results {
			if result.err != nil {
				pw.errorsCount.Add(1)
				logging.Debug("Error processing file: %v", result.err)
				continue
			}
			videos = append(videos, *result.video)
		}
	}()

	err := pw.walkAndEnqueue()

	close(pw.jobs)
	pw.wg.Wait()
	close(pw.results)
	collectorWg.Wait()

	logging.Info("Parallel walk complete: %d videos (%d probed) in %v (errors: %d)",
		pw.filesProcessed.Load(),
		pw.filesProbed.Load(),
		time.Since(startTime),
		pw.errorsCount.Load())

	if err == nil {
		err = pw.ctx.Err()
	}
	return videos, err
}

func (pw *ParallelWalker) walkAndEnqueue() error {
	return filepath.WalkDir(pw.mediaDir, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-pw.ctx.Done():
			return fs.SkipAll
		default:
		}

		if err != nil {
			if path == pw.mediaDir {
				return fmt.Errorf("media directory: %w", err)
			}
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}

		if path != pw.mediaDir && pw.config.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !mediatypes.IsVideoFile(mediatypes.Ext(path)) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logging.Warn("Error getting info for %s: %v", path, err)
			return nil
		}

		select {
		case pw.jobs <- fileJob{path: path, info: info}:
		case <-pw.ctx.Done():
			return fs.SkipAll
		}
		return nil
	})
}

func (pw *ParallelWalker) worker(id int) {
	defer pw.wg.Done()

	logging.Debug("Worker %d started", id)

	for job := range pw.jobs {
		if pw.ctx.Err() != nil {
			continue
		}

		result := pw.processFile(job)
		if result.err == nil {
			pw.filesProcessed.Add(1)
		}

		select {
		case pw.results <- result:
		case <-pw.ctx.Done():
		}
	}

	logging.Debug("Worker %d finished", id)
}

func (pw *ParallelWalker) processFile(job fileJob) fileResult {
	v := &database.Video{
		DisplayName: job.info.Name(),
		Path:        job.path,
		SizeBytes:   job.info.Size(),
		ModTime:     job.info.ModTime().Truncate(time.Second),
	}

	if prev, ok := pw.known[job.path]; ok && prev.SizeBytes == v.SizeBytes && prev.ModTime.Equal(v.ModTime) {
		v.DurationMs = prev.DurationMs
		return fileResult{video: v}
	}

	pw.filesProbed.Add(1)
	v.DurationMs = probeDuration(pw.ctx, pw.dec, job.path)
	return fileResult{video: v}
}

// Stop cancels the parallel walk
func (pw *ParallelWalker) Stop() {
	pw.cancel()
}

// Stats returns current processing statistics
func (pw *ParallelWalker) Stats() (files, probed, errors int64) {
	return pw.filesProcessed.Load(), pw.filesProbed.Load(), pw.errorsCount.Load()
}

// probeDuration reads a file's duration through a decode session. Files
// that cannot be probed are indexed with zero duration.
func probeDuration(ctx context.Context, dec decoder.Decoder, path string) (ms int64) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("Duration probe panicked for %s: %v", path, r)
			ms = 0
		}
	}()

	sess, err := dec.Open(ctx, path)
	if err != nil {
		logging.Debug("Duration probe failed for %s: %v", path, err)
		return 0
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logging.Debug("Failed to close probe session for %s: %v", path, err)
		}
	}()

	if d, ok := sess.DurationMs(); ok && d > 0 {
		return d
	}
	return 0
}
