package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pixel-catalog/internal/catalog"
	"pixel-catalog/internal/database"
	"pixel-catalog/internal/decoder"
	"pixel-catalog/internal/enricher"
	"pixel-catalog/internal/filesystem"
	"pixel-catalog/internal/handlers"
	"pixel-catalog/internal/indexer"
	"pixel-catalog/internal/logging"
	"pixel-catalog/internal/memory"
	"pixel-catalog/internal/metrics"
	"pixel-catalog/internal/middleware"
	"pixel-catalog/internal/pipeline"
	"pixel-catalog/internal/player"
	"pixel-catalog/internal/playlist"
	"pixel-catalog/internal/startup"
	"pixel-catalog/internal/thumbnail"

	"github.com/gorilla/mux"
)

const shutdownTimeout = 30 * time.Second

func main() {
	startTime := time.Now()
	defer logging.Sync()

	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()

	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	startup.LogDecoderInit(config)
	dec := decoder.NewFFmpeg(decoder.FFmpegConfig{
		FFprobePath: config.FFprobePath,
		FFmpegPath:  config.FFmpegPath,
		FrameCodec:  config.FrameCodec,
	})

	startup.LogPipelineInit(config.PipelineWorkers)
	vipsEnabled := false
	if config.UseVips {
		if err := thumbnail.InitVips(); err != nil {
			logging.Warn("  libvips unavailable, using imaging: %v", err)
		} else {
			vipsEnabled = true
			defer thumbnail.ShutdownVips()
		}
	}

	cacheDir := ""
	if config.ThumbnailsEnabled {
		cacheDir = config.ThumbnailDir
	}
	thumbs := thumbnail.NewCache(thumbnail.NewExtractor(dec), thumbnail.CacheConfig{
		Dir:        cacheDir,
		MaxEntries: config.ThumbnailMemoryEntries,
		Width:      config.ThumbnailWidth,
		Height:     config.ThumbnailHeight,
		Quality:    thumbnail.DefaultCacheConfig().Quality,
	})
	startup.LogThumbnailInit(config, vipsEnabled)

	memMonitor := memory.NewMonitor(memory.DefaultConfig())
	memMonitor.Start()

	scanner := catalog.NewScanner(db, filesystem.Exists).WithURIBase(config.PlayerURIBase)
	pipe := pipeline.New(scanner, enricher.New(dec), thumbs, pipeline.Config{
		Workers: config.PipelineWorkers,
		Gate:    memMonitor,
	})

	startup.LogIndexerInit(config.IndexInterval)
	idx := indexer.New(db, dec, config.MediaDir, config.IndexInterval)
	idx.SetOnIndexComplete(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := <-pipe.Load(ctx); err != nil {
			logging.Error("Catalog reload after index failed: %v", err)
		}
	})

	// Serve whatever the index already holds while the first walk runs.
	go func() {
		if err := <-pipe.Load(context.Background()); err != nil {
			logging.Warn("Initial catalog load failed: %v", err)
		}
	}()

	go func() {
		if err := idx.Start(); err != nil {
			logging.Error("Failed to start indexer: %v", err)
		}
	}()
	startup.LogIndexerStarted()

	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(statsProvider(db, pipe), db, time.Minute)
		collector.Start()
	}

	launcher := player.NewCommandLauncher(config.PlayerCmd)
	h := handlers.New(pipe, thumbs, idx, db, launcher)

	router := h.Router()
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.RequestID(middleware.Logger(loggingConfig)(router))

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// The event stream is long-lived.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort, h)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sig := waitForSignal()
		shutdown(sig, srv, metricsSrv, idx, pipe, memMonitor, collector)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func newMetricsServer(port string, h *handlers.Handlers) *http.Server {
	r := mux.NewRouter()
	r.Handle("/metrics", h.MetricsHandler()).Methods(http.MethodGet)
	return &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
}

// statsProvider feeds the metrics collector from the cached index stats and
// the live catalog.
func statsProvider(db *database.Database, pipe *pipeline.Pipeline) metrics.StatsProvider {
	return metrics.StatsProviderFunc(func() metrics.Stats {
		s := db.GetStats()
		return metrics.Stats{
			TotalVideos: s.TotalVideos,
			TotalBytes:  s.TotalBytes,
			Folders:     len(playlist.FromEntries(pipe.Entries())),
		}
	})
}

func waitForSignal() os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return <-sigChan
}

func shutdown(sig os.Signal, srv, metricsSrv *http.Server, idx *indexer.Indexer, pipe *pipeline.Pipeline, mon *memory.Monitor, collector *metrics.Collector) {
	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Stopping indexer")
	idx.Stop()
	startup.LogShutdownStepComplete("Indexer stopped")

	startup.LogShutdownStep("Stopping pipeline")
	pipe.Close()
	mon.Stop()
	startup.LogShutdownStepComplete("Pipeline stopped")

	if collector != nil {
		collector.Stop()
	}

	startup.LogShutdownComplete()
}
