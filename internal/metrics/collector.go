package metrics

import (
	"sync"
	"time"

	"pixel-catalog/internal/logging"
)

// StatsProvider supplies library totals to the Collector.
type StatsProvider interface {
	GetStats() Stats
}

// StatsProviderFunc adapts a function to StatsProvider.
type StatsProviderFunc func() Stats

// GetStats implements StatsProvider.
func (f StatsProviderFunc) GetStats() Stats {
	return f()
}

// Stats holds the library totals exported as gauges.
type Stats struct {
	TotalVideos int
	TotalBytes  int64
	Folders     int
}

// DBMetricsUpdater refreshes database size and connection gauges.
type DBMetricsUpdater interface {
	UpdateDBMetrics()
}

// Collector periodically copies library totals into gauges and refreshes
// database gauges.
type Collector struct {
	provider StatsProvider
	db       DBMetricsUpdater
	interval time.Duration
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewCollector creates a new metrics collector. db may be nil.
func NewCollector(provider StatsProvider, db DBMetricsUpdater, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		db:       db,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the collection loop. It collects once immediately.
func (c *Collector) Start() {
	go func() {
		c.collect()

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collect() {
	if c.db != nil {
		c.db.UpdateDBMetrics()
	}
	if c.provider == nil {
		return
	}

	stats := c.provider.GetStats()
	LibraryVideos.Set(float64(stats.TotalVideos))
	LibraryBytes.Set(float64(stats.TotalBytes))
	LibraryFolders.Set(float64(stats.Folders))

	logging.Debug("Metrics collected: videos=%d, bytes=%d, folders=%d",
		stats.TotalVideos, stats.TotalBytes, stats.Folders)
}
