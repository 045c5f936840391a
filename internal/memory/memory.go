package memory

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"pixel-catalog/internal/logging"
	"pixel-catalog/internal/metrics"
)

// Config configures a Monitor.
type Config struct {
	// LimitBytes is the reference limit (0 = current GOMEMLIMIT, if any).
	LimitBytes int64
	// Resume is the usage ratio below which paused work resumes.
	Resume float64
	// Pause is the usage ratio at or above which decode work is held back.
	Pause         float64
	CheckInterval time.Duration
}

// DefaultConfig pauses at 85% of the limit and resumes under 70%.
func DefaultConfig() Config {
	return Config{
		Resume:        0.70,
		Pause:         0.85,
		CheckInterval: 2 * time.Second,
	}
}

// Monitor samples heap usage and holds decode work back while it is over
// the pause mark. With no limit it never pauses.
type Monitor struct {
	cfg   Config
	limit int64
	alloc func() uint64

	mu      sync.Mutex
	paused  bool
	resumed chan struct{}

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMonitor creates a monitor. Call Start to begin sampling.
func NewMonitor(cfg Config) *Monitor {
	def := DefaultConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.Pause <= 0 || cfg.Pause > 1 {
		cfg.Pause = def.Pause
	}
	if cfg.Resume <= 0 || cfg.Resume >= cfg.Pause {
		cfg.Resume = cfg.Pause * 0.8
	}

	limit := cfg.LimitBytes
	if limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < math.MaxInt64 {
			limit = l
		}
	}
	if limit == 0 {
		logging.Debug("Memory monitor: no memory limit configured, backpressure disabled")
	}

	return &Monitor{
		cfg:     cfg,
		limit:   limit,
		alloc:   heapAlloc,
		resumed: make(chan struct{}),
		stop:    make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// Start begins periodic sampling.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.cfg.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.check()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends sampling and releases any waiters.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Wait blocks while the monitor is paused. It returns ctx.Err() if ctx ends
// first, and nil once work may proceed or the monitor is stopped.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	if !m.paused {
		m.mu.Unlock()
		return ctx.Err()
	}
	resumed := m.resumed
	m.mu.Unlock()

	select {
	case <-resumed:
		return nil
	case <-m.stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether decode work is currently held back.
func (m *Monitor) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Usage returns current heap usage as a ratio of the limit, or 0.
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}
	return float64(m.alloc()) / float64(m.limit)
}

func (m *Monitor) check() {
	if m.limit == 0 {
		return
	}
	usage := float64(m.alloc()) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case usage >= m.cfg.Pause && !m.paused:
		logging.Warn("Memory critical (%.1f%% of limit), pausing decode work", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		go runtime.GC()
	case usage < m.cfg.Resume && m.paused:
		logging.Info("Memory recovered (%.1f%% of limit), resuming decode work", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resumed)
		m.resumed = make(chan struct{})
	}
}
