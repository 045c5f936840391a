package metrics

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type countingDB struct {
	calls atomic.Int32
}

func (c *countingDB) UpdateDBMetrics() {
	c.calls.Add(1)
}

func TestCollectorCollectsOnStart(t *testing.T) {
	db := &countingDB{}
	provider := StatsProviderFunc(func() Stats {
		return Stats{TotalVideos: 42, TotalBytes: 1 << 30, Folders: 3}
	})

	c := NewCollector(provider, db, time.Hour)
	c.Start()
	defer c.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(LibraryVideos) != 42 {
		if time.Now().After(deadline) {
			t.Fatal("collector did not run on start")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := testutil.ToFloat64(LibraryBytes); got != float64(1<<30) {
		t.Errorf("LibraryBytes = %v", got)
	}
	if got := testutil.ToFloat64(LibraryFolders); got != 3 {
		t.Errorf("LibraryFolders = %v, want 3", got)
	}
	if db.calls.Load() == 0 {
		t.Error("UpdateDBMetrics was not called")
	}
}

func TestCollectorTicks(t *testing.T) {
	var n atomic.Int32
	provider := StatsProviderFunc(func() Stats {
		n.Add(1)
		return Stats{}
	})

	c := NewCollector(provider, nil, 10*time.Millisecond)
	c.Start()
	time.Sleep(80 * time.Millisecond)
	c.Stop()
	c.Stop()

	if n.Load() < 3 {
		t.Errorf("collected %d times, want at least 3", n.Load())
	}
}

func TestCollectorNilProvider(t *testing.T) {
	c := NewCollector(nil, nil, time.Hour)
	c.collect()
}
