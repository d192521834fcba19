package metrics

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"verticlipper/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds composition history totals.
type Stats struct {
	TotalSessions      int
	TotalCompositions  int
	FailedCompositions int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	roots         map[string]string // volume label -> directory
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector. roots maps a volume label
// ("uploads", "outputs") to the directory whose size should be reported.
func NewCollector(provider StatsProvider, roots map[string]string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		roots:         roots,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
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
}

func (c *Collector) collect() {
	for volume, root := range c.roots {
		size, dirs := DirUsage(root)
		StorageBytes.WithLabelValues(volume).Set(float64(size))
		if volume == "uploads" {
			SessionsTotal.Set(float64(dirs))
		}
	}

	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()
	HistorySessions.Set(float64(stats.TotalSessions))
	HistoryCompositions.WithLabelValues("done").Set(float64(stats.TotalCompositions - stats.FailedCompositions))
	HistoryCompositions.WithLabelValues("failed").Set(float64(stats.FailedCompositions))

	logging.Debug("Metrics collected: sessions=%d, compositions=%d, failed=%d",
		stats.TotalSessions, stats.TotalCompositions, stats.FailedCompositions)
}

// DirUsage returns the total size of regular files under root and the
// number of immediate subdirectories. Unreadable entries are skipped.
func DirUsage(root string) (size int64, subdirs int) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, 0
	}
	for _, e := range entries {
		if e.IsDir() {
			subdirs++
		}
	}

	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size, subdirs
}
