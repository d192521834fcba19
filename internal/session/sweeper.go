package session

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"verticlipper/internal/filesystem"
	"verticlipper/internal/logging"
	"verticlipper/internal/metrics"
)

// Purger drops history rows older than a cutoff so records do not
// outlive the files they describe.
type Purger interface {
	PurgeBefore(cutoff time.Time) (int64, error)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	FilesRemoved int
	DirsRemoved  int
	BytesFreed   int64
	RowsPurged   int64
}

// Sweeper deletes files older than maxAge under a set of roots.
type Sweeper struct {
	roots    []string
	maxAge   time.Duration
	interval time.Duration
	purger   Purger
	retry    filesystem.RetryConfig
	log      logging.Logger

	mu       sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	done     chan struct{}
}

// NewSweeper creates a sweeper over roots. purger may be nil.
func NewSweeper(roots []string, maxAge, interval time.Duration, purger Purger) *Sweeper {
	return &Sweeper{
		roots:    roots,
		maxAge:   maxAge,
		interval: interval,
		purger:   purger,
		retry:    filesystem.DefaultRetryConfig(),
		log:      logging.With("sweeper"),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval until Stop.
func (s *Sweeper) Start() {
	if s.started.CompareAndSwap(false, true) {
		go s.loop()
	}
}

// Stop ends the sweep loop and waits for an in-progress sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	if s.started.Load() {
		<-s.done
	}
}

func (s *Sweeper) loop() {
	defer close(s.done)

	s.runOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce()
		case <-s.stopChan:
			return
		}
	}
}

func (s *Sweeper) runOnce() {
	result := s.Sweep(time.Now().Add(-s.maxAge))
	if result.FilesRemoved > 0 || result.DirsRemoved > 0 || result.RowsPurged > 0 {
		s.log.Info("removed %d files and %d directories, freed %d bytes, purged %d history rows",
			result.FilesRemoved, result.DirsRemoved, result.BytesFreed, result.RowsPurged)
	} else {
		s.log.Debug("nothing to remove")
	}
}

// Sweep deletes every regular file under the roots whose modification time
// is before cutoff, then removes directories left empty. A directory is
// only removed if it is itself older than cutoff or this sweep emptied it,
// so a freshly created session is never touched. Roots are kept.
func (s *Sweeper) Sweep(cutoff time.Time) SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result SweepResult

	for _, root := range s.roots {
		volume := filesystem.ResolveVolume(root)
		var dirs []string
		touched := make(map[string]bool)

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				s.log.Warn("error walking %s: %v", path, err)
				return nil
			}

			if d.IsDir() {
				if path != root {
					dirs = append(dirs, path)
				}
				return nil
			}

			info, err := d.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				return nil
			}

			if err := filesystem.RemoveWithRetry(path, s.retry); err != nil {
				s.log.Warn("failed to remove %s: %v", path, err)
				return nil
			}

			s.log.Debug("removed %s (modified %s)", path, info.ModTime().Format(time.RFC3339))
			touched[filepath.Dir(path)] = true
			result.FilesRemoved++
			result.BytesFreed += info.Size()
			metrics.CleanupFilesRemoved.WithLabelValues(volume).Inc()
			metrics.CleanupBytesFreed.Add(float64(info.Size()))
			return nil
		})
		if err != nil {
			s.log.Warn("sweep of %s stopped early: %v", root, err)
		}

		// Deepest first so parents empty out before they are checked
		sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
		for _, dir := range dirs {
			if filepath.Base(dir) == stagingDir {
				continue
			}
			if s.removeIfEmpty(dir, cutoff, touched[dir]) {
				touched[filepath.Dir(dir)] = true
				result.DirsRemoved++
			}
		}
	}

	if s.purger != nil {
		rows, err := s.purger.PurgeBefore(cutoff)
		if err != nil {
			s.log.Warn("failed to purge history: %v", err)
		}
		result.RowsPurged = rows
	}

	metrics.CleanupLastRunTimestamp.SetToCurrentTime()
	return result
}

func (s *Sweeper) removeIfEmpty(dir string, cutoff time.Time, emptiedNow bool) bool {
	entries, err := filesystem.ReadDirWithRetry(dir, s.retry)
	if err != nil || len(entries) > 0 {
		return false
	}

	if !emptiedNow {
		info, err := filesystem.StatWithRetry(dir, s.retry)
		if err != nil || !info.ModTime().Before(cutoff) {
			return false
		}
	}

	if err := os.Remove(dir); err != nil {
		s.log.Debug("could not remove %s: %v", dir, err)
		return false
	}
	return true
}
