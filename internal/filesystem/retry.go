package filesystem

import (
	"errors"
	"os"
	"syscall"
	"time"

	"verticlipper/internal/logging"
)

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// VolumeResolver overrides the package-level resolver for this operation.
	// If nil, the package-level default is used.
	VolumeResolver *VolumeResolver
}

// DefaultRetryConfig returns sensible defaults for network filesystem retries
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

func (c *RetryConfig) resolveVolume(path string) string {
	if c.VolumeResolver != nil {
		return c.VolumeResolver.Resolve(path)
	}
	return defaultResolver.Resolve(path)
}

// isNFSStaleError checks if an error is an NFS stale file handle error
func isNFSStaleError(err error) bool {
	return errors.Is(err, syscall.ESTALE)
}

// withRetry runs fn until it succeeds, fails with a non-stale error, or
// runs out of attempts. Only ESTALE is retried.
func withRetry(op, path string, config RetryConfig, fn func() error) error {
	start := time.Now()
	volume := config.resolveVolume(path)
	obs := observer
	done := func(err error) error {
		obs.ObserveOperation(volume, op, time.Since(start).Seconds(), err)
		return err
	}

	backoff := config.InitialBackoff
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 0 {
				logging.Info("%s succeeded on retry %d for %s", op, attempt, path)
				obs.ObserveRetrySuccess(op, volume)
			}
			return done(nil)
		}
		if !isNFSStaleError(err) {
			return done(err)
		}

		obs.ObserveStaleError(op, volume)
		if attempt == config.MaxRetries {
			break
		}

		obs.ObserveRetryAttempt(op, volume)
		logging.Debug("%s stale file handle for %s, retrying in %v (attempt %d/%d)",
			op, path, backoff, attempt+1, config.MaxRetries)
		time.Sleep(backoff)
		backoff = min(backoff*2, config.MaxBackoff)
	}

	logging.Warn("%s failed after %d retries for %s: %v", op, config.MaxRetries, path, err)
	obs.ObserveRetryFailure(op, volume)
	return done(err)
}

// StatWithRetry performs os.Stat with retry logic for stale file handle errors
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	var info os.FileInfo
	err := withRetry("stat", path, config, func() error {
		var statErr error
		info, statErr = os.Stat(path)
		return statErr
	})
	return info, err
}

// ReadDirWithRetry performs os.ReadDir with retry logic. Entries are sorted
// by filename, as os.ReadDir returns them.
func ReadDirWithRetry(path string, config RetryConfig) ([]os.DirEntry, error) {
	var entries []os.DirEntry
	err := withRetry("readdir", path, config, func() error {
		var readErr error
		entries, readErr = os.ReadDir(path)
		return readErr
	})
	return entries, err
}

// RenameWithRetry performs os.Rename with retry logic. Source and destination
// must be on the same filesystem for the move to be atomic.
func RenameWithRetry(from, to string, config RetryConfig) error {
	return withRetry("rename", to, config, func() error {
		return os.Rename(from, to)
	})
}

// RemoveWithRetry performs os.Remove with retry logic. A missing file is
// not an error.
func RemoveWithRetry(path string, config RetryConfig) error {
	return withRetry("remove", path, config, func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	})
}
