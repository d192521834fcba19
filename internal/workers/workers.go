package workers

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"sync/atomic"
)

// OverrideEnv is the environment variable that pins the transcode worker count.
const OverrideEnv = "TRANSCODE_WORKERS"

// Count returns the optimal number of workers for a given task type.
// It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks
//   - 1.5 for mixed tasks
//
// The limit parameter caps the worker count to prevent resource exhaustion.
// Use 0 for no limit.
func Count(multiplier float64, limit int) int {
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
// The limit parameter caps the maximum number of workers.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
// The limit parameter caps the maximum number of workers.
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// TranscodeSlots returns the number of concurrent ffmpeg processes to
// admit. TRANSCODE_WORKERS overrides the CPU-based default; an explicit
// "0" disables the cap entirely.
func TranscodeSlots(limit int) int {
	if override := os.Getenv(OverrideEnv); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count >= 0 {
			return count
		}
	}
	return ForCPU(limit)
}

// Limiter is a counting semaphore that bounds concurrent work.
// A Limiter with zero slots admits everything.
type Limiter struct {
	slots   chan struct{}
	running atomic.Int64
	waiting atomic.Int64
}

// NewLimiter creates a Limiter admitting n concurrent holders. n <= 0
// means unbounded.
func NewLimiter(n int) *Limiter {
	l := &Limiter{}
	if n > 0 {
		l.slots = make(chan struct{}, n)
	}
	return l
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.slots == nil {
		l.running.Add(1)
		return nil
	}

	l.waiting.Add(1)
	defer l.waiting.Add(-1)

	select {
	case l.slots <- struct{}{}:
		l.running.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	l.running.Add(-1)
	if l.slots != nil {
		<-l.slots
	}
}

// Capacity returns the slot count, 0 meaning unbounded.
func (l *Limiter) Capacity() int {
	return cap(l.slots)
}

// Running returns the number of current holders.
func (l *Limiter) Running() int64 {
	return l.running.Load()
}

// Waiting returns the number of callers blocked in Acquire.
func (l *Limiter) Waiting() int64 {
	return l.waiting.Load()
}
