package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"verticlipper/internal/apperr"
	"verticlipper/internal/filesystem"
	"verticlipper/internal/logging"
	"verticlipper/internal/metrics"
	"verticlipper/internal/workers"
)

// JobKind labels a job in logs and metrics.
type JobKind string

const (
	JobCompose JobKind = "compose"
	JobPreview JobKind = "preview"
)

// maxDiagnostic bounds the stderr tail kept for error reports.
const maxDiagnostic = 4096

// ErrShuttingDown is returned for jobs submitted after Cleanup.
var ErrShuttingDown = errors.New("transcoder is shutting down")

// Job is one ffmpeg invocation producing a single output file.
type Job struct {
	Kind JobKind
	// Output is where the finished file is published.
	Output string
	// Args builds the ffmpeg arguments writing to the given path.
	Args func(output string) []string
}

// Transcoder runs ffmpeg jobs with bounded concurrency.
type Transcoder struct {
	ffmpeg    string
	limiter   *workers.Limiter
	processes map[string]*exec.Cmd
	processMu sync.Mutex
	closed    bool
	retry     filesystem.RetryConfig

	// command creates the process; replaced in tests.
	command func(name string, args ...string) *exec.Cmd
}

// New creates a Transcoder running ffmpegPath with at most slots concurrent
// processes. slots <= 0 means unbounded.
func New(ffmpegPath string, slots int) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Transcoder{
		ffmpeg:    ffmpegPath,
		limiter:   workers.NewLimiter(slots),
		processes: make(map[string]*exec.Cmd),
		retry:     filesystem.DefaultRetryConfig(),
		command:   exec.Command,
	}
}

// Slots returns the concurrency cap, 0 meaning unbounded.
func (t *Transcoder) Slots() int {
	return t.limiter.Capacity()
}

// Transcode waits for a free slot, runs the job and blocks until ffmpeg
// exits. ffmpeg writes to a temporary file beside Output which is renamed
// into place only on a clean exit, so a failed job never leaves a partial
// file at Output.
//
// ctx bounds only the wait for a slot. Once started, the process runs to
// completion and can only be stopped by Cleanup.
func (t *Transcoder) Transcode(ctx context.Context, job Job) (string, error) {
	metrics.TranscoderJobsQueued.Inc()
	err := t.limiter.Acquire(ctx)
	metrics.TranscoderJobsQueued.Dec()
	if err != nil {
		return "", apperr.Internal("Gave up waiting for a transcoder slot", err)
	}
	defer t.limiter.Release()

	tmp, err := t.tempPath(job.Output)
	if err != nil {
		return "", apperr.Internal("Failed to prepare output", err)
	}

	cmd := t.command(t.ffmpeg, job.Args(tmp)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logging.Debug("Starting %s job: %s %s", job.Kind, t.ffmpeg, strings.Join(cmd.Args[1:], " "))

	start := time.Now()
	if err := t.start(tmp, cmd); err != nil {
		t.discard(tmp)
		metrics.TranscoderJobsTotal.WithLabelValues(string(job.Kind), "error").Inc()
		if errors.Is(err, ErrShuttingDown) {
			return "", apperr.Internal("Transcoder unavailable", err)
		}
		return "", apperr.Processing(apperr.CodeComposition, failureMessage(job.Kind), err.Error(), err)
	}
	defer t.untrack(tmp)

	metrics.TranscoderJobsInProgress.Inc()
	runErr := cmd.Wait()
	elapsed := time.Since(start)
	metrics.TranscoderJobsInProgress.Dec()
	metrics.TranscoderJobDuration.WithLabelValues(string(job.Kind)).Observe(elapsed.Seconds())

	if runErr != nil {
		t.discard(tmp)
		metrics.TranscoderJobsTotal.WithLabelValues(string(job.Kind), "error").Inc()
		diagnostic := tail(stderr.String(), maxDiagnostic)
		logging.Error("%s job for %s failed after %v: %v", job.Kind, filepath.Base(job.Output), elapsed, runErr)
		logging.Debug("ffmpeg stderr: %s", diagnostic)
		return "", apperr.Processing(apperr.CodeComposition, failureMessage(job.Kind), diagnostic, runErr)
	}

	if err := filesystem.RenameWithRetry(tmp, job.Output, t.retry); err != nil {
		t.discard(tmp)
		metrics.TranscoderJobsTotal.WithLabelValues(string(job.Kind), "error").Inc()
		return "", apperr.Internal("Failed to publish output", err)
	}

	metrics.TranscoderJobsTotal.WithLabelValues(string(job.Kind), "success").Inc()
	logging.Info("%s job for %s finished in %v", job.Kind, filepath.Base(job.Output), elapsed.Round(time.Millisecond))
	return job.Output, nil
}

func failureMessage(kind JobKind) string {
	if kind == JobPreview {
		return "Failed to create preview"
	}
	return "Video composition failed"
}

// tempPath reserves a hidden file beside output, keeping its extension so
// ffmpeg can infer the container.
func (t *Transcoder) tempPath(output string) (string, error) {
	dir := filepath.Dir(output)
	base := filepath.Base(output)
	ext := filepath.Ext(base)

	f, err := os.CreateTemp(dir, "."+strings.TrimSuffix(base, ext)+".*"+ext)
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		logging.Warn("failed to close temp file %s: %v", name, err)
	}
	return name, nil
}

func (t *Transcoder) discard(path string) {
	if err := filesystem.RemoveWithRetry(path, t.retry); err != nil {
		logging.Warn("failed to remove partial output %s: %v", path, err)
	}
}

// start launches cmd and registers it under key. Both happen under the
// lock so Cleanup never misses a process that is about to start.
func (t *Transcoder) start(key string, cmd *exec.Cmd) error {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	if t.closed {
		return ErrShuttingDown
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	t.processes[key] = cmd
	return nil
}

func (t *Transcoder) untrack(key string) {
	t.processMu.Lock()
	delete(t.processes, key)
	t.processMu.Unlock()
}

// Active returns the number of running processes.
func (t *Transcoder) Active() int {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	return len(t.processes)
}

// Cleanup kills all running ffmpeg processes and rejects new jobs.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	t.closed = true
	for path, cmd := range t.processes {
		if cmd.Process != nil {
			logging.Info("Killing transcoding process for: %s", path)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill transcoding process for %s: %v", path, err)
			}
		}
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("...%s", s[len(s)-n:])
}
