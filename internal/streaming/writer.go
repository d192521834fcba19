package streaming

import (
	"errors"
	"net/http"
	"os"
	"time"
)

// ErrWriteTimeout indicates a client stopped reading, or the response ran
// past MaxDuration.
var ErrWriteTimeout = errors.New("write timeout exceeded")

// Config bounds how long a slow client may hold a download.
type Config struct {
	// WriteTimeout is the deadline for each chunk to reach the client
	WriteTimeout time.Duration
	// MaxDuration is the absolute maximum response duration (0 = unlimited)
	MaxDuration time.Duration
	// ChunkSize is the size of each deadline-bounded write (0 = write as received)
	ChunkSize int
}

// DefaultConfig returns the limits used for output and preview downloads.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		MaxDuration:  0,
		ChunkSize:    64 * 1024,
	}
}

// Writer is an http.ResponseWriter that gives every chunk its own write
// deadline. The server runs without a WriteTimeout so uploads and composes
// can take as long as they need; downloads get this instead.
type Writer struct {
	http.ResponseWriter
	rc           *http.ResponseController
	config       Config
	start        time.Time
	bytesWritten int64
	deadlines    bool
	timedOut     bool
}

// NewWriter wraps w. Call Close when the handler is done.
func NewWriter(w http.ResponseWriter, config Config) *Writer {
	return &Writer{
		ResponseWriter: w,
		rc:             http.NewResponseController(w),
		config:         config,
		start:          time.Now(),
		deadlines:      config.WriteTimeout > 0,
	}
}

// Write sends p in chunks, extending the deadline before each one.
func (w *Writer) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if w.config.MaxDuration > 0 && time.Since(w.start) > w.config.MaxDuration {
			w.timedOut = true
			return total, ErrWriteTimeout
		}

		chunk := p
		if w.config.ChunkSize > 0 && len(chunk) > w.config.ChunkSize {
			chunk = chunk[:w.config.ChunkSize]
		}

		w.extendDeadline()
		n, err := w.ResponseWriter.Write(chunk)
		total += n
		w.bytesWritten += int64(n)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				w.timedOut = true
				return total, ErrWriteTimeout
			}
			return total, err
		}
		p = p[n:]
	}
	return total, nil
}

func (w *Writer) extendDeadline() {
	if !w.deadlines {
		return
	}
	if err := w.rc.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout)); err != nil {
		// Recorders and some wrappers cannot carry deadlines.
		w.deadlines = false
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *Writer) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// BytesWritten returns the body bytes that reached the connection.
func (w *Writer) BytesWritten() int64 {
	return w.bytesWritten
}

// TimedOut reports whether a write hit ErrWriteTimeout.
func (w *Writer) TimedOut() bool {
	return w.timedOut
}

// Duration returns the time since the writer was created.
func (w *Writer) Duration() time.Duration {
	return time.Since(w.start)
}

// Close clears the write deadline so a kept-alive connection is not cut
// short on its next response.
func (w *Writer) Close() error {
	if !w.deadlines {
		return nil
	}
	return w.rc.SetWriteDeadline(time.Time{})
}
