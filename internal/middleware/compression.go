package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the smallest body, in bytes, worth compressing
	MinSize int
	// Level is the gzip level (gzip.BestSpeed to gzip.BestCompression)
	Level int
	// CompressibleTypes lists the media types that may be compressed
	CompressibleTypes []string
	// SkipPrefixes are paths served untouched, without buffering
	SkipPrefixes []string
}

// DefaultCompressionConfig compresses API payloads only. Files under the
// output and upload roots are already compressed media and bypass the
// middleware so the file server keeps sendfile and its write deadlines.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:           1024,
		Level:             gzip.DefaultCompression,
		CompressibleTypes: []string{"application/json", "text/plain"},
		SkipPrefixes:      []string{"/outputs/", "/uploads/"},
	}
}

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	},
}

type compressMode int

const (
	modeUndecided compressMode = iota
	modePlain
	modeGzip
)

// gzipResponseWriter buffers up to MinSize bytes, then either streams the
// rest through gzip or writes it unchanged.
type gzipResponseWriter struct {
	http.ResponseWriter
	config     CompressionConfig
	gz         *gzip.Writer
	buffer     []byte
	statusCode int
	mode       compressMode
}

func newGzipResponseWriter(w http.ResponseWriter, config CompressionConfig) *gzipResponseWriter {
	return &gzipResponseWriter{
		ResponseWriter: w,
		config:         config,
		statusCode:     http.StatusOK,
		buffer:         make([]byte, 0, config.MinSize+1),
	}
}

// WriteHeader defers the status until the encoding is decided.
func (g *gzipResponseWriter) WriteHeader(statusCode int) {
	if g.mode != modeUndecided {
		return
	}
	g.statusCode = statusCode
	// Bodyless responses have nothing to decide on.
	if statusCode == http.StatusNoContent || statusCode == http.StatusNotModified {
		g.decide()
	}
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	switch g.mode {
	case modeGzip:
		return g.gz.Write(data)
	case modePlain:
		return g.ResponseWriter.Write(data)
	}

	g.buffer = append(g.buffer, data...)
	if len(g.buffer) > g.config.MinSize {
		if err := g.decide(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (g *gzipResponseWriter) compressible() bool {
	h := g.Header()
	if h.Get("Content-Encoding") != "" {
		return false
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(h.Get("Content-Type"), ";")[0]))
	for _, t := range g.config.CompressibleTypes {
		if mediaType == t {
			return true
		}
	}
	return false
}

// decide picks the encoding, sends the header and flushes the buffer.
func (g *gzipResponseWriter) decide() error {
	if g.mode != modeUndecided {
		return nil
	}

	buffered := g.buffer
	g.buffer = nil

	if len(buffered) < g.config.MinSize || !g.compressible() {
		g.mode = modePlain
		g.ResponseWriter.WriteHeader(g.statusCode)
		if len(buffered) == 0 {
			return nil
		}
		_, err := g.ResponseWriter.Write(buffered)
		return err
	}

	g.mode = modeGzip
	h := g.Header()
	h.Del("Content-Length")
	h.Set("Content-Encoding", "gzip")
	h.Add("Vary", "Accept-Encoding")

	if g.config.Level == gzip.DefaultCompression {
		g.gz = gzipWriterPool.Get().(*gzip.Writer)
		g.gz.Reset(g.ResponseWriter)
	} else {
		gz, err := gzip.NewWriterLevel(g.ResponseWriter, g.config.Level)
		if err != nil {
			return err
		}
		g.gz = gz
	}
	g.ResponseWriter.WriteHeader(g.statusCode)
	_, err := g.gz.Write(buffered)
	return err
}

// Close settles any undecided response and returns the gzip writer to the pool.
func (g *gzipResponseWriter) Close() error {
	err := g.decide()
	if g.gz != nil {
		if closeErr := g.gz.Close(); err == nil {
			err = closeErr
		}
		if g.config.Level == gzip.DefaultCompression {
			gzipWriterPool.Put(g.gz)
		}
		g.gz = nil
	}
	return err
}

// Flush implements http.Flusher
func (g *gzipResponseWriter) Flush() {
	_ = g.decide()
	if g.gz != nil {
		_ = g.gz.Flush()
	}
	if flusher, ok := g.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (g *gzipResponseWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}

func skipCompression(r *http.Request, config CompressionConfig) bool {
	if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		return true
	}
	// HEAD has no body; Range requests need byte-exact offsets.
	if r.Method == http.MethodHead || r.Header.Get("Range") != "" {
		return true
	}
	for _, prefix := range config.SkipPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// Compression returns a middleware that gzips JSON and text responses.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipCompression(r, config) {
				next.ServeHTTP(w, r)
				return
			}

			gzw := newGzipResponseWriter(w, config)
			defer gzw.Close()
			next.ServeHTTP(gzw, r)
		})
	}
}
