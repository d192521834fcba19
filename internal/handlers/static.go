package handlers

import (
	"net/http"
	"path"
	"strings"

	"verticlipper/internal/logging"
	"verticlipper/internal/mediatypes"
	"verticlipper/internal/metrics"
	"verticlipper/internal/streaming"
)

// ServeFiles serves the files under root, e.g. finished outputs and the
// per-session uploads. volume labels the metrics. Directory listings and
// dot entries such as the upload staging area answer 404. Mount it behind
// http.StripPrefix.
func (h *Handlers) ServeFiles(volume, root string) http.Handler {
	files := http.FileServer(http.Dir(root))
	config := streaming.DefaultConfig()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			writeJSON(w, http.StatusMethodNotAllowed, envelope{
				Success:   false,
				Error:     "Method not allowed",
				Timestamp: timestamp(),
			})
			return
		}
		if !servable(r.URL.Path) {
			h.NotFound(w, r)
			return
		}

		// A recompose overwrites final-<id>.mp4 in place.
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		if ct, ok := contentType(r.URL.Path); ok {
			w.Header().Set("Content-Type", ct)
		}

		sw := streaming.NewWriter(w, config)
		files.ServeHTTP(sw, r)
		if err := sw.Close(); err != nil {
			logging.Debug("Failed to clear write deadline: %v", err)
		}

		metrics.FileBytesServed.WithLabelValues(volume).Add(float64(sw.BytesWritten()))
		if sw.TimedOut() {
			metrics.FileServeTimeouts.WithLabelValues(volume).Inc()
			logging.Warn("Download of %s/%s timed out after %d bytes in %v",
				volume, r.URL.Path, sw.BytesWritten(), sw.Duration())
		}
	})
}

func servable(p string) bool {
	if p == "" || strings.HasSuffix(p, "/") {
		return false
	}
	for _, seg := range strings.Split(path.Clean("/"+p), "/") {
		if strings.HasPrefix(seg, ".") {
			return false
		}
	}
	return true
}

// contentType maps accepted media extensions to their MIME type so
// serving does not depend on the host's mime database.
func contentType(p string) (string, bool) {
	ext := strings.ToLower(path.Ext(p))
	if mediatypes.GetFileType(ext) == mediatypes.FileTypeOther {
		return "", false
	}
	return mediatypes.GetMimeType(ext), true
}
