package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"verticlipper/internal/apperr"
	"verticlipper/internal/logging"
	"verticlipper/internal/metrics"
)

// envelope is the shape of every API response.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	// Details carries captured process output outside production.
	Details   string `json:"details,omitempty"`
	Path      string `json:"path,omitempty"`
	Timestamp string `json:"timestamp"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeData writes a successful response carrying data.
func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Timestamp: timestamp()})
}

// writeError maps err to its status code and writes the error envelope.
// Unclassified and internal errors are reported generically in production.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	resp := envelope{Success: false, Timestamp: timestamp()}

	e, ok := apperr.As(err)
	switch {
	case !ok:
		resp.Error = "Internal server error"
		if !h.production {
			resp.Details = err.Error()
		}
	case e.Kind == apperr.KindInternal && h.production:
		resp.Error = "Internal server error"
	default:
		resp.Error = e.Message
		if !h.production {
			resp.Details = e.Diagnostic
		}
	}

	if status >= http.StatusInternalServerError {
		logging.Error("%s %s failed: %v", r.Method, r.URL.Path, err)
		if ok && e.Diagnostic != "" {
			logging.Debug("%s %s diagnostic output:\n%s", r.Method, r.URL.Path, e.Diagnostic)
		}
	} else {
		logging.Debug("%s %s rejected (%d): %v", r.Method, r.URL.Path, status, err)
	}

	writeJSON(w, status, resp)
}

// NotFound answers unknown routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, envelope{
		Success:   false,
		Error:     "Endpoint not found",
		Path:      r.URL.Path,
		Timestamp: timestamp(),
	})
}

// overloaded answers 503 while memory is critical. It reports whether the
// request was refused.
func (h *Handlers) overloaded(w http.ResponseWriter, r *http.Request, endpoint string) bool {
	if h.memory == nil || !h.memory.IsPaused() {
		return false
	}
	metrics.MemoryRejections.WithLabelValues(endpoint).Inc()
	logging.Warn("Refusing %s %s: memory pressure", r.Method, r.URL.Path)
	w.Header().Set("Retry-After", "30")
	writeJSON(w, http.StatusServiceUnavailable, envelope{
		Success:   false,
		Error:     "Server is busy, please retry shortly.",
		Timestamp: timestamp(),
	})
	return true
}
