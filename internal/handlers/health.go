package handlers

import (
	"net/http"
	"runtime"
	"time"

	"verticlipper/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
)

// apiVersion is the API contract version reported by /api/health.
const apiVersion = "1.0.0"

// HealthResponse contains the detailed health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	TotalSessions      int `json:"totalSessions"`
	TotalCompositions  int `json:"totalCompositions"`
	FailedCompositions int `json:"failedCompositions"`
}

// APIHealth is the health endpoint the browser editor polls.
// GET /api/health
func (h *Handlers) APIHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "Backend is UP",
		"timestamp": timestamp(),
		"version":   apiVersion,
	})
}

// HealthCheck returns the detailed health status of the service
// GET /healthz
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	ready := h.ready.Load()

	response := HealthResponse{
		Status:       statusStarting,
		Ready:        ready,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if ready {
		response.Status = statusHealthy
	}

	if h.history != nil {
		stats := h.history.GetStats()
		response.TotalSessions = stats.TotalSessions
		response.TotalCompositions = stats.TotalCompositions
		response.FailedCompositions = stats.FailedCompositions
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessCheck returns 200 only when the service is ready to accept traffic
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.ready.Load() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}
