package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"verticlipper/internal/metrics"
)

func TestMetricsHandler(t *testing.T) {
	metrics.UploadsTotal.WithLabelValues("success").Add(0)

	h := &Handlers{}
	w := httptest.NewRecorder()
	h.MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "verticlipper_uploads_total") {
		t.Error("expected verticlipper metrics in the exposition")
	}
}
