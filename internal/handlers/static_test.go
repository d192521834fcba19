package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestServable(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"final-abc.mp4", true},
		{"abc/video-downres.mp4", true},
		{"/abc/background.png", true},
		{"", false},
		{"abc/", false},
		{".staging/123/0.mp4", false},
		{"abc/.hidden", false},
		{"abc/../.staging/x", false},
	}

	for _, tt := range tests {
		if got := servable(tt.path); got != tt.want {
			t.Errorf("servable(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"final-abc.mp4", "video/mp4", true},
		{"abc/video-clip.3gp", "video/3gpp", true},
		{"abc/video-clip.WMV", "video/x-ms-wmv", true},
		{"abc/bg-sky.webp", "image/webp", true},
		{"abc/notes.txt", "", false},
		{"abc/noext", "", false},
	}

	for _, tt := range tests {
		got, ok := contentType(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("contentType(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestServeFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "final-abc.mp4"), []byte("mp4data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, ".staging"), 0o755); err != nil {
		t.Fatal(err)
	}

	h := &Handlers{}
	handler := http.StripPrefix("/outputs/", h.ServeFiles("outputs", root))

	tests := []struct {
		name   string
		method string
		target string
		status int
	}{
		{"existing file", http.MethodGet, "/outputs/final-abc.mp4", http.StatusOK},
		{"head request", http.MethodHead, "/outputs/final-abc.mp4", http.StatusOK},
		{"missing file", http.MethodGet, "/outputs/final-nope.mp4", http.StatusNotFound},
		{"directory listing", http.MethodGet, "/outputs/", http.StatusNotFound},
		{"staging area", http.MethodGet, "/outputs/.staging/", http.StatusNotFound},
		{"post rejected", http.MethodPost, "/outputs/final-abc.mp4", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.target, http.NoBody))
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/outputs/final-abc.mp4", http.NoBody))
	if w.Body.String() != "mp4data" {
		t.Errorf("body = %q", w.Body.String())
	}
	if w.Header().Get("Content-Type") != "video/mp4" {
		t.Errorf("Content-Type = %q, want video/mp4", w.Header().Get("Content-Type"))
	}
	if w.Header().Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
}
