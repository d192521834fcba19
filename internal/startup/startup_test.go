package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
}

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestEnvReaderStr(t *testing.T) {
	env := envReader{getenv: envMap(map[string]string{"SET": "custom", "EMPTY": ""})}

	if got := env.str("SET", "default"); got != "custom" {
		t.Errorf("str() = %q, want custom", got)
	}
	if got := env.str("EMPTY", "default"); got != "default" {
		t.Errorf("str() on empty = %q, want default", got)
	}
	if got := env.str("UNSET", "default"); got != "default" {
		t.Errorf("str() on unset = %q, want default", got)
	}
}

func TestEnvReaderBoolean(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", "true", false, true},
		{"one", "1", false, true},
		{"false", "false", true, false},
		{"empty uses default", "", true, true},
		{"invalid uses default", "maybe", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := envReader{getenv: envMap(map[string]string{"FLAG": tt.value})}
			if got := env.boolean("FLAG", tt.defaultValue); got != tt.want {
				t.Errorf("boolean() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnvReaderInteger(t *testing.T) {
	if got := (envReader{getenv: envMap(map[string]string{"N": "720"})}).integer("N", 1080); got != 720 {
		t.Errorf("integer() = %d, want 720", got)
	}
	if got := (envReader{getenv: envMap(map[string]string{"N": "wide"})}).integer("N", 1080); got != 1080 {
		t.Errorf("integer() on invalid = %d, want 1080", got)
	}
}

func TestEnvReaderDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"30m", 30 * time.Minute},
		{"", time.Hour},
		{"soon", time.Hour},
		{"-5m", time.Hour},
	}

	for _, tt := range tests {
		env := envReader{getenv: envMap(map[string]string{"D": tt.value})}
		if got := env.duration("D", time.Hour); got != tt.want {
			t.Errorf("duration(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestEnvReaderSize(t *testing.T) {
	tests := []struct {
		value string
		want  int64
	}{
		{"", 100 * 1000 * 1000},
		{"100MB", 100 * 1000 * 1000},
		{"1GiB", 1 << 30},
		{"512", 512},
		{"lots", 100 * 1000 * 1000},
	}

	for _, tt := range tests {
		env := envReader{getenv: envMap(map[string]string{"S": tt.value})}
		if got := env.size("S", "100MB"); got != tt.want {
			t.Errorf("size(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestReadConfigDefaults(t *testing.T) {
	config, err := readConfig(envMap(nil))
	if err != nil {
		t.Fatalf("readConfig() error = %v", err)
	}

	if config.Port != "3001" || config.MetricsPort != "9090" {
		t.Errorf("ports = %s/%s", config.Port, config.MetricsPort)
	}
	if config.CanvasWidth != 1080 || config.CanvasHeight != 1920 {
		t.Errorf("canvas = %dx%d", config.CanvasWidth, config.CanvasHeight)
	}
	if config.MaxUploadFiles != 4 {
		t.Errorf("MaxUploadFiles = %d, want 4", config.MaxUploadFiles)
	}
	if !config.LogHealthChecks || config.LogStaticFiles || !config.MetricsEnabled {
		t.Error("unexpected logging or metrics defaults")
	}
	if config.Production() {
		t.Error("development should not report Production()")
	}
	if len(config.settings()) == 0 {
		t.Error("settings() should describe the configuration")
	}
}

func TestReadConfigRaisesTinyFileCap(t *testing.T) {
	config, err := readConfig(envMap(map[string]string{"MAX_UPLOAD_FILES": "1"}))
	if err != nil {
		t.Fatalf("readConfig() error = %v", err)
	}
	if config.MaxUploadFiles != 4 {
		t.Errorf("MaxUploadFiles = %d, want 4", config.MaxUploadFiles)
	}
}

func TestLoadConfig(t *testing.T) {
	root := t.TempDir()
	t.Setenv("UPLOAD_DIR", filepath.Join(root, "uploads"))
	t.Setenv("OUTPUT_DIR", filepath.Join(root, "outputs"))
	t.Setenv("DATABASE_DIR", filepath.Join(root, "data"))
	t.Setenv("MAX_UPLOAD_SIZE", "10MB")
	t.Setenv("CANVAS_WIDTH", "720")
	t.Setenv("CANVAS_HEIGHT", "1280")
	t.Setenv("TRANSCODE_WORKERS", "2")
	t.Setenv("APP_ENV", "production")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	for _, dir := range []string{config.UploadDir, config.OutputDir, config.DatabaseDir} {
		if !filepath.IsAbs(dir) {
			t.Errorf("directory %q is not absolute", dir)
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("directory %q was not created", dir)
		}
	}

	if config.DatabasePath != filepath.Join(root, "data", "verticlipper.db") {
		t.Errorf("DatabasePath = %q", config.DatabasePath)
	}
	if config.MaxUploadSize != 10*1000*1000 {
		t.Errorf("MaxUploadSize = %d", config.MaxUploadSize)
	}
	if config.CanvasWidth != 720 || config.CanvasHeight != 1280 {
		t.Errorf("canvas = %dx%d, want 720x1280", config.CanvasWidth, config.CanvasHeight)
	}
	if config.TranscodeWorkers != 2 {
		t.Errorf("TranscodeWorkers = %d, want 2", config.TranscodeWorkers)
	}
	if config.Port != "3001" {
		t.Errorf("Port = %q, want 3001", config.Port)
	}
	if config.CleanupMaxAge != 24*time.Hour {
		t.Errorf("CleanupMaxAge = %v, want 24h", config.CleanupMaxAge)
	}
	if !config.Production() {
		t.Error("APP_ENV=production should report Production()")
	}
}

func TestLoadConfigRejectsInvalidCanvas(t *testing.T) {
	root := t.TempDir()
	t.Setenv("UPLOAD_DIR", filepath.Join(root, "u"))
	t.Setenv("OUTPUT_DIR", filepath.Join(root, "o"))
	t.Setenv("DATABASE_DIR", filepath.Join(root, "d"))
	t.Setenv("CANVAS_WIDTH", "-1")

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for negative canvas width")
	}
}

func TestEnsureDirectoryRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureDirectory(path); err == nil {
		t.Error("expected error when path is a regular file")
	}
}

func TestProbeWritable(t *testing.T) {
	dir := t.TempDir()
	if err := probeWritable(dir); err != nil {
		t.Fatalf("probeWritable() error = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("probe left %d files behind", len(entries))
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/upload", "api/upload"},
		{"/api/compose/{sessionId}", "api/compose"},
		{"/healthz", "healthz"},
		{"/api/health", "api/health"},
		{"/outputs/", "outputs"},
		{"/", ""},
	}

	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestGetRoutes(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/upload", func(_ http.ResponseWriter, _ *http.Request) {}).Methods("POST")
	r.HandleFunc("/api/compose/{sessionId}", func(_ http.ResponseWriter, _ *http.Request) {}).Methods("GET")

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("got %d routes, want 2", len(routes))
	}
	if routes[0].Method != "POST" || routes[0].Path != "/api/upload" {
		t.Errorf("unexpected first route %+v", routes[0])
	}
}
