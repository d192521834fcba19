package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"verticlipper/internal/logging"
	"verticlipper/internal/workers"

	"github.com/dustin/go-humanize"
)

const (
	defaultMaxUploadSize   = "100MB"
	defaultMaxUploadFiles  = 4
	defaultCleanupMaxAge   = 24 * time.Hour
	defaultCleanupInterval = time.Hour
	defaultCanvasWidth     = 1080
	defaultCanvasHeight    = 1920
	defaultTranscodeLimit  = 4

	databaseFile = "verticlipper.db"
)

// Config is the process configuration, read once at startup.
type Config struct {
	Port        string
	MetricsPort string
	UploadDir   string
	OutputDir   string
	DatabaseDir string
	AppEnv      string

	MaxUploadSize   int64
	MaxUploadFiles  int
	CleanupMaxAge   time.Duration
	CleanupInterval time.Duration
	CanvasWidth     int
	CanvasHeight    int

	FFmpegPath       string
	FFprobePath      string
	TranscodeWorkers int

	LogStaticFiles  bool
	LogHealthChecks bool
	MetricsEnabled  bool

	// DatabasePath is DatabaseDir joined with the database file name.
	DatabasePath string
}

// Production reports whether diagnostics should be hidden from clients.
func (c *Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// LoadConfig reads the environment, logs the result and prepares the
// upload, output and database directories. Any unusable directory is fatal.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	config, err := readConfig(os.Getenv)
	if err != nil {
		return nil, err
	}

	section("CONFIGURATION")
	for _, s := range config.settings() {
		logging.Info("  %-20s %s", s.key+":", s.value)
	}

	section("DIRECTORY SETUP")
	if err := config.prepareDirectories(); err != nil {
		return nil, err
	}
	return config, nil
}

// readConfig builds a Config from getenv without touching the filesystem.
func readConfig(getenv func(string) string) (*Config, error) {
	env := envReader{getenv: getenv}

	config := &Config{
		Port:             env.str("PORT", "3001"),
		MetricsPort:      env.str("METRICS_PORT", "9090"),
		UploadDir:        env.str("UPLOAD_DIR", "./uploads"),
		OutputDir:        env.str("OUTPUT_DIR", "./outputs"),
		DatabaseDir:      env.str("DATABASE_DIR", "./data"),
		AppEnv:           env.str("APP_ENV", "development"),
		MaxUploadSize:    env.size("MAX_UPLOAD_SIZE", defaultMaxUploadSize),
		MaxUploadFiles:   env.integer("MAX_UPLOAD_FILES", defaultMaxUploadFiles),
		CleanupMaxAge:    env.duration("CLEANUP_MAX_AGE", defaultCleanupMaxAge),
		CleanupInterval:  env.duration("CLEANUP_INTERVAL", defaultCleanupInterval),
		CanvasWidth:      env.integer("CANVAS_WIDTH", defaultCanvasWidth),
		CanvasHeight:     env.integer("CANVAS_HEIGHT", defaultCanvasHeight),
		FFmpegPath:       env.str("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:      env.str("FFPROBE_PATH", "ffprobe"),
		TranscodeWorkers: workers.TranscodeSlots(defaultTranscodeLimit),
		LogStaticFiles:   env.boolean("LOG_STATIC_FILES", false),
		LogHealthChecks:  env.boolean("LOG_HEALTH_CHECKS", true),
		MetricsEnabled:   env.boolean("METRICS_ENABLED", true),
	}

	if config.CanvasWidth <= 0 || config.CanvasHeight <= 0 {
		return nil, fmt.Errorf("invalid canvas %dx%d", config.CanvasWidth, config.CanvasHeight)
	}
	// A session needs at least a video and a background.
	if config.MaxUploadFiles < 2 {
		logging.Warn("MAX_UPLOAD_FILES=%d cannot hold a video and a background, using %d",
			config.MaxUploadFiles, defaultMaxUploadFiles)
		config.MaxUploadFiles = defaultMaxUploadFiles
	}
	return config, nil
}

type setting struct {
	key   string
	value string
}

func (c *Config) settings() []setting {
	return []setting{
		{"PORT", c.Port},
		{"METRICS_PORT", c.MetricsPort},
		{"METRICS_ENABLED", strconv.FormatBool(c.MetricsEnabled)},
		{"UPLOAD_DIR", c.UploadDir},
		{"OUTPUT_DIR", c.OutputDir},
		{"DATABASE_DIR", c.DatabaseDir},
		{"MAX_UPLOAD_SIZE", humanize.Bytes(uint64(c.MaxUploadSize))},
		{"MAX_UPLOAD_FILES", strconv.Itoa(c.MaxUploadFiles)},
		{"CLEANUP_MAX_AGE", c.CleanupMaxAge.String()},
		{"CLEANUP_INTERVAL", c.CleanupInterval.String()},
		{"CANVAS", fmt.Sprintf("%dx%d", c.CanvasWidth, c.CanvasHeight)},
		{"TRANSCODE_WORKERS", slotsString(c.TranscodeWorkers)},
		{"APP_ENV", c.AppEnv},
		{"LOG_STATIC_FILES", strconv.FormatBool(c.LogStaticFiles)},
		{"LOG_HEALTH_CHECKS", strconv.FormatBool(c.LogHealthChecks)},
		{"LOG_LEVEL", logging.GetLevel().String()},
	}
}

// prepareDirectories makes every data directory absolute, present and writable.
func (c *Config) prepareDirectories() error {
	for _, d := range []struct {
		name string
		path *string
	}{
		{"upload", &c.UploadDir},
		{"output", &c.OutputDir},
		{"database", &c.DatabaseDir},
	} {
		abs, err := filepath.Abs(*d.path)
		if err != nil {
			return fmt.Errorf("resolve %s directory: %w", d.name, err)
		}
		*d.path = abs

		if err := ensureDirectory(abs); err != nil {
			return fmt.Errorf("%s directory %s: %w", d.name, abs, err)
		}
		if err := probeWritable(abs); err != nil {
			return fmt.Errorf("%s directory %s is not writable: %w", d.name, abs, err)
		}
		logging.Info("  [OK] %-8s %s", d.name, abs)
	}

	c.DatabasePath = filepath.Join(c.DatabaseDir, databaseFile)
	return nil
}

func ensureDirectory(path string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		logging.Debug("  creating %s", path)
		return os.MkdirAll(path, 0o755)
	case err != nil:
		return err
	case !info.IsDir():
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	if err := os.Remove(name); err != nil {
		logging.Warn("failed to remove write probe %s: %v", name, err)
	}
	return nil
}

func slotsString(n int) string {
	if n == 0 {
		return "unbounded"
	}
	return strconv.Itoa(n)
}

// envReader parses typed values, falling back to the default with a
// warning when a value is present but unusable.
type envReader struct {
	getenv func(string) string
}

func (e envReader) str(key, def string) string {
	if v := e.getenv(key); v != "" {
		return v
	}
	return def
}

func (e envReader) boolean(key string, def bool) bool {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logging.Warn("Invalid boolean for %s: %q, using %v", key, v, def)
		return def
	}
	return b
}

func (e envReader) integer(key string, def int) int {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logging.Warn("Invalid integer for %s: %q, using %d", key, v, def)
		return def
	}
	return n
}

func (e envReader) duration(key string, def time.Duration) time.Duration {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logging.Warn("Invalid duration for %s: %q, using %v", key, v, def)
		return def
	}
	return d
}

// size accepts human sizes such as "100MB" or "512MiB".
func (e envReader) size(key, def string) int64 {
	v := e.str(key, def)
	n, err := humanize.ParseBytes(v)
	if err != nil || n == 0 {
		logging.Warn("Invalid size for %s: %q, using %s", key, v, def)
		n, _ = humanize.ParseBytes(def)
	}
	return int64(n)
}
