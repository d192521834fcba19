// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - PORT: HTTP server port (default: 3001)
//   - UPLOAD_DIR: Root for per-session upload directories (default: ./uploads)
//   - OUTPUT_DIR: Root for composed clips (default: ./outputs)
//   - DATABASE_DIR: Path to the composition history database (default: ./data)
//   - MAX_UPLOAD_SIZE: Per-file upload limit, human readable (default: 100MB)
//   - MAX_UPLOAD_FILES: Maximum file parts per upload (default: 4)
//   - CLEANUP_MAX_AGE: Age after which uploads and outputs are swept (default: 24h)
//   - CLEANUP_INTERVAL: Sweep interval (default: 1h)
//   - CANVAS_WIDTH / CANVAS_HEIGHT: Output frame size (default: 1080x1920)
//   - FFMPEG_PATH / FFPROBE_PATH: Transcoder binaries (default: from PATH)
//   - TRANSCODE_WORKERS: Concurrent ffmpeg processes, 0 for unbounded
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - APP_ENV: "production" hides transcoder diagnostics from clients
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_STATIC_FILES: Log static file requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// All three directories are resolved to absolute paths, created when
// missing and tested for write access. Any failure aborts startup.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
