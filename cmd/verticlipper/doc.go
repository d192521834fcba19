// Package main provides the entry point for the VertiClipper backend.
//
// VertiClipper turns a landscape video into a vertical clip: a user uploads
// a video, a portrait background and up to two overlay images, then asks for
// a time range and overlay placements. The server composites everything onto
// a fixed canvas with ffmpeg and serves the resulting MP4.
//
// # Application Lifecycle
//
//  1. Memory Configuration: sets GOMEMLIMIT from MEMORY_LIMIT, leaving room
//     for the ffmpeg child processes
//  2. Configuration Loading: reads environment variables, resolves and
//     write-tests the upload, output and database directories
//  3. Database Initialization: opens the SQLite composition history (WAL)
//  4. Component Initialization:
//     - libvips for header-only image inspection
//     - Session store rooted at UPLOAD_DIR
//     - Transcoder and prober wrapping ffmpeg and ffprobe
//     - Composer running the validate, resolve, build, transcode pipeline
//     - Memory monitor refusing new work under pressure
//     - Sweeper removing expired sessions and outputs
//     - Metrics collector sampling storage and history
//  5. HTTP Server Setup: routes, middleware and an optional metrics listener
//  6. Graceful Shutdown: SIGINT/SIGTERM stops every component in order
//
// # HTTP Server
//
// The main server (default port 3001) exposes:
//
//   - POST /api/upload: multipart upload creating a session
//   - POST /api/compose: compose a session into final-<id>.mp4
//   - GET /api/compose/{sessionId}: latest composition for a session
//   - GET /outputs/ and /uploads/: generated files
//   - GET /api/health, /healthz, /livez, /readyz, /version
//
// Requests pass through CORS, the W3C access log and gzip compression of
// JSON bodies. The metrics server (default port 9090) serves /metrics and
// /health when METRICS_ENABLED is true.
//
// # Environment Variables
//
//   - PORT: main server port (default: 3001)
//   - UPLOAD_DIR, OUTPUT_DIR, DATABASE_DIR: storage roots
//   - MAX_UPLOAD_SIZE: per-file limit (default: 100MB)
//   - MAX_UPLOAD_FILES: file parts per upload (default: 4)
//   - CANVAS_WIDTH, CANVAS_HEIGHT: output frame (default: 1080x1920)
//   - CLEANUP_MAX_AGE, CLEANUP_INTERVAL: sweeper timing (default: 24h, 1h)
//   - FFMPEG_PATH, FFPROBE_PATH: binaries (default: from PATH)
//   - TRANSCODE_WORKERS: concurrent ffmpeg processes, 0 for unbounded
//   - METRICS_ENABLED, METRICS_PORT: metrics listener
//   - LOG_LEVEL or DEBUG, LOG_STATIC_FILES, LOG_HEALTH_CHECKS
//   - APP_ENV: "production" hides diagnostics from error responses
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: memory budget
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the readiness probe flips to not ready, background
// loops stop, both HTTP servers drain for up to 30 seconds, any ffmpeg
// process still running is killed and the database is closed.
package main
