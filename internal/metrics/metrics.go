package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticlipper_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verticlipper_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "verticlipper_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Upload metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticlipper_uploads_total",
			Help: "Total number of upload requests by outcome",
		},
		[]string{"status"}, // "success", "validation", "processing", "internal"
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticlipper_upload_bytes_total",
			Help: "Total bytes received per asset role",
		},
		[]string{"role"},
	)
)

// Probe metrics
var (
	ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verticlipper_probe_duration_seconds",
			Help:    "Media probe duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"}, // "video", "image"
	)

	ProbeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticlipper_probe_errors_total",
			Help: "Total number of failed media probes",
		},
		[]string{"kind"},
	)
)

// Transcoder metrics
var (
	TranscoderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticlipper_transcoder_jobs_total",
			Help: "Total number of transcoder processes by job type and outcome",
		},
		[]string{"type", "status"}, // type: "compose", "preview"
	)

	TranscoderJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verticlipper_transcoder_job_duration_seconds",
			Help:    "Transcoder process duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)

	TranscoderJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "verticlipper_transcoder_jobs_in_progress",
			Help: "Number of transcoder processes currently running",
		},
	)

	TranscoderJobsQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "verticlipper_transcoder_jobs_queued",
			Help: "Number of transcoder jobs waiting for a worker slot",
		},
	)
)

// Composition metrics
var (
	CompositionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticlipper_compositions_total",
			Help: "Total number of composition requests by terminal state",
		},
		[]string{"status"}, // "done", "failed"
	)

	CompositionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticlipper_composition_failures_total",
			Help: "Failed compositions by the state they failed in",
		},
		[]string{"state"},
	)

	CompositionOutputBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "verticlipper_composition_output_bytes",
			Help:    "Size of produced composite files in bytes",
			Buckets: prometheus.ExponentialBuckets(256*1024, 2, 10),
		},
	)
)

// Storage metrics
var (
	StorageBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "verticlipper_storage_bytes",
			Help: "Bytes currently stored per root directory",
		},
		[]string{"volume"}, // "uploads", "outputs"
	)

	SessionsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "verticlipper_sessions",
			Help: "Number of upload session directories on disk",
		},
	)

	HistorySessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "verticlipper_history_sessions",
			Help: "Upload sessions recorded in the composition history",
		},
	)

	HistoryCompositions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "verticlipper_history_compositions",
			Help: "Compositions recorded in the composition history by status",
		},
		[]string{"status"},
	)

	CleanupFilesRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticlipper_cleanup_files_removed_total",
			Help: "Files removed by the cleanup sweep",
		},
		[]string{"volume"},
	)

	CleanupBytesFreed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verticlipper_cleanup_bytes_freed_total",
			Help: "Bytes freed by the cleanup sweep",
		},
	)

	CleanupLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "verticlipper_cleanup_last_run_timestamp",
			Help: "Unix timestamp of the last cleanup sweep",
		},
	)
)

// File serving metrics
var (
	FileBytesServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticlipper_file_bytes_served_total",
			Help: "Bytes served from the output and upload roots",
		},
		[]string{"volume"},
	)

	FileServeTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticlipper_file_serve_timeouts_total",
			Help: "Downloads cut off because the client stopped reading",
		},
		[]string{"volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "verticlipper_memory_usage_ratio",
			Help: "Go heap allocation as a fraction of GOMEMLIMIT",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "verticlipper_memory_paused",
			Help: "1 while new uploads and compositions are refused for memory pressure",
		},
	)

	MemoryRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticlipper_memory_rejections_total",
			Help: "Requests refused while memory was critical",
		},
		[]string{"endpoint"},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verticlipper_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticlipper_filesystem_operation_errors_total",
			Help: "Filesystem operation errors",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticlipper_filesystem_retry_attempts_total",
			Help: "Filesystem operation retries after a stale handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticlipper_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticlipper_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticlipper_filesystem_stale_errors_total",
			Help: "Stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verticlipper_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verticlipper_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "verticlipper_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
