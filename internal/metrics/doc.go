// Package metrics provides Prometheus instrumentation for the verticlipper
// service.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "verticlipper_".
//
// # Metric Categories
//
//   - HTTP: request counts, latency and in-flight requests
//   - Uploads: outcomes per request and bytes received per asset role
//   - Probe: ffprobe and image inspection latency and failures
//   - Transcoder: ffmpeg job counts, duration, running and queued jobs
//   - Compositions: terminal states and the state a failure happened in
//   - Storage: bytes held in the upload and output roots, session count,
//     cleanup sweep activity
//   - Filesystem: per-volume operation latency and stale-handle retries
//   - Database: composition history query counts and latency
//
// # Collector
//
// [Collector] periodically measures the upload and output roots and reads
// composition totals from a [StatsProvider]:
//
//	collector := metrics.NewCollector(db, roots, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Composition failure ratio:
//
//	sum(rate(verticlipper_compositions_total{status="failed"}[1h])) /
//	sum(rate(verticlipper_compositions_total[1h]))
//
// P95 ffmpeg runtime for compositions:
//
//	histogram_quantile(0.95, sum(rate(verticlipper_transcoder_job_duration_seconds_bucket{type="compose"}[1h])) by (le))
package metrics
