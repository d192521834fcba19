// Package memory keeps the server inside its container memory budget.
//
// ConfigureFromEnv sets GOMEMLIMIT from MEMORY_LIMIT (the Kubernetes
// Downward API value) times MEMORY_RATIO. The default ratio leaves room for
// the ffmpeg and ffprobe child processes, which count against the same
// cgroup limit but not against the Go heap.
//
// Monitor samples the heap on an interval. Once usage crosses the critical
// water mark IsPaused reports true and the HTTP layer answers new uploads
// and compose requests with 503 until usage drops below the high water
// mark. Requests already running are not interrupted.
package memory
