// Package probe extracts video metadata by running ffprobe.
//
// Each call to [Prober.Probe] spawns exactly one process:
//
//	ffprobe -v quiet -print_format json -show_format -show_streams <path>
//
// and decodes its JSON output into [VideoMetadata]. The process is started
// through a [Runner] so callers and tests can substitute their own.
package probe
