package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, status := range []string{"success", "validation", "not_found", "processing", "internal"} {
		UploadsTotal.WithLabelValues(status)
	}

	for _, role := range []string{"video", "background", "overlay"} {
		UploadBytesTotal.WithLabelValues(role)
	}

	for _, kind := range []string{"video", "image"} {
		ProbeDuration.WithLabelValues(kind)
		ProbeErrors.WithLabelValues(kind)
	}

	for _, jobType := range []string{"compose", "preview"} {
		TranscoderJobDuration.WithLabelValues(jobType)
		for _, status := range []string{"success", "error"} {
			TranscoderJobsTotal.WithLabelValues(jobType, status)
		}
	}

	for _, status := range []string{"done", "failed"} {
		CompositionsTotal.WithLabelValues(status)
	}
	for _, state := range []string{"validating", "resolving", "building", "transcoding"} {
		CompositionFailures.WithLabelValues(state)
	}

	for _, vol := range []string{"uploads", "outputs"} {
		FileBytesServed.WithLabelValues(vol)
		FileServeTimeouts.WithLabelValues(vol)
	}

	for _, endpoint := range []string{"upload", "compose"} {
		MemoryRejections.WithLabelValues(endpoint)
	}

	volumes := []string{"uploads", "outputs", "database", "unknown"}
	fsOps := []string{"stat", "readdir", "rename", "remove"}
	for _, vol := range volumes {
		StorageBytes.WithLabelValues(vol)
		CleanupFilesRemoved.WithLabelValues(vol)
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}
}
