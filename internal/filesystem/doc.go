/*
Package filesystem provides resilient filesystem operations for the upload
and output roots, with automatic retry on stale file handle errors.

The session store and the transcoder both move files between directories
that may live on a network mount in container deployments. Every helper
here wraps the matching os function:

  - StatWithRetry: os.Stat
  - ReadDirWithRetry: os.ReadDir (used for role-prefix lookups)
  - RenameWithRetry: os.Rename (atomic commit of uploads and outputs)
  - RemoveWithRetry: os.Remove (cleanup sweep, rollback)

Only ESTALE triggers a retry, with exponential backoff (50ms, 100ms, 200ms
by default). All other errors are returned immediately.

Operations are labelled with a volume name resolved by longest-prefix match
against the configured roots and reported through an Observer, which the
metrics package implements:

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "uploads": cfg.UploadDir,
	    "outputs": cfg.OutputDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())
*/
package filesystem
