/*
Package workers sizes and bounds concurrent work in containerized
environments.

Count and its helpers derive a worker count from GOMAXPROCS, which Go
1.19+ sets from the container CPU limit, rather than runtime.NumCPU which
reports host CPUs.

Limiter is a counting semaphore placed in front of ffmpeg. Each compose or
preview job holds one slot for the lifetime of its process, so the number
of simultaneous transcodes never exceeds the configured capacity:

	limiter := workers.NewLimiter(workers.TranscodeSlots(4))
	if err := limiter.Acquire(ctx); err != nil {
	    return err // request gave up while queued
	}
	defer limiter.Release()

TRANSCODE_WORKERS overrides the CPU-based default. Setting it to 0 removes
the cap and admits every request immediately.
*/
package workers
