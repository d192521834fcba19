// Package composer runs a compose request through its states:
//
//	Validating -> Resolving -> Building -> Transcoding -> Done | Failed
//
// Validation covers the session, the clip range against the probed source
// duration and the overlay list. Nothing is handed to the transcoder until
// every check has passed. Each terminal state is written to the
// composition history and counted in metrics.
package composer
