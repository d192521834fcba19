// Package apperr defines the error taxonomy shared by the upload and
// compose pipelines.
//
// Every error that reaches an HTTP handler is classified into one of four
// kinds:
//   - Validation: bad input or a violated business rule, fixable by the client
//   - NotFound: unknown session or a missing role asset
//   - Processing: ffprobe/ffmpeg failures, carrying captured diagnostics
//   - Internal: unexpected filesystem or database failures
//
// A Code narrows the kind down to the specific rule that failed so tests
// and handlers can branch on it without matching message text.
package apperr
