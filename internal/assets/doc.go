// Package assets decides which uploaded files are acceptable.
//
// Validation happens in two passes. Format checks ([ValidateFormat]) run on
// each multipart part header before any byte is written, and the upload
// [Policy] caps how many parts of each role one request may carry.
// Orientation checks run on the probed metadata of the temporary files,
// before anything is committed to a session, so a rejected request never
// leaves a partial session behind.
package assets
