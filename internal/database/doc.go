// Package database provides the SQLite composition history for the
// VertiClipper backend.
//
// It records:
//   - Accepted upload sessions and how many overlays they carry
//   - The terminal state of every compose request (done or failed)
//
// The database uses WAL mode and initializes its schema automatically.
// Rows older than the cleanup cutoff are purged by the session sweeper so
// history never outlives the files it describes.
package database
