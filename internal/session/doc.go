// Package session stores uploaded assets between upload and compose.
//
// Each upload session owns one directory under the upload root, named by a
// random UUID. An asset's role is encoded as a filename prefix ("video-",
// "bg-", "overlay1-", "overlay2-") and that prefix is the only index: to
// find an asset the directory is listed and the first name carrying the
// prefix wins.
//
// Files reach a session by atomic rename from a staging directory on the
// same volume, so no cross-request locking is needed. [Sweeper] deletes
// files older than a cutoff from the upload and output roots.
package session
