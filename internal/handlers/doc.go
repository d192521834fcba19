// Package handlers provides the HTTP handlers of the VertiClipper API.
//
// It includes handlers for:
//   - Streaming multipart uploads into a new session
//   - Compose requests and the latest composition of a session
//   - Health, liveness, readiness and version endpoints
//   - JSON 404 responses for unknown routes
//
// Every API response is a JSON envelope carrying success, data or error,
// and an RFC3339 timestamp.
package handlers
