// Package middleware provides HTTP middleware for the VertiClipper API.
//
// It includes:
//   - CORS for the browser editor
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
//   - gzip compression of JSON responses
package middleware
