package database

import "time"

// CompositionStatus is the terminal state of a composition.
type CompositionStatus string

const (
	StatusDone   CompositionStatus = "done"
	StatusFailed CompositionStatus = "failed"
)

// UploadSession is one accepted upload.
type UploadSession struct {
	ID           string    `json:"id"`
	OverlayCount int       `json:"overlayCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Composition is the outcome of one compose request.
type Composition struct {
	ID             int64             `json:"id"`
	SessionID      string            `json:"sessionId"`
	Status         CompositionStatus `json:"status"`
	OutputURL      string            `json:"videoUrl,omitempty"`
	Duration       float64           `json:"duration"`
	FileSize       int64             `json:"fileSize"`
	ProcessingTime int64             `json:"processingTime"`
	Error          string            `json:"error,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}
