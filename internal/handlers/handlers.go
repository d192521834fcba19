package handlers

import (
	"context"
	"sync/atomic"
	"time"

	"verticlipper/internal/assets"
	"verticlipper/internal/composer"
	"verticlipper/internal/database"
	"verticlipper/internal/media"
	"verticlipper/internal/metrics"
	"verticlipper/internal/probe"
	"verticlipper/internal/session"
	"verticlipper/internal/startup"
)

// VideoProber reads video metadata.
type VideoProber interface {
	Probe(ctx context.Context, path string) (*probe.VideoMetadata, error)
}

// Previewer produces the low resolution playback copy of an upload.
type Previewer interface {
	Downscale(ctx context.Context, input string) (string, error)
}

// Composer runs compose requests.
type Composer interface {
	Compose(ctx context.Context, req composer.Request) (*composer.Result, error)
}

// History is the composition history.
type History interface {
	RecordSession(ctx context.Context, s database.UploadSession) error
	LatestComposition(ctx context.Context, sessionID string) (*database.Composition, error)
	GetStats() metrics.Stats
}

// Pressure reports memory pressure. *memory.Monitor satisfies it.
type Pressure interface {
	IsPaused() bool
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Store     session.Store
	Prober    VideoProber
	Previewer Previewer
	Composer  Composer
	// History may be nil, in which case nothing is recorded.
	History History
	// Memory may be nil, in which case work is never refused.
	Memory Pressure
	// InspectImage defaults to media.InspectImage.
	InspectImage func(path string) (*media.ImageMetadata, error)
}

// Handlers serves the VertiClipper HTTP API.
type Handlers struct {
	store        session.Store
	prober       VideoProber
	previewer    Previewer
	composer     Composer
	history      History
	memory       Pressure
	inspectImage func(path string) (*media.ImageMetadata, error)

	policy     assets.Policy
	production bool
	startTime  time.Time
	ready      atomic.Bool
}

// New creates the handlers. They report not ready until SetReady(true).
func New(deps Deps, config *startup.Config) *Handlers {
	policy := assets.DefaultPolicy()
	if config.MaxUploadSize > 0 {
		policy.MaxFileSize = config.MaxUploadSize
	}
	if config.MaxUploadFiles > 0 {
		policy.MaxFiles = config.MaxUploadFiles
	}

	inspect := deps.InspectImage
	if inspect == nil {
		inspect = media.InspectImage
	}

	return &Handlers{
		store:        deps.Store,
		prober:       deps.Prober,
		previewer:    deps.Previewer,
		composer:     deps.Composer,
		history:      deps.History,
		memory:       deps.Memory,
		inspectImage: inspect,
		policy:       policy,
		production:   config.Production(),
		startTime:    time.Now(),
	}
}

// SetReady flips the readiness probe, e.g. false while shutting down.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}
