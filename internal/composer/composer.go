package composer

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"verticlipper/internal/apperr"
	"verticlipper/internal/assets"
	"verticlipper/internal/compositor"
	"verticlipper/internal/database"
	"verticlipper/internal/filesystem"
	"verticlipper/internal/logging"
	"verticlipper/internal/metrics"
	"verticlipper/internal/probe"
	"verticlipper/internal/session"
	"verticlipper/internal/transcoder"
)

// MaxClipDuration is the longest clip that may be composed, in seconds.
const MaxClipDuration = 60

// DefaultOpacity applies when an overlay spec leaves opacity unset.
const DefaultOpacity = 100

// OutputURLPrefix is where composed files are served.
const OutputURLPrefix = "/outputs/"

// State is a step of the compose state machine.
type State string

const (
	StateValidating  State = "validating"
	StateResolving   State = "resolving"
	StateBuilding    State = "building"
	StateTranscoding State = "transcoding"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Prober reads video metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.VideoMetadata, error)
}

// Transcoder runs one ffmpeg job and returns the published path.
type Transcoder interface {
	Transcode(ctx context.Context, job transcoder.Job) (string, error)
}

// Recorder stores terminal compose outcomes.
type Recorder interface {
	RecordComposition(ctx context.Context, c *database.Composition) error
}

// OverlaySpec places the n-th stored overlay. A nil Opacity means
// DefaultOpacity.
type OverlaySpec struct {
	X       int      `json:"x"`
	Y       int      `json:"y"`
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Opacity *float64 `json:"opacity,omitempty"`
}

// ClipRange is the requested trim of the source video, in seconds.
type ClipRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Request is a compose request.
type Request struct {
	SessionID string        `json:"sessionid"`
	Clip      ClipRange     `json:"clip"`
	Overlays  []OverlaySpec `json:"overlays"`
}

// Result describes a finished composition.
type Result struct {
	VideoURL       string  `json:"videoUrl"`
	Duration       float64 `json:"duration"`
	FileSize       int64   `json:"fileSize"`
	ProcessingTime int64   `json:"processingTime"`
	// OutputPath is the file on disk; not sent to clients.
	OutputPath string `json:"-"`
}

// Config wires a Composer.
type Config struct {
	Store      session.Store
	Prober     Prober
	Transcoder Transcoder
	// Recorder may be nil when history is disabled.
	Recorder  Recorder
	Canvas    compositor.Canvas
	OutputDir string
}

// Composer turns a session plus a compose request into a vertical video.
type Composer struct {
	store      session.Store
	prober     Prober
	transcoder Transcoder
	recorder   Recorder
	canvas     compositor.Canvas
	outputDir  string
	log        logging.Logger
	retry      filesystem.RetryConfig
	now        func() time.Time
}

// New creates a Composer.
func New(cfg Config) *Composer {
	return &Composer{
		store:      cfg.Store,
		prober:     cfg.Prober,
		transcoder: cfg.Transcoder,
		recorder:   cfg.Recorder,
		canvas:     cfg.Canvas,
		outputDir:  cfg.OutputDir,
		log:        logging.With("compose"),
		retry:      filesystem.DefaultRetryConfig(),
		now:        time.Now,
	}
}

// OutputName returns the deterministic output file name for a session.
func OutputName(sessionID string) string {
	return "final-" + sessionID + ".mp4"
}

// run tracks one request as it moves through the states.
type run struct {
	c       *Composer
	req     Request
	state   State
	started time.Time

	video      string
	background string
	overlays   []string
	meta       *probe.VideoMetadata
	graph      compositor.Graph
}

func (r *run) enter(s State) {
	r.state = s
	r.c.log.Debug("session %s: %s", r.req.SessionID, s)
}

// Compose validates req, builds the filter graph and runs the transcoder.
// The output overwrites any previous composition of the same session.
func (c *Composer) Compose(ctx context.Context, req Request) (*Result, error) {
	r := &run{c: c, req: req, started: c.now()}

	result, err := r.execute(ctx)
	if err != nil {
		failedIn := r.state
		r.enter(StateFailed)
		metrics.CompositionsTotal.WithLabelValues(string(StateFailed)).Inc()
		metrics.CompositionFailures.WithLabelValues(string(failedIn)).Inc()

		if e, ok := apperr.As(err); ok && e.Diagnostic != "" {
			c.log.Error("session %s failed while %s: %v\n%s", req.SessionID, failedIn, err, e.Diagnostic)
		} else {
			c.log.Warn("session %s failed while %s: %v", req.SessionID, failedIn, err)
		}

		c.record(ctx, &database.Composition{
			SessionID:      req.SessionID,
			Status:         database.StatusFailed,
			ProcessingTime: c.now().Sub(r.started).Milliseconds(),
			Error:          clientMessage(err),
		})
		return nil, err
	}

	r.enter(StateDone)
	metrics.CompositionsTotal.WithLabelValues(string(StateDone)).Inc()
	metrics.CompositionOutputBytes.Observe(float64(result.FileSize))
	c.log.Info("session %s composed %s (%.1fs clip, %d bytes) in %dms",
		req.SessionID, result.VideoURL, result.Duration, result.FileSize, result.ProcessingTime)

	c.record(ctx, &database.Composition{
		SessionID:      req.SessionID,
		Status:         database.StatusDone,
		OutputURL:      result.VideoURL,
		Duration:       result.Duration,
		FileSize:       result.FileSize,
		ProcessingTime: result.ProcessingTime,
	})
	return result, nil
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	r.enter(StateValidating)
	if err := r.validate(ctx); err != nil {
		return nil, err
	}

	r.enter(StateResolving)
	if err := r.resolveOverlays(); err != nil {
		return nil, err
	}

	r.enter(StateBuilding)
	if err := r.build(); err != nil {
		return nil, err
	}

	r.enter(StateTranscoding)
	return r.transcode(ctx)
}

func (r *run) validate(ctx context.Context) error {
	req := r.req
	c := r.c

	if !session.ValidID(req.SessionID) || !c.store.Exists(req.SessionID) {
		return apperr.NotFound(apperr.CodeSessionNotFound, "Session folder not found. Please upload files first.")
	}

	if err := validateClip(req.Clip); err != nil {
		return err
	}

	if err := validateOverlays(req.Overlays); err != nil {
		return err
	}

	var err error
	r.video, err = c.store.Resolve(req.SessionID, session.SlotVideo)
	if err != nil {
		return missingAsset(err, "No video file found in session.")
	}
	r.background, err = c.store.Resolve(req.SessionID, session.SlotBackground)
	if err != nil {
		return missingAsset(err, "No background file found in session.")
	}

	// Every requested overlay must have a stored asset at its index.
	for i := range req.Overlays {
		if _, err := c.store.Resolve(req.SessionID, session.OverlaySlot(i+1)); err != nil {
			if !apperr.HasCode(err, apperr.CodeSessionAssetMissing) {
				return err
			}
			return apperr.Validation(apperr.CodeTooManyOverlays,
				"Overlay #%d file not found in session folder (requested %d overlays)", i+1, len(req.Overlays))
		}
	}

	r.meta, err = c.prober.Probe(ctx, r.video)
	if err != nil {
		return err
	}

	if req.Clip.End > r.meta.Duration {
		return apperr.Validation(apperr.CodeInvalidClip,
			"Clip end time (%ss) exceeds video duration (%.1fs).", formatSeconds(req.Clip.End), r.meta.Duration)
	}
	return nil
}

func validateClip(clip ClipRange) error {
	if !finite(clip.Start) || !finite(clip.End) {
		return apperr.Validation(apperr.CodeInvalidClip, "Clip start and end must be numbers.")
	}
	if clip.Start < 0 {
		return apperr.Validation(apperr.CodeInvalidClip, "Clip start time must not be negative.")
	}
	if clip.Start >= clip.End {
		return apperr.Validation(apperr.CodeInvalidClip, "Clip start time must be less than end time.")
	}
	if clip.End-clip.Start > MaxClipDuration {
		return apperr.Validation(apperr.CodeInvalidClip, "Maximum clip duration is %d seconds.", MaxClipDuration)
	}
	return nil
}

func validateOverlays(specs []OverlaySpec) error {
	if len(specs) > assets.MaxOverlays {
		return apperr.Validation(apperr.CodeTooManyOverlays,
			"Max %d overlays allowed. Overlay #%d cannot be placed.", assets.MaxOverlays, assets.MaxOverlays+1)
	}

	for i, spec := range specs {
		n := i + 1
		switch {
		case spec.X < 0 || spec.Y < 0:
			return apperr.Validation(apperr.CodeInvalidRequest, "Overlay #%d position must not be negative.", n)
		case spec.Width < 1 || spec.Height < 1:
			return apperr.Validation(apperr.CodeInvalidRequest, "Overlay #%d width and height must be at least 1.", n)
		case spec.Opacity != nil && (!finite(*spec.Opacity) || *spec.Opacity < 0 || *spec.Opacity > 100):
			return apperr.Validation(apperr.CodeInvalidRequest, "Overlay #%d opacity must be between 0 and 100.", n)
		}
	}
	return nil
}

// resolveOverlays maps spec i to the overlay{i+1} asset.
func (r *run) resolveOverlays() error {
	r.overlays = make([]string, 0, len(r.req.Overlays))
	for i := range r.req.Overlays {
		path, err := r.c.store.Resolve(r.req.SessionID, session.OverlaySlot(i+1))
		if err != nil {
			return missingAsset(err, fmt.Sprintf("Overlay #%d file not found in session folder", i+1))
		}
		r.overlays = append(r.overlays, path)
	}
	return nil
}

func (r *run) build() error {
	placement, err := compositor.Fit(r.meta.Width, r.meta.Height, r.c.canvas)
	if err != nil {
		return err
	}

	overlays := make([]compositor.Overlay, len(r.req.Overlays))
	for i, spec := range r.req.Overlays {
		opacity := float64(DefaultOpacity)
		if spec.Opacity != nil {
			opacity = *spec.Opacity
		}
		overlays[i] = compositor.Overlay{
			X:       spec.X,
			Y:       spec.Y,
			Width:   spec.Width,
			Height:  spec.Height,
			Opacity: opacity,
		}
	}

	r.graph = compositor.Build(compositor.Plan{
		Canvas:    r.c.canvas,
		Video:     placement,
		Clip:      compositor.Clip{Start: r.req.Clip.Start, End: r.req.Clip.End},
		Overlays:  overlays,
		WithAudio: r.meta.HasAudio,
	})
	r.c.log.Debug("session %s: video %dx%d at %d,%d; graph %s",
		r.req.SessionID, placement.Width, placement.Height, placement.X, placement.Y, r.graph.FilterComplex())
	return nil
}

func (r *run) transcode(ctx context.Context) (*Result, error) {
	inputs := compositor.Inputs{
		Background: r.background,
		Video:      r.video,
		Overlays:   r.overlays,
	}
	name := OutputName(r.req.SessionID)
	graph := r.graph
	fps := r.meta.FPS

	out, err := r.c.transcoder.Transcode(ctx, transcoder.Job{
		Kind:   transcoder.JobCompose,
		Output: filepath.Join(r.c.outputDir, name),
		Args: func(output string) []string {
			return compositor.Args(inputs, graph, fps, output)
		},
	})
	if err != nil {
		return nil, err
	}

	info, err := filesystem.StatWithRetry(out, r.c.retry)
	if err != nil {
		return nil, apperr.Internal("Failed to read composed video", err)
	}

	return &Result{
		VideoURL:       OutputURLPrefix + name,
		Duration:       r.req.Clip.End - r.req.Clip.Start,
		FileSize:       info.Size(),
		ProcessingTime: r.c.now().Sub(r.started).Milliseconds(),
		OutputPath:     out,
	}, nil
}

func (c *Composer) record(ctx context.Context, rec *database.Composition) {
	if c.recorder == nil {
		return
	}
	// Recorded even when the client has disconnected.
	ctx = context.WithoutCancel(ctx)
	if err := c.recorder.RecordComposition(ctx, rec); err != nil {
		c.log.Warn("session %s: failed to record %s composition: %v", rec.SessionID, rec.Status, err)
	}
}

// missingAsset rewrites a session asset miss with a request-specific message.
func missingAsset(err error, message string) error {
	if apperr.HasCode(err, apperr.CodeSessionAssetMissing) {
		return apperr.NotFound(apperr.CodeSessionAssetMissing, "%s", message)
	}
	return err
}

func clientMessage(err error) string {
	if e, ok := apperr.As(err); ok {
		return e.Message
	}
	return err.Error()
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func formatSeconds(f float64) string {
	return fmt.Sprint(f)
}
