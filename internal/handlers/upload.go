package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"verticlipper/internal/apperr"
	"verticlipper/internal/assets"
	"verticlipper/internal/database"
	"verticlipper/internal/logging"
	"verticlipper/internal/media"
	"verticlipper/internal/metrics"
	"verticlipper/internal/probe"
	"verticlipper/internal/session"
	"verticlipper/internal/workers"

	"golang.org/x/sync/errgroup"
)

// multipartOverhead allows for part headers and boundaries on top of the
// file payloads when capping the request body.
const multipartOverhead = 1 << 20

// UploadedVideo is the video entry of an upload response.
type UploadedVideo struct {
	Path        string               `json:"path"`
	Metadata    *probe.VideoMetadata `json:"metadata"`
	DownresPath string               `json:"downresPath"`
}

// UploadedImage is the background entry of an upload response.
type UploadedImage struct {
	Path     string               `json:"path"`
	Metadata *media.ImageMetadata `json:"metadata"`
}

// OverlayMetadata is image metadata plus the overlay's position in the upload.
type OverlayMetadata struct {
	*media.ImageMetadata
	Index int `json:"index"`
}

// UploadedOverlay is one overlay entry of an upload response.
type UploadedOverlay struct {
	Path     string          `json:"path"`
	Metadata OverlayMetadata `json:"metadata"`
}

// UploadResult is the data of a successful upload response.
type UploadResult struct {
	SessionID  string            `json:"sessionId"`
	Video      UploadedVideo     `json:"video"`
	Background UploadedImage     `json:"background"`
	Overlays   []UploadedOverlay `json:"overlays"`
}

// stagedPart is one file part written to the staging directory.
type stagedPart struct {
	role     assets.Role
	path     string
	original string
	size     int64
}

// stagedUpload holds the parts of one request before they are committed.
type stagedUpload struct {
	video      *stagedPart
	background *stagedPart
	overlays   []*stagedPart
}

// Upload accepts a video, a background and up to two overlays, validates
// them and stores them in a new session.
// POST /api/upload
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if h.overloaded(w, r, "upload") {
		return
	}
	result, err := h.upload(w, r)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(apperr.KindOf(err).String()).Inc()
		h.writeError(w, r, err)
		return
	}

	metrics.UploadsTotal.WithLabelValues("success").Inc()
	writeData(w, result)
}

func (h *Handlers) upload(w http.ResponseWriter, r *http.Request) (*UploadResult, error) {
	ctx := r.Context()

	limit := h.policy.MaxFileSize*int64(h.policy.MaxFiles) + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, apperr.Validation(apperr.CodeInvalidRequest, "Expected a multipart/form-data upload.")
	}

	stagingDir, err := h.store.Stage()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(stagingDir); err != nil {
			logging.Warn("Failed to remove staging directory %s: %v", stagingDir, err)
		}
	}()

	staged, err := h.readParts(mr, stagingDir)
	if err != nil {
		return nil, err
	}

	videoMeta, bgMeta, overlayMeta, err := h.inspect(ctx, staged)
	if err != nil {
		return nil, err
	}

	sessionID, err := h.store.Create()
	if err != nil {
		return nil, err
	}

	result, err := h.commit(ctx, sessionID, staged, videoMeta, bgMeta, overlayMeta)
	if err != nil {
		if discardErr := h.store.Discard(sessionID); discardErr != nil {
			logging.Warn("Failed to discard session %s: %v", sessionID, discardErr)
		}
		return nil, err
	}

	if h.history != nil {
		if err := h.history.RecordSession(context.WithoutCancel(ctx), database.UploadSession{
			ID:           sessionID,
			OverlayCount: len(staged.overlays),
		}); err != nil {
			logging.Warn("Failed to record session %s: %v", sessionID, err)
		}
	}

	logging.Info("Session %s created: video %dx%d %.1fs, %d overlay(s)",
		sessionID, videoMeta.Width, videoMeta.Height, videoMeta.Duration, len(staged.overlays))
	return result, nil
}

// readParts streams every file part to stagingDir, enforcing the policy
// before any bytes are written.
func (h *Handlers) readParts(mr *multipart.Reader, stagingDir string) (*stagedUpload, error) {
	var (
		staged stagedUpload
		tally  assets.Tally
	)

	for n := 0; ; n++ {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, uploadReadError(err, h.policy, "")
		}

		if part.FileName() == "" {
			// Non-file form fields carry nothing we use.
			_, _ = io.Copy(io.Discard, part)
			part.Close()
			continue
		}

		sp, err := h.stagePart(part, &tally, stagingDir, n)
		part.Close()
		if err != nil {
			return nil, err
		}

		switch sp.role {
		case assets.RoleVideo:
			staged.video = sp
		case assets.RoleBackground:
			staged.background = sp
		case assets.RoleOverlay:
			staged.overlays = append(staged.overlays, sp)
		}
	}

	if err := h.policy.Complete(tally); err != nil {
		return nil, err
	}
	return &staged, nil
}

func (h *Handlers) stagePart(part *multipart.Part, tally *assets.Tally, stagingDir string, n int) (*stagedPart, error) {
	role, err := assets.RoleForField(part.FormName())
	if err != nil {
		return nil, err
	}
	if err := h.policy.Admit(tally, role); err != nil {
		return nil, err
	}

	filename := part.FileName()
	if err := assets.ValidateFormat(role, part.Header.Get("Content-Type"), filename); err != nil {
		return nil, err
	}

	path := filepath.Join(stagingDir, fmt.Sprintf("%d%s", n, filepath.Ext(assets.SanitizeFilename(filename))))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, apperr.Internal("Failed to stage upload", err)
	}

	size, err := io.CopyN(f, part, h.policy.MaxFileSize+1)
	closeErr := f.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, uploadReadError(err, h.policy, filename)
	}
	if closeErr != nil {
		return nil, apperr.Internal("Failed to stage upload", closeErr)
	}
	if size > h.policy.MaxFileSize {
		return nil, h.policy.TooLarge(filename)
	}

	metrics.UploadBytesTotal.WithLabelValues(string(role)).Add(float64(size))
	logging.Debug("Staged %s part %q (%d bytes)", role, filename, size)
	return &stagedPart{role: role, path: path, original: filename, size: size}, nil
}

func uploadReadError(err error, policy assets.Policy, filename string) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		if filename == "" {
			filename = "upload"
		}
		return policy.TooLarge(filename)
	}
	return apperr.Validation(apperr.CodeInvalidRequest, "Malformed multipart upload: %v", err)
}

// inspect probes the staged video and images and applies the orientation
// rules. Overlays are inspected concurrently.
func (h *Handlers) inspect(ctx context.Context, staged *stagedUpload) (*probe.VideoMetadata, *media.ImageMetadata, []*media.ImageMetadata, error) {
	videoMeta, err := h.prober.Probe(ctx, staged.video.path)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := assets.CheckVideoOrientation(videoMeta); err != nil {
		return nil, nil, nil, err
	}
	if !probe.IsSupportedCodec(videoMeta.Codec) {
		logging.Warn("Video codec %s may not be supported by the encoder", videoMeta.Codec)
	}

	bgMeta, err := h.inspectImage(staged.background.path)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := assets.CheckBackgroundOrientation(bgMeta); err != nil {
		return nil, nil, nil, err
	}

	overlayMeta := make([]*media.ImageMetadata, len(staged.overlays))
	g := new(errgroup.Group)
	g.SetLimit(workers.ForIO(assets.MaxOverlays))
	for i, ov := range staged.overlays {
		g.Go(func() error {
			meta, err := h.inspectImage(ov.path)
			if err != nil {
				return err
			}
			overlayMeta[i] = meta
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	return videoMeta, bgMeta, overlayMeta, nil
}

// commit moves the staged parts into the session and renders the preview.
func (h *Handlers) commit(ctx context.Context, sessionID string, staged *stagedUpload,
	videoMeta *probe.VideoMetadata, bgMeta *media.ImageMetadata, overlayMeta []*media.ImageMetadata,
) (*UploadResult, error) {
	videoPath, err := h.store.Commit(sessionID, session.SlotVideo, staged.video.path, staged.video.original)
	if err != nil {
		return nil, err
	}
	bgPath, err := h.store.Commit(sessionID, session.SlotBackground, staged.background.path, staged.background.original)
	if err != nil {
		return nil, err
	}

	overlays := make([]UploadedOverlay, 0, len(staged.overlays))
	for i, ov := range staged.overlays {
		path, err := h.store.Commit(sessionID, session.OverlaySlot(i+1), ov.path, ov.original)
		if err != nil {
			return nil, err
		}
		overlays = append(overlays, UploadedOverlay{
			Path:     uploadURL(sessionID, path),
			Metadata: OverlayMetadata{ImageMetadata: overlayMeta[i], Index: i},
		})
	}

	preview, err := h.previewer.Downscale(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	return &UploadResult{
		SessionID: sessionID,
		Video: UploadedVideo{
			Path:        uploadURL(sessionID, videoPath),
			Metadata:    videoMeta,
			DownresPath: uploadURL(sessionID, preview),
		},
		Background: UploadedImage{
			Path:     uploadURL(sessionID, bgPath),
			Metadata: bgMeta,
		},
		Overlays: overlays,
	}, nil
}

// uploadURL is where a session file is served from.
func uploadURL(sessionID, path string) string {
	return "/uploads/" + sessionID + "/" + filepath.Base(path)
}
