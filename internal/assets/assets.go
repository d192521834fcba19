package assets

import (
	"path/filepath"
	"regexp"
	"strings"

	"verticlipper/internal/apperr"
	"verticlipper/internal/media"
	"verticlipper/internal/mediatypes"
	"verticlipper/internal/probe"

	"github.com/dustin/go-humanize"
)

// Role is the part an asset plays in a composition.
type Role string

const (
	RoleVideo      Role = "video"
	RoleBackground Role = "background"
	RoleOverlay    Role = "overlay"
)

// Multipart field names accepted by the upload endpoint.
const (
	FieldVideo      = "video"
	FieldBackground = "background"
	FieldOverlays   = "overlays"
)

// MaxOverlays is the number of overlay images one session can hold.
const MaxOverlays = 2

// RoleForField maps a multipart part name to its role.
func RoleForField(field string) (Role, error) {
	switch field {
	case FieldVideo:
		return RoleVideo, nil
	case FieldBackground:
		return RoleBackground, nil
	case FieldOverlays:
		return RoleOverlay, nil
	default:
		return "", apperr.Validation(apperr.CodeUnknownField, "Unknown field: %s", field)
	}
}

// FileType returns the media kind a role must be.
func (r Role) FileType() mediatypes.FileType {
	if r == RoleVideo {
		return mediatypes.FileTypeVideo
	}
	return mediatypes.FileTypeImage
}

// ValidateFormat checks the declared content type and the extension of
// filename against the formats accepted for role. Both must match.
func ValidateFormat(role Role, contentType, filename string) error {
	ft := role.FileType()
	ext := strings.ToLower(filepath.Ext(filename))

	if !mediatypes.AcceptsContentType(ft, contentType) {
		if ft == mediatypes.FileTypeVideo {
			return apperr.Validation(apperr.CodeInvalidFormat,
				"Invalid video format: %s. Supported formats: MP4, MOV, AVI, WebM, WMV, 3GP", contentType)
		}
		return apperr.Validation(apperr.CodeInvalidFormat,
			"Invalid image format: %s. Supported formats: JPEG, PNG, WebP, BMP, TIFF", contentType)
	}

	if mediatypes.GetFileType(ext) != ft {
		return apperr.Validation(apperr.CodeInvalidFormat, "Invalid %s file extension: %q", ft, ext)
	}

	return nil
}

// CheckVideoOrientation rejects videos that are not strictly landscape.
func CheckVideoOrientation(meta *probe.VideoMetadata) error {
	if !meta.IsLandscape() {
		return apperr.Validation(apperr.CodeRejectOrientation,
			"Video must be horizontal. current size %dx%d", meta.Width, meta.Height)
	}
	return nil
}

// CheckBackgroundOrientation rejects backgrounds that are not strictly portrait.
func CheckBackgroundOrientation(meta *media.ImageMetadata) error {
	if !meta.IsPortrait() {
		return apperr.Validation(apperr.CodeRejectOrientation,
			"Background must be vertical. current size %dx%d", meta.Width, meta.Height)
	}
	return nil
}

var (
	unsafeChars = regexp.MustCompile(`[^\w\s.-]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

const maxFilenameLength = 100

// SanitizeFilename strips everything but word characters, whitespace, dots
// and dashes, turns whitespace runs into underscores and caps the length.
// Names that sanitize to nothing, or to only dots, become "file".
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeChars.ReplaceAllString(name, "")
	name = whitespace.ReplaceAllString(name, "_")
	if len(name) > maxFilenameLength {
		name = name[:maxFilenameLength]
	}
	if strings.Trim(name, ".") == "" {
		return "file"
	}
	return name
}

// Policy caps the parts of a single upload request.
type Policy struct {
	MaxOverlays int
	MaxFiles    int
	MaxFileSize int64
}

// DefaultPolicy returns the limits used when none are configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxOverlays: MaxOverlays,
		MaxFiles:    4,
		MaxFileSize: 100 * 1000 * 1000,
	}
}

// Tally counts the parts seen so far in one request.
type Tally struct {
	Video      int
	Background int
	Overlays   int
}

// Files returns the total number of file parts.
func (t Tally) Files() int {
	return t.Video + t.Background + t.Overlays
}

// Admit records one more part of role, failing if it breaks a cap.
// Role caps are checked before the file cap so a third overlay is
// reported as such.
func (p Policy) Admit(t *Tally, role Role) error {
	var count *int
	switch role {
	case RoleVideo:
		if t.Video >= 1 {
			return apperr.Validation(apperr.CodeInvalidRequest, "Only one video is allowed.")
		}
		count = &t.Video
	case RoleBackground:
		if t.Background >= 1 {
			return apperr.Validation(apperr.CodeInvalidRequest, "Only one background is allowed.")
		}
		count = &t.Background
	case RoleOverlay:
		if t.Overlays >= p.MaxOverlays {
			return apperr.Validation(apperr.CodeTooManyOverlays, "Max %d overlays allowed.", p.MaxOverlays)
		}
		count = &t.Overlays
	default:
		return apperr.Validation(apperr.CodeUnknownField, "Unknown field: %s", role)
	}

	if t.Files() >= p.MaxFiles {
		return apperr.Validation(apperr.CodeTooManyFiles, "Too many files. Max %d files per upload.", p.MaxFiles)
	}
	*count++
	return nil
}

// Complete checks the mandatory roles once every part has been read.
func (p Policy) Complete(t Tally) error {
	if t.Video == 0 {
		return apperr.Validation(apperr.CodeMissingAsset, "Video is required.")
	}
	if t.Background == 0 {
		return apperr.Validation(apperr.CodeMissingAsset, "Background is required.")
	}
	return nil
}

// TooLarge builds the error returned when a part exceeds MaxFileSize.
func (p Policy) TooLarge(filename string) error {
	return apperr.Validation(apperr.CodeFileTooLarge, "File %s exceeds the %s upload limit", filename, humanize.Bytes(uint64(p.MaxFileSize)))
}
