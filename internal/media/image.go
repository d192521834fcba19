package media

import (
	"fmt"
	"image"
	"os"
	"time"

	// Image format decoders
	_ "image/jpeg"
	_ "image/png"

	"verticlipper/internal/apperr"
	"verticlipper/internal/filesystem"
	"verticlipper/internal/logging"
	"verticlipper/internal/metrics"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/tiff" // TIFF format support
	_ "golang.org/x/image/webp" // WebP format support
)

// ImageMetadata describes an uploaded still image.
type ImageMetadata struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Size   int64  `json:"size"`
}

// IsPortrait reports whether the image is taller than it is wide.
func (m *ImageMetadata) IsPortrait() bool {
	return m.Height > m.Width
}

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// exifFormats may carry an EXIF orientation tag that swaps the stored axes.
var exifFormats = map[string]bool{
	"jpeg": true,
	"tiff": true,
}

// InspectImage returns display dimensions, format and size of the image at
// path. libvips is used when initialized; otherwise the header is decoded
// with the standard image decoders.
func InspectImage(path string) (*ImageMetadata, error) {
	start := time.Now()
	defer func() {
		metrics.ProbeDuration.WithLabelValues("image").Observe(time.Since(start).Seconds())
	}()

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		metrics.ProbeErrors.WithLabelValues("image").Inc()
		return nil, apperr.Processing(apperr.CodeProbe, "Failed to read image metadata", "", err)
	}

	var meta *ImageMetadata
	if IsVipsAvailable() {
		meta, err = inspectWithVips(path)
		if err != nil {
			logging.Debug("vips could not inspect %s, falling back: %v", path, err)
		}
	}
	if meta == nil {
		meta, err = inspectWithDecoder(path)
	}
	if err != nil {
		metrics.ProbeErrors.WithLabelValues("image").Inc()
		return nil, apperr.Processing(apperr.CodeProbe, "Failed to read image metadata", err.Error(), err)
	}

	meta.Size = info.Size()
	logging.Debug("Inspected %s: %dx%d %s", path, meta.Width, meta.Height, meta.Format)
	return meta, nil
}

func inspectWithDecoder(path string) (*ImageMetadata, error) {
	dims, format, err := GetImageDimensions(path)
	if err != nil {
		return nil, err
	}

	if exifFormats[format] {
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("failed to open image: %w", err)
		}
		dims.Width, dims.Height = img.Bounds().Dx(), img.Bounds().Dy()
	}

	return &ImageMetadata{Width: dims.Width, Height: dims.Height, Format: format}, nil
}

// GetImageDimensions returns stored image dimensions and the decoder
// format name without fully decoding the image.
func GetImageDimensions(path string) (*ImageDimensions, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, format, err := image.DecodeConfig(file)
	if err != nil {
		return nil, "", err
	}

	return &ImageDimensions{
		Width:  config.Width,
		Height: config.Height,
	}, format, nil
}
