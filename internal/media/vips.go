package media

import (
	"fmt"
	"sync"

	"verticlipper/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

// libvips can be started once per process.
var vipsState struct {
	sync.Mutex
	running bool
}

// vipsSeverity orders vips levels from chatty (0) to fatal (3).
func vipsSeverity(l vips.LogLevel) int {
	switch l {
	case vips.LogLevelError, vips.LogLevelCritical:
		return 3
	case vips.LogLevelWarning:
		return 2
	case vips.LogLevelMessage, vips.LogLevelInfo:
		return 1
	default:
		return 0
	}
}

// vipsLogSettings picks the vips verbosity for our log level and returns a
// handler that forwards vips messages at or above it into the application log.
func vipsLogSettings(level logging.LogLevel) (vips.LogLevel, func(string, vips.LogLevel, string)) {
	threshold := map[logging.LogLevel]vips.LogLevel{
		logging.LevelDebug: vips.LogLevelInfo,
		logging.LevelInfo:  vips.LogLevelWarning,
		logging.LevelWarn:  vips.LogLevelError,
		logging.LevelError: vips.LogLevelCritical,
	}[level]
	if threshold == 0 {
		threshold = vips.LogLevelWarning
	}
	minSeverity := vipsSeverity(threshold)

	log := logging.With("vips")
	return threshold, func(domain string, l vips.LogLevel, msg string) {
		severity := vipsSeverity(l)
		if severity < minSeverity {
			return
		}
		switch severity {
		case 3:
			log.Error("[%s] %s", domain, msg)
		case 2:
			log.Warn("[%s] %s", domain, msg)
		default:
			log.Debug("[%s] %s", domain, msg)
		}
	}
}

// InitVips starts libvips for header-only image inspection. It is safe to
// call more than once.
func InitVips() error {
	vipsState.Lock()
	defer vipsState.Unlock()
	if vipsState.running {
		return nil
	}

	level, handler := vipsLogSettings(logging.GetLevel())
	vips.LoggingSettings(handler, level)

	// Only headers are read, so one worker and a small cache suffice.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      16 * 1024 * 1024,
		MaxCacheSize:     50,
	})

	vipsState.running = true
	logging.Info("libvips %s started for image inspection", vips.Version)
	return nil
}

// ShutdownVips stops libvips if it was started.
func ShutdownVips() {
	vipsState.Lock()
	defer vipsState.Unlock()
	if !vipsState.running {
		return
	}
	vips.Shutdown()
	vipsState.running = false
	logging.Info("libvips stopped")
}

// IsVipsAvailable reports whether InspectImage will use libvips.
func IsVipsAvailable() bool {
	vipsState.Lock()
	defer vipsState.Unlock()
	return vipsState.running
}

// inspectWithVips reads dimensions after EXIF auto-rotation, which is how
// ffmpeg will see the image.
func inspectWithVips(path string) (*ImageMetadata, error) {
	params := vips.NewImportParams()
	params.AutoRotate.Set(true)

	ref, err := vips.LoadImageFromFile(path, params)
	if err != nil {
		return nil, fmt.Errorf("vips load %s: %w", path, err)
	}
	defer ref.Close()

	format, ok := vips.ImageTypes[ref.Format()]
	if !ok {
		format = "unknown"
	}
	return &ImageMetadata{Width: ref.Width(), Height: ref.Height(), Format: format}, nil
}
