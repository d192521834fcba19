package compositor

import (
	"fmt"
	"math"

	"verticlipper/internal/apperr"
)

// MaxVideoHeightRatio caps the scaled video at this share of canvas height
// so the background stays visible above and below it.
const MaxVideoHeightRatio = 0.7

// Canvas is the output frame size.
type Canvas struct {
	Width  int
	Height int
}

// Placement is a scaled rectangle positioned on the canvas.
type Placement struct {
	X      int
	Y      int
	Width  int
	Height int
}

func compositionError(format string, args ...interface{}) error {
	return apperr.Processing(apperr.CodeComposition, fmt.Sprintf(format, args...), "", nil)
}

// Fit scales a srcW x srcH video to the canvas width, preserving its aspect
// ratio and capping its height at MaxVideoHeightRatio of the canvas, then
// centres it. Both dimensions are rounded down to even numbers as required
// by yuv420p.
func Fit(srcW, srcH int, canvas Canvas) (Placement, error) {
	if srcW <= 0 || srcH <= 0 {
		return Placement{}, compositionError("Invalid source dimensions %dx%d", srcW, srcH)
	}
	if canvas.Width <= 0 || canvas.Height <= 0 {
		return Placement{}, compositionError("Invalid canvas dimensions %dx%d", canvas.Width, canvas.Height)
	}

	aspect := float64(srcW) / float64(srcH)
	w := canvas.Width
	h := int(math.Round(float64(w) / aspect))

	limit := MaxVideoHeightRatio * float64(canvas.Height)
	if float64(h) > limit {
		h = int(math.Round(limit))
		w = int(math.Round(float64(h) * aspect))
	}

	w = evenFloor(min(w, canvas.Width))
	h = evenFloor(h)
	if w < 2 || h < 2 {
		return Placement{}, compositionError("Video %dx%d is too small for a %dx%d canvas", srcW, srcH, canvas.Width, canvas.Height)
	}

	return Placement{
		X:      int(math.Round(float64(canvas.Width-w) / 2)),
		Y:      int(math.Round(float64(canvas.Height-h) / 2)),
		Width:  w,
		Height: h,
	}, nil
}

func evenFloor(n int) int {
	return n - n%2
}
