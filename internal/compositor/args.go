package compositor

import (
	"math"
)

// MaxFPS caps the output frame rate.
const MaxFPS = 30

// Inputs are the files fed to the transcoder, in graph order.
type Inputs struct {
	Background string
	Video      string
	Overlays   []string
}

// OutputFPS returns min(sourceFPS, MaxFPS), or MaxFPS when sourceFPS is unknown.
func OutputFPS(sourceFPS float64) float64 {
	if sourceFPS <= 0 || math.IsNaN(sourceFPS) || math.IsInf(sourceFPS, 0) {
		return MaxFPS
	}
	return math.Min(sourceFPS, MaxFPS)
}

// Args returns the complete ffmpeg argument list rendering g to output.
func Args(in Inputs, g Graph, sourceFPS float64, output string) []string {
	args := []string{"-y", "-i", in.Background, "-i", in.Video}
	for _, ov := range in.Overlays {
		args = append(args, "-i", ov)
	}

	args = append(args, "-filter_complex", g.FilterComplex(), "-map", "["+g.VideoOut+"]")
	if g.AudioOut != "" {
		args = append(args, "-map", "["+g.AudioOut+"]")
	}

	args = append(args,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-profile:v", "high",
		"-level", "4.0",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-r", num(OutputFPS(sourceFPS)),
		"-c:a", "aac",
		output,
	)
	return args
}
