package transcoder

import (
	"context"
	"path/filepath"
	"strings"
)

// PreviewPrefix is prepended to the source name to form the preview name.
const PreviewPrefix = "downres-"

// PreviewArgs returns the ffmpeg arguments for a 320p H.264 copy of input.
func PreviewArgs(input, output string) []string {
	return []string{
		"-y",
		"-i", input,
		"-vf", "scale=-2:320",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-movflags", "+faststart",
		output,
	}
}

// PreviewPath returns where the preview of input is written. Previews are
// always MP4: H.264 cannot be muxed into WebM.
func PreviewPath(input string) string {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + ".mp4"
	return filepath.Join(filepath.Dir(input), PreviewPrefix+name)
}

// Downscale writes a 320p preview of input next to it and returns its path.
func (t *Transcoder) Downscale(ctx context.Context, input string) (string, error) {
	return t.Transcode(ctx, Job{
		Kind:   JobPreview,
		Output: PreviewPath(input),
		Args: func(output string) []string {
			return PreviewArgs(input, output)
		},
	})
}
