package probe

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"verticlipper/internal/apperr"
	"verticlipper/internal/logging"
	"verticlipper/internal/metrics"
)

// DefaultFPS is reported when the stream frame rate cannot be parsed.
const DefaultFPS = 30

// VideoMetadata describes the first video stream of a file.
type VideoMetadata struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Bitrate  int64   `json:"bitrate"`
	Codec    string  `json:"codec"`
	HasAudio bool    `json:"hasAudio"`
}

// IsLandscape reports whether the frame is wider than it is tall.
func (m *VideoMetadata) IsLandscape() bool {
	return m.Width > m.Height
}

// ffprobeOutput mirrors the subset of ffprobe's JSON we read.
type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

var errNoVideoStream = errors.New("no video stream found")

var supportedCodecs = map[string]bool{
	"h264": true,
	"h265": true,
	"hevc": true,
	"vp8":  true,
	"vp9":  true,
	"av1":  true,
}

// IsSupportedCodec reports whether codec is one browsers and the
// compositor are known to handle well.
func IsSupportedCodec(codec string) bool {
	return supportedCodecs[strings.ToLower(codec)]
}

// Prober runs ffprobe.
type Prober struct {
	binary string
	runner Runner
}

// New creates a Prober. An empty binary means "ffprobe" from PATH; a nil
// runner means ExecRunner.
func New(binary string, runner Runner) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Prober{binary: binary, runner: runner}
}

// Probe returns metadata for the video at path. Failures are reported as
// apperr.CodeProbe processing errors carrying ffprobe's stderr.
func (p *Prober) Probe(ctx context.Context, path string) (*VideoMetadata, error) {
	start := time.Now()
	defer func() {
		metrics.ProbeDuration.WithLabelValues("video").Observe(time.Since(start).Seconds())
	}()

	stdout, stderr, err := p.runner.Run(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		metrics.ProbeErrors.WithLabelValues("video").Inc()
		logging.Debug("ffprobe failed for %s: %v", path, err)
		return nil, apperr.Processing(apperr.CodeProbe, "Failed to read video metadata", string(stderr), err)
	}

	meta, err := parse(stdout)
	if err != nil {
		metrics.ProbeErrors.WithLabelValues("video").Inc()
		return nil, apperr.Processing(apperr.CodeProbe, "Failed to read video metadata", string(stderr), err)
	}

	logging.Debug("Probed %s: %dx%d %.2fs %.2ffps %s", path, meta.Width, meta.Height, meta.Duration, meta.FPS, meta.Codec)
	return meta, nil
}

func parse(data []byte) (*VideoMetadata, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	meta := &VideoMetadata{}
	found := false
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if found {
				continue
			}
			found = true
			meta.Width = s.Width
			meta.Height = s.Height
			meta.FPS = parseFrameRate(s.RFrameRate)
			meta.Codec = s.CodecName
		case "audio":
			meta.HasAudio = true
		}
	}
	if !found {
		return nil, errNoVideoStream
	}

	if meta.Codec == "" {
		meta.Codec = "unknown"
	}
	meta.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	meta.Bitrate, _ = strconv.ParseInt(out.Format.BitRate, 10, 64)

	return meta, nil
}

// parseFrameRate parses "num/den"; anything unparseable or den=0 yields DefaultFPS.
func parseFrameRate(rate string) float64 {
	num, den, ok := strings.Cut(rate, "/")
	if !ok {
		return DefaultFPS
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return DefaultFPS
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return DefaultFPS
	}
	return n / d
}
