package compositor

import (
	"fmt"
	"strconv"
	"strings"
)

// Stream labels used by the graph.
const (
	LabelBackground = "bg"
	LabelVideo      = "video"
	LabelBase       = "v1"
	LabelFinal      = "final"
	LabelAudio      = "aout"
)

// Input indexes in the transcoder command line.
const (
	InputBackground = 0
	InputVideo      = 1
	InputFirstOver  = 2
)

// Filter is one ffmpeg filter with its positional or key=value options.
type Filter struct {
	Name string
	Args []string
}

func (f Filter) String() string {
	if len(f.Args) == 0 {
		return f.Name
	}
	return f.Name + "=" + strings.Join(f.Args, ":")
}

// Stage is one filter chain: labelled inputs, filters applied in order and
// a labelled output.
type Stage struct {
	Inputs  []string
	Filters []Filter
	Output  string
}

func (s Stage) String() string {
	var b strings.Builder
	for _, in := range s.Inputs {
		b.WriteString("[" + in + "]")
	}
	for i, f := range s.Filters {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.String())
	}
	b.WriteString("[" + s.Output + "]")
	return b.String()
}

// Clip is the trimmed range of the source video, in seconds.
type Clip struct {
	Start float64
	End   float64
}

// Duration returns End - Start.
func (c Clip) Duration() float64 {
	return c.End - c.Start
}

// Overlay places one image above the video. Opacity is 0-100.
type Overlay struct {
	X       int
	Y       int
	Width   int
	Height  int
	Opacity float64
}

// Plan is everything Build needs.
type Plan struct {
	Canvas   Canvas
	Video    Placement
	Clip     Clip
	Overlays []Overlay
	// WithAudio maps a trimmed copy of the source audio.
	WithAudio bool
}

// Graph is the ordered filter graph plus the labels to map.
type Graph struct {
	Stages   []Stage
	VideoOut string
	AudioOut string
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func scale(w, h int) Filter {
	return Filter{Name: "scale", Args: []string{strconv.Itoa(w), strconv.Itoa(h)}}
}

func overlayAt(x, y int) Filter {
	return Filter{Name: "overlay", Args: []string{strconv.Itoa(x), strconv.Itoa(y)}}
}

func inputLabel(index int, kind string) string {
	return fmt.Sprintf("%d:%s", index, kind)
}

// Build produces the filter graph for plan.
func Build(plan Plan) Graph {
	stages := []Stage{
		{
			Inputs:  []string{inputLabel(InputBackground, "v")},
			Filters: []Filter{scale(plan.Canvas.Width, plan.Canvas.Height)},
			Output:  LabelBackground,
		},
		{
			Inputs: []string{inputLabel(InputVideo, "v")},
			Filters: []Filter{
				{Name: "trim", Args: []string{"start=" + num(plan.Clip.Start), "end=" + num(plan.Clip.End)}},
				{Name: "setpts", Args: []string{"PTS-STARTPTS"}},
				scale(plan.Video.Width, plan.Video.Height),
			},
			Output: LabelVideo,
		},
		{
			Inputs:  []string{LabelBackground, LabelVideo},
			Filters: []Filter{overlayAt(plan.Video.X, plan.Video.Y)},
			Output:  LabelBase,
		},
	}

	current := LabelBase
	for i, ov := range plan.Overlays {
		var out string
		stages, out = appendOverlay(stages, current, i, ov, i == len(plan.Overlays)-1)
		current = out
	}

	if len(plan.Overlays) == 0 {
		stages[len(stages)-1].Output = LabelFinal
	}

	g := Graph{Stages: stages, VideoOut: LabelFinal}

	if plan.WithAudio {
		g.Stages = append(g.Stages, Stage{
			Inputs: []string{inputLabel(InputVideo, "a")},
			Filters: []Filter{
				{Name: "atrim", Args: []string{"start=" + num(plan.Clip.Start), "end=" + num(plan.Clip.End)}},
				{Name: "asetpts", Args: []string{"PTS-STARTPTS"}},
			},
			Output: LabelAudio,
		})
		g.AudioOut = LabelAudio
	}

	return g
}

// appendOverlay adds the scale, optional alpha and composite stages for the
// i-th overlay on top of prev and returns the new composite label.
func appendOverlay(stages []Stage, prev string, i int, ov Overlay, last bool) ([]Stage, string) {
	label := fmt.Sprintf("overlay%d", i+1)
	stages = append(stages, Stage{
		Inputs:  []string{inputLabel(InputFirstOver+i, "v")},
		Filters: []Filter{scale(ov.Width, ov.Height)},
		Output:  label,
	})

	if ov.Opacity < 100 {
		alpha := label + "_alpha"
		stages = append(stages, Stage{
			Inputs: []string{label},
			Filters: []Filter{
				{Name: "format", Args: []string{"rgba"}},
				{Name: "colorchannelmixer", Args: []string{"aa=" + num(ov.Opacity/100)}},
			},
			Output: alpha,
		})
		label = alpha
	}

	out := fmt.Sprintf("v%d", i+2)
	if last {
		out = LabelFinal
	}
	stages = append(stages, Stage{
		Inputs:  []string{prev, label},
		Filters: []Filter{overlayAt(ov.X, ov.Y)},
		Output:  out,
	})
	return stages, out
}

// FilterComplex serializes the graph for -filter_complex.
func (g Graph) FilterComplex() string {
	parts := make([]string, len(g.Stages))
	for i, s := range g.Stages {
		parts[i] = s.String()
	}
	return strings.Join(parts, ";")
}
