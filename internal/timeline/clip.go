package timeline

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// MinSplitSeconds is the shortest source span either half of a split may have.
const MinSplitSeconds = 0.5

// loopEndGuard keeps a looped source position strictly inside the interval.
const loopEndGuard = 0.01

type StretchMode string

const (
	StretchLoop StretchMode = "loop"
)

// Transform places an overlay clip on the output canvas.
// It is ignored for clips on the primary track.
type Transform struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	ScalePercent float64 `json:"scale_percent"`
	Opacity      float64 `json:"opacity"`
	Centered     bool    `json:"centered"`
}

func DefaultTransform() Transform {
	return Transform{X: 10, Y: 10, ScalePercent: 10, Opacity: 1}
}

// Color is a display tag in HSL, saturation and lightness in percent.
type Color struct {
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
	Lightness  float64 `json:"lightness"`
}

// Hex renders the color as #rrggbb.
func (c Color) Hex() string {
	return colorful.Hsl(c.Hue, c.Saturation/100, c.Lightness/100).Clamped().Hex()
}

type Clip struct {
	ID              string      `json:"id"`
	SourceRef       string      `json:"source_ref"`
	Title           string      `json:"title,omitempty"`
	SourceStart     float64     `json:"source_start"`
	SourceEnd       float64     `json:"source_end"`
	TimelineStart   float64     `json:"timeline_start"`
	DisplayDuration float64     `json:"display_duration"`
	StretchMode     StretchMode `json:"stretch_mode"`
	Transform       *Transform  `json:"transform,omitempty"`
	Color           Color       `json:"color"`
}

func (c Clip) SourceDuration() float64 {
	return c.SourceEnd - c.SourceStart
}

func (c Clip) End() float64 {
	return c.TimelineStart + c.DisplayDuration
}

// Contains reports whether t lies in [TimelineStart, End).
func (c Clip) Contains(t float64) bool {
	return t >= c.TimelineStart && t < c.End()
}

// Looping reports whether the clip repeats its source interval to fill its span.
func (c Clip) Looping() bool {
	return c.DisplayDuration > c.SourceDuration()
}

// SourceTimeAt maps a timeline time inside the clip to a position in the
// source. Compressed and 1:1 clips use a constant ratio; looping clips wrap
// every SourceDuration seconds.
func (c Clip) SourceTimeAt(t float64) float64 {
	offset := t - c.TimelineStart
	sourceDur := c.SourceDuration()

	if !c.Looping() {
		if c.DisplayDuration <= 0 {
			return c.SourceStart
		}
		return c.SourceStart + offset*(sourceDur/c.DisplayDuration)
	}

	pos := c.SourceStart + math.Mod(offset, sourceDur)
	return math.Max(c.SourceStart, math.Min(c.SourceEnd-loopEndGuard, pos))
}

// TransformOrDefault returns the clip's transform, or the overlay default.
func (c Clip) TransformOrDefault() Transform {
	if c.Transform == nil {
		return DefaultTransform()
	}
	return *c.Transform
}

func (c Clip) clone() Clip {
	out := c
	if c.Transform != nil {
		tr := *c.Transform
		out.Transform = &tr
	}
	return out
}
