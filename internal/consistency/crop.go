package consistency

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
)

// Diversity controls how far a seeded crop window may drift from the centre.
type Diversity string

const (
	DiversityLow    Diversity = "low"
	DiversityMedium Diversity = "medium"
	DiversityHigh   Diversity = "high"
)

// ErrInvalidDiversity is returned by ParseDiversity for unknown levels.
var ErrInvalidDiversity = errors.New("invalid diversity level (want low, medium or high)")

var diversityScale = map[Diversity]float64{
	DiversityLow:    0.25,
	DiversityMedium: 0.60,
	DiversityHigh:   1.0,
}

// ParseDiversity converts user input into a Diversity level.
func ParseDiversity(s string) (Diversity, error) {
	d := Diversity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := diversityScale[d]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidDiversity, s)
	}
	return d, nil
}

// Scale is the fraction of the slack a seeded window may use.
// Unknown levels behave like medium.
func (d Diversity) Scale() float64 {
	if s, ok := diversityScale[d]; ok {
		return s
	}
	return diversityScale[DiversityMedium]
}

// CropWindow is a rectangle within a source image plus the size it is
// resized to afterwards.
type CropWindow struct {
	Left, Top     int
	Width, Height int

	TargetWidth, TargetHeight int
}

// Rect returns the window as an image.Rectangle anchored at origin.
func (c CropWindow) Rect(origin image.Point) image.Rectangle {
	return image.Rect(c.Left, c.Top, c.Left+c.Width, c.Top+c.Height).Add(origin)
}

func (c CropWindow) String() string {
	return fmt.Sprintf("%dx%d+%d+%d -> %dx%d", c.Width, c.Height, c.Left, c.Top, c.TargetWidth, c.TargetHeight)
}

// ComputeCrop returns the crop window matching the target aspect ratio.
// The window keeps the full extent of the non-cropped axis and slides along
// the cropped one. Without a seed, or when there is no slack, the window is
// centred. With a seed the offset is taken from the central part of the slack
// whose width is set by the diversity level.
func ComputeCrop(srcW, srcH, targetW, targetH int, seed *int64, d Diversity) CropWindow {
	cw := CropWindow{Width: srcW, Height: srcH, TargetWidth: targetW, TargetHeight: targetH}
	if srcW <= 0 || srcH <= 0 || targetW <= 0 || targetH <= 0 {
		return cw
	}

	targetRatio := float64(targetW) / float64(targetH)
	srcRatio := float64(srcW) / float64(srcH)

	switch {
	case srcRatio > targetRatio:
		// Wider than target: narrow the width, keep full height.
		cw.Width = int(float64(srcH) * targetRatio)
		cw.Left = slideOffset(srcW-cw.Width, seed, d)
	case srcRatio < targetRatio:
		// Taller than target: narrow the height, keep full width.
		cw.Height = int(float64(srcW) / targetRatio)
		cw.Top = slideOffset(srcH-cw.Height, seed, d)
	}
	return cw
}

// slideOffset places the window within slack pixels of play.
func slideOffset(slack int, seed *int64, d Diversity) int {
	if seed == nil || slack <= 0 {
		return slack / 2
	}
	usable := int(math.Floor(float64(slack) * d.Scale()))
	margin := (slack - usable) / 2
	return margin + int(floorMod(*seed, int64(usable)+1))
}

// floorMod is a modulus that stays non-negative for negative seeds.
func floorMod(a, m int64) int64 {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}
