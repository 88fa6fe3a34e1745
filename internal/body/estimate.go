// Package body turns body landmarks into the rectangle used for overlays and cropping.
package body

import (
	"image"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ayusman/posebooth/internal/detector"
)

const (
	// MinVisibility is the visibility a landmark needs to count as evidence.
	MinVisibility = 0.5
	// MinVisibleLandmarks is the fewest visible landmarks that make a body.
	MinVisibleLandmarks = 5
	// Padding is the fraction of the extent added on every side.
	Padding = 0.1
)

// Rect is a body bounding box in working-canvas pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Image returns the rectangle rounded to integer pixels.
func (r Rect) Image() image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)), int(math.Round(r.Y)),
		int(math.Round(r.X+r.Width)), int(math.Round(r.Y+r.Height)),
	)
}

// Estimate returns the padded extent of the visible landmarks scaled to a
// width x height canvas, or nil when there is too little evidence of a body.
// Pose topology is ignored; only the 2D extent matters.
func Estimate(pose *detector.PoseLandmarks, width, height int) *Rect {
	if pose == nil || width <= 0 || height <= 0 {
		return nil
	}

	xs := make([]float64, 0, len(pose.Points))
	ys := make([]float64, 0, len(pose.Points))
	for _, p := range pose.Points {
		if p.Visibility > MinVisibility {
			xs = append(xs, p.X)
			ys = append(ys, p.Y)
		}
	}
	if len(xs) < MinVisibleLandmarks {
		return nil
	}

	minX, maxX := floats.Min(xs), floats.Max(xs)
	minY, maxY := floats.Min(ys), floats.Max(ys)
	padX := (maxX - minX) * Padding
	padY := (maxY - minY) * Padding

	x0 := clamp01(minX - padX)
	y0 := clamp01(minY - padY)
	x1 := clamp01(maxX + padX)
	y1 := clamp01(maxY + padY)

	w, h := float64(width), float64(height)
	return &Rect{
		X:      x0 * w,
		Y:      y0 * h,
		Width:  (x1 - x0) * w,
		Height: (y1 - y0) * h,
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
