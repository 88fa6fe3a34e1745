package capture

import (
	"errors"
	"image"
	"math"

	"github.com/ayusman/posebooth/internal/body"
)

// ErrEmptyCrop is returned when a crop rectangle has no area inside the frame.
var ErrEmptyCrop = errors.New("crop rectangle is empty")

// CropToFit returns the largest rectangle of the given aspect (width/height)
// centred in a frame of size src. The longer dimension is trimmed.
func CropToFit(src image.Point, aspect float64) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 || aspect <= 0 {
		return image.Rectangle{}
	}
	full := image.Rectangle{Max: src}
	if float64(src.X)/float64(src.Y) > aspect {
		w := min(src.X, int(math.Round(float64(src.Y)*aspect)))
		x := (src.X - w) / 2
		return image.Rect(x, 0, x+w, src.Y).Intersect(full)
	}
	h := min(src.Y, int(math.Round(float64(src.X)/aspect)))
	y := (src.Y - h) / 2
	return image.Rect(0, y, src.X, y+h).Intersect(full)
}

// BodyCrop maps rect from working-canvas pixels into a video frame of size
// video, grows it by padding pixels on every side and clamps it to the frame.
func BodyCrop(rect body.Rect, canvas, video image.Point, padding int) (image.Rectangle, error) {
	if canvas.X <= 0 || canvas.Y <= 0 {
		return image.Rectangle{}, ErrEmptyCrop
	}
	sx := float64(video.X) / float64(canvas.X)
	sy := float64(video.Y) / float64(canvas.Y)

	r := image.Rect(
		int(math.Floor(rect.X*sx))-padding,
		int(math.Floor(rect.Y*sy))-padding,
		int(math.Ceil((rect.X+rect.Width)*sx))+padding,
		int(math.Ceil((rect.Y+rect.Height)*sy))+padding,
	).Intersect(image.Rectangle{Max: video})
	if r.Empty() {
		return image.Rectangle{}, ErrEmptyCrop
	}
	return r, nil
}
