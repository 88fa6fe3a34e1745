package capture

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/ayusman/posebooth/internal/body"
)

func TestCropToFit(t *testing.T) {
	tests := []struct {
		name   string
		src    image.Point
		aspect float64
		want   image.Rectangle
	}{
		{
			name:   "landscape to portrait trims width",
			src:    image.Pt(1280, 960),
			aspect: 9.0 / 16.0,
			want:   image.Rect(370, 0, 910, 960),
		},
		{
			name:   "portrait to landscape trims height",
			src:    image.Pt(720, 1280),
			aspect: 16.0 / 9.0,
			want:   image.Rect(0, 437, 720, 842),
		},
		{
			name:   "matching aspect is untouched",
			src:    image.Pt(900, 1600),
			aspect: 9.0 / 16.0,
			want:   image.Rect(0, 0, 900, 1600),
		},
		{
			name:   "empty source",
			src:    image.Point{},
			aspect: 9.0 / 16.0,
			want:   image.Rectangle{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CropToFit(tt.src, tt.aspect)
			if got != tt.want {
				t.Errorf("CropToFit(%v, %f) = %v, want %v", tt.src, tt.aspect, got, tt.want)
			}
		})
	}
}

func TestCropToFit_AspectAndCentering(t *testing.T) {
	sources := []image.Point{
		image.Pt(1280, 960), image.Pt(1920, 1080), image.Pt(641, 479), image.Pt(480, 640),
	}
	const aspect = 9.0 / 16.0

	for _, src := range sources {
		r := CropToFit(src, aspect)
		ratio := float64(r.Dx()) / float64(r.Dy())
		// One pixel of rounding on the trimmed side.
		if tol := 1.0 / float64(r.Dy()); math.Abs(ratio-aspect) > tol {
			t.Errorf("%v: ratio = %f, want %f", src, ratio, aspect)
		}
		left, right := r.Min.X, src.X-r.Max.X
		top, bottom := r.Min.Y, src.Y-r.Max.Y
		if abs(left-right) > 1 || abs(top-bottom) > 1 {
			t.Errorf("%v: crop %v is not centred", src, r)
		}
		if !r.In(image.Rectangle{Max: src}) {
			t.Errorf("%v: crop %v exceeds source", src, r)
		}
	}
}

func TestBodyCrop(t *testing.T) {
	canvas := image.Pt(640, 480)
	video := image.Pt(1280, 960)

	t.Run("scales and pads", func(t *testing.T) {
		got, err := BodyCrop(body.Rect{X: 100, Y: 50, Width: 200, Height: 300}, canvas, video, 10)
		if err != nil {
			t.Fatalf("BodyCrop() error = %v", err)
		}
		want := image.Rect(190, 90, 610, 710)
		if got != want {
			t.Errorf("BodyCrop() = %v, want %v", got, want)
		}
	})

	t.Run("clamps to video bounds", func(t *testing.T) {
		got, err := BodyCrop(body.Rect{X: 0, Y: 0, Width: 640, Height: 480}, canvas, video, 40)
		if err != nil {
			t.Fatalf("BodyCrop() error = %v", err)
		}
		if want := image.Rect(0, 0, 1280, 960); got != want {
			t.Errorf("BodyCrop() = %v, want %v", got, want)
		}
	})

	t.Run("outside frame", func(t *testing.T) {
		_, err := BodyCrop(body.Rect{X: 2000, Y: 2000, Width: 10, Height: 10}, canvas, video, 0)
		if !errors.Is(err, ErrEmptyCrop) {
			t.Errorf("BodyCrop() error = %v, want ErrEmptyCrop", err)
		}
	})

	t.Run("zero canvas", func(t *testing.T) {
		_, err := BodyCrop(body.Rect{Width: 10, Height: 10}, image.Point{}, video, 0)
		if !errors.Is(err, ErrEmptyCrop) {
			t.Errorf("BodyCrop() error = %v, want ErrEmptyCrop", err)
		}
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
