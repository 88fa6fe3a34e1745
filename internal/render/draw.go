package render

import (
	"fmt"
	"image"
	"image/color"
	"strconv"

	"gocv.io/x/gocv"

	"github.com/ayusman/posebooth/internal/detector"
	"github.com/ayusman/posebooth/internal/kiosk"
)

var (
	colorBone   = color.RGBA{R: 0, G: 220, B: 255, A: 255}
	colorJoint  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorHand   = color.RGBA{R: 255, G: 170, B: 0, A: 255}
	colorBox    = color.RGBA{R: 0, G: 255, B: 120, A: 255}
	colorBanner = color.RGBA{R: 0, G: 160, B: 80, A: 255}
	colorText   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorShade  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	colorFlash  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// layer paints one overlay. Each layer decides from the snapshot alone
// whether it has anything to draw.
type layer func(dst *gocv.Mat, snap kiosk.Snapshot)

var layers = []layer{
	drawSkeleton,
	drawHands,
	drawBodyBox,
	drawGestureBanner,
	drawCountdown,
	drawFlash,
	drawStatus,
}

// Draw paints every overlay for snap onto dst, which already holds the base
// image at canvas size.
func Draw(dst *gocv.Mat, snap kiosk.Snapshot) {
	for _, l := range layers {
		l(dst, snap)
	}
}

// Compose builds one canvas-sized frame: the frozen frame while a photo is
// being taken, otherwise the live video, with overlays on top. The caller
// closes the result.
func Compose(video gocv.Mat, frozen gocv.Mat, canvas image.Point, snap kiosk.Snapshot) gocv.Mat {
	out := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), canvas.Y, canvas.X, gocv.MatTypeCV8UC3)

	switch {
	case showFrozen(snap) && !frozen.Empty():
		fitInto(frozen, &out)
	case !video.Empty():
		fitInto(video, &out)
	}

	Draw(&out, snap)
	return out
}

func showFrozen(snap kiosk.Snapshot) bool {
	if !snap.Frozen {
		return false
	}
	switch snap.State {
	case kiosk.StateCapturing, kiosk.StateCapture, kiosk.StateCompleted:
		return true
	}
	return false
}

// fitInto scales src to dst's height (or width, if that is the tighter
// side) and centres it.
func fitInto(src gocv.Mat, dst *gocv.Mat) {
	if src.Cols() == dst.Cols() && src.Rows() == dst.Rows() {
		src.CopyTo(dst)
		return
	}
	sx := float64(dst.Cols()) / float64(src.Cols())
	sy := float64(dst.Rows()) / float64(src.Rows())
	scale := min(sx, sy)
	size := image.Pt(max(1, int(float64(src.Cols())*scale)), max(1, int(float64(src.Rows())*scale)))

	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.Resize(src, &scaled, size, 0, 0, gocv.InterpolationLinear)

	off := image.Pt((dst.Cols()-size.X)/2, (dst.Rows()-size.Y)/2)
	roi := dst.Region(image.Rectangle{Min: off, Max: off.Add(size)})
	defer roi.Close()
	scaled.CopyTo(&roi)
}

func canvasPoint(dst *gocv.Mat, x, y float64) image.Point {
	return image.Pt(int(x*float64(dst.Cols())), int(y*float64(dst.Rows())))
}

func trackingBody(s kiosk.State) bool {
	return s.ConfirmingBody() || s.ConfirmingGesture()
}

func drawSkeleton(dst *gocv.Mat, snap kiosk.Snapshot) {
	if snap.Pose == nil || !trackingBody(snap.State) {
		return
	}
	pts := snap.Pose.Points
	visible := func(i int) bool { return i < len(pts) && pts[i].Visibility > 0.5 }

	for _, bone := range detector.Skeleton {
		a, b := bone[0], bone[1]
		if !visible(a) || !visible(b) {
			continue
		}
		gocv.Line(dst, canvasPoint(dst, pts[a].X, pts[a].Y), canvasPoint(dst, pts[b].X, pts[b].Y), colorBone, 3)
	}
	for i := range pts {
		if visible(i) {
			gocv.Circle(dst, canvasPoint(dst, pts[i].X, pts[i].Y), 4, colorJoint, -1)
		}
	}
}

func drawHands(dst *gocv.Mat, snap kiosk.Snapshot) {
	if snap.Hands == nil {
		return
	}
	for _, hand := range snap.Hands.Hands {
		for _, bone := range detector.HandBones {
			a, b := hand.Points[bone[0]], hand.Points[bone[1]]
			gocv.Line(dst, canvasPoint(dst, a.X, a.Y), canvasPoint(dst, b.X, b.Y), colorHand, 2)
		}
		for _, p := range hand.Points {
			gocv.Circle(dst, canvasPoint(dst, p.X, p.Y), 3, colorJoint, -1)
		}
	}
}

func drawBodyBox(dst *gocv.Mat, snap kiosk.Snapshot) {
	if snap.BodyRect == nil {
		return
	}
	if !trackingBody(snap.State) && snap.State != kiosk.StateCountdown {
		return
	}
	gocv.Rectangle(dst, snap.BodyRect.Image(), colorBox, 2)
}

func drawGestureBanner(dst *gocv.Mat, snap kiosk.Snapshot) {
	if snap.Hands == nil || !snap.Hands.Result.IsOK {
		return
	}
	text := fmt.Sprintf("OK %d%%", int(snap.Hands.Result.Confidence))
	banner := image.Rect(0, 0, dst.Cols(), 56)
	gocv.Rectangle(dst, banner, colorBanner, -1)
	putCentered(dst, text, banner, 1.2, 2)

	if snap.Hold > 0 {
		w := int(float64(dst.Cols()) * snap.Hold)
		gocv.Rectangle(dst, image.Rect(0, 52, w, 56), colorText, -1)
	}
}

func drawCountdown(dst *gocv.Mat, snap kiosk.Snapshot) {
	if snap.State != kiosk.StateCountdown || snap.Countdown <= 0 {
		return
	}
	putCentered(dst, strconv.Itoa(snap.Countdown), image.Rect(0, 0, dst.Cols(), dst.Rows()), 8, 16)
}

func drawFlash(dst *gocv.Mat, snap kiosk.Snapshot) {
	if snap.State != kiosk.StateCapturing {
		return
	}
	gocv.Rectangle(dst, image.Rect(0, 0, dst.Cols(), dst.Rows()), colorFlash, 24)
}

func drawStatus(dst *gocv.Mat, snap kiosk.Snapshot) {
	if snap.Status == "" {
		return
	}
	bar := image.Rect(0, dst.Rows()-48, dst.Cols(), dst.Rows())
	gocv.Rectangle(dst, bar, colorShade, -1)
	putCentered(dst, snap.Status, bar, 0.9, 2)
}

func putCentered(dst *gocv.Mat, text string, box image.Rectangle, scale float64, thickness int) {
	size := gocv.GetTextSize(text, gocv.FontHersheySimplex, scale, thickness)
	org := image.Pt(
		box.Min.X+(box.Dx()-size.X)/2,
		box.Min.Y+(box.Dy()+size.Y)/2,
	)
	gocv.PutText(dst, text, org, gocv.FontHersheySimplex, scale, colorText, thickness)
}
