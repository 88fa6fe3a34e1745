package gesture

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/posebooth/internal/detector"
)

// syntheticHand builds an upright hand with its wrist at (cx, cy) and a hand
// size of s. Thumb and index tips are placed gap apart; extended[i] controls
// whether middle, ring and pinky point up or curl onto the palm.
func syntheticHand(cx, cy, s, gap float64, extended [3]bool) detector.HandLandmarks {
	var h detector.HandLandmarks
	pt := func(dx, dy float64) detector.Point3D {
		return detector.Point3D{X: cx + dx*s, Y: cy + dy*s}
	}

	h.Points[detector.Wrist] = pt(0, 0)
	h.Points[detector.ThumbCMC] = pt(0.3, -0.2)
	h.Points[detector.ThumbMCP] = pt(0.5, -0.4)
	h.Points[detector.ThumbIP] = pt(0.55, -0.7)

	h.Points[detector.IndexMCP] = pt(0.3, -1)
	h.Points[detector.IndexPIP] = pt(0.4, -1.4)
	h.Points[detector.IndexDIP] = pt(0.45, -1.3)
	h.Points[detector.IndexTip] = pt(0.45, -1.1)
	h.Points[detector.ThumbTip] = detector.Point3D{X: h.Points[detector.IndexTip].X + gap, Y: h.Points[detector.IndexTip].Y}

	fingers := []struct {
		mcp, pip, dip, tip int
		dx                 float64
	}{
		{detector.MiddleMCP, detector.MiddlePIP, detector.MiddleDIP, detector.MiddleTip, 0},
		{detector.RingMCP, detector.RingPIP, detector.RingDIP, detector.RingTip, -0.25},
		{detector.PinkyMCP, detector.PinkyPIP, detector.PinkyDIP, detector.PinkyTip, -0.5},
	}
	for i, f := range fingers {
		h.Points[f.mcp] = pt(f.dx, -1)
		if extended[i] {
			h.Points[f.pip] = pt(f.dx, -1.4)
			h.Points[f.dip] = pt(f.dx, -1.7)
			h.Points[f.tip] = pt(f.dx, -2)
		} else {
			h.Points[f.pip] = pt(f.dx, -1.2)
			h.Points[f.dip] = pt(f.dx, -1.0)
			h.Points[f.tip] = pt(f.dx, -0.8)
		}
	}
	return h
}

func TestRecognize_CoincidentTipsWithExtendedFingersIsOK(t *testing.T) {
	th := DefaultThresholds()
	for _, s := range []float64{0.05, 0.1, 0.2, 0.3} {
		for _, c := range [][2]float64{{0.3, 0.7}, {0.5, 0.9}, {0.7, 0.95}} {
			t.Run(fmt.Sprintf("size=%.2f at %.1f,%.2f", s, c[0], c[1]), func(t *testing.T) {
				hand := syntheticHand(c[0], c[1], s, 0, [3]bool{true, true, true})
				r := Recognize(&hand, th)
				assert.True(t, r.IsOK, "confidence %.1f", r.Confidence)
				assert.LessOrEqual(t, r.Confidence, 100.0)
			})
		}
	}
}

func TestRecognize_WideGapIsNeverOK(t *testing.T) {
	th := DefaultThresholds()
	for _, s := range []float64{0.05, 0.15, 0.3} {
		threshold := s * th.CircleRatio
		if threshold < th.CircleFloor {
			threshold = th.CircleFloor
		}
		for mask := 0; mask < 8; mask++ {
			ext := [3]bool{mask&1 != 0, mask&2 != 0, mask&4 != 0}
			hand := syntheticHand(0.5, 0.9, s, 4*threshold, ext)
			r := Recognize(&hand, th)
			assert.False(t, r.IsOK, "size=%.2f fingers=%v confidence=%.1f", s, ext, r.Confidence)
		}
	}
}

func TestRecognize_NeedsTwoExtendedFingers(t *testing.T) {
	th := DefaultThresholds()
	th.Confidence = 0

	one := syntheticHand(0.5, 0.9, 0.15, 0, [3]bool{true, false, false})
	assert.False(t, Recognize(&one, th).IsOK)

	two := syntheticHand(0.5, 0.9, 0.15, 0, [3]bool{false, true, true})
	assert.True(t, Recognize(&two, th).IsOK)
}

func TestRecognize_ConfidenceThreshold(t *testing.T) {
	hand := syntheticHand(0.5, 0.9, 0.15, 0, [3]bool{true, true, false})
	th := DefaultThresholds()

	r := Recognize(&hand, th)
	require.True(t, r.IsOK)

	th.Confidence = r.Confidence + 1
	assert.False(t, Recognize(&hand, th).IsOK)
}

func TestRecognize_Fixtures(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name string
		hand detector.HandLandmarks
		want bool
	}{
		{"ok sign", detector.OKGestureLandmarks(), true},
		{"open palm", detector.OpenPalmLandmarks(), false},
		{"thumbs up", detector.ThumbsUpLandmarks(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Recognize(&tt.hand, th)
			assert.Equal(t, tt.want, r.IsOK, "confidence %.1f", r.Confidence)
		})
	}

	ok := detector.OKGestureLandmarks()
	assert.Equal(t, 100.0, Recognize(&ok, th).Confidence, "bonus points are capped")
}

func TestRecognize_DegenerateHand(t *testing.T) {
	var hand detector.HandLandmarks
	r := Recognize(&hand, DefaultThresholds())
	assert.False(t, r.IsOK)
	assert.Equal(t, Result{}, Recognize(nil, DefaultThresholds()))
}

func TestRecognize_Deterministic(t *testing.T) {
	hand := detector.OKGestureLandmarks()
	assert.Equal(t, Recognize(&hand, DefaultThresholds()), Recognize(&hand, DefaultThresholds()))
}

func TestBest(t *testing.T) {
	th := DefaultThresholds()

	_, found := Best(nil, th)
	assert.False(t, found)

	r, found := Best([]detector.HandLandmarks{detector.OpenPalmLandmarks(), detector.OKGestureLandmarks()}, th)
	require.True(t, found)
	assert.True(t, r.IsOK)

	r, found = Best([]detector.HandLandmarks{detector.ThumbsUpLandmarks()}, th)
	require.True(t, found)
	assert.False(t, r.IsOK)
}
