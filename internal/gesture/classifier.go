// Package gesture recognizes the confirmatory "OK" hand sign from hand landmarks.
package gesture

import (
	"math"

	"github.com/ayusman/posebooth/internal/detector"
)

// Point budgets. They sum to 100 before the centre bonus.
const (
	circlePoints = 40.0
	middlePoints = 20.0
	ringPoints   = 20.0
	pinkyPoints  = 15.0
	bentPoints   = 5.0
	centerPoints = 5.0

	maxConfidence = 100.0
)

// Thresholds tunes the classifier. Ratios are multiples of the hand size
// (wrist to middle finger MCP), so they hold at any camera distance.
type Thresholds struct {
	// CircleRatio is the thumb/index tip gap, relative to hand size, under which a circle is formed.
	CircleRatio float64 `yaml:"circle_ratio"`
	// CircleFloor is the absolute minimum circle threshold in normalized units.
	CircleFloor float64 `yaml:"circle_floor"`
	// ExtendedRatio is how far above the palm base a fingertip must be to count as extended.
	ExtendedRatio float64 `yaml:"extended_ratio"`
	// CenterRatio is how far below the palm base the circle centre may sit.
	CenterRatio float64 `yaml:"center_ratio"`
	// MinHandSize guards against degenerate, near-zero hand sizes.
	MinHandSize float64 `yaml:"min_hand_size"`
	// Confidence is the minimum score (0-100) for a positive result.
	Confidence float64 `yaml:"confidence"`
}

// DefaultThresholds returns the tuned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CircleRatio:   0.35,
		CircleFloor:   0.03,
		ExtendedRatio: 0.6,
		CenterRatio:   0.5,
		MinHandSize:   0.02,
		Confidence:    60,
	}
}

// Result is the outcome of one classification. It is recomputed on every
// hand detector callback and never carried over to the next one.
type Result struct {
	IsOK       bool    `json:"is_ok"`
	Confidence float64 `json:"confidence"`
}

// Recognize scores how closely hand resembles the OK sign.
func Recognize(hand *detector.HandLandmarks, th Thresholds) Result {
	if hand == nil {
		return Result{}
	}
	p := hand.Points

	size := math.Max(hand.HandSize(), th.MinHandSize)
	palm := hand.PalmBase()

	var score float64

	// Thumb and index tips close together form the circle.
	circleThreshold := math.Max(size*th.CircleRatio, th.CircleFloor)
	gap := detector.Distance(p[detector.ThumbTip], p[detector.IndexTip])
	circleFormed := gap < circleThreshold
	score += circleQuality(gap, circleThreshold)

	// Remaining fingers should point up, away from the palm.
	margin := size * th.ExtendedRatio
	extended := 0
	for _, f := range []struct {
		tip    int
		points float64
	}{
		{detector.MiddleTip, middlePoints},
		{detector.RingTip, ringPoints},
		{detector.PinkyTip, pinkyPoints},
	} {
		if palm.Y-p[f.tip].Y > margin {
			extended++
			score += f.points
		}
	}

	// An index finger curling into the circle drops below a proximal joint.
	tip := p[detector.IndexTip]
	if tip.Y > p[detector.IndexPIP].Y || tip.Y > p[detector.IndexMCP].Y {
		score += bentPoints
	}

	center := detector.Midpoint(p[detector.ThumbTip], p[detector.IndexTip])
	if center.Y-palm.Y < size*th.CenterRatio {
		score += centerPoints
	}

	confidence := math.Min(score, maxConfidence)
	return Result{
		IsOK:       confidence >= th.Confidence && circleFormed && extended >= 2,
		Confidence: confidence,
	}
}

// circleQuality is inversely proportional to the tip gap: a gap of half the
// threshold or less earns the full budget, a gap equal to the threshold half of it.
func circleQuality(gap, threshold float64) float64 {
	if gap <= 0 {
		return circlePoints
	}
	return math.Min(circlePoints, circlePoints/2*threshold/gap)
}

// Best returns the highest-confidence result across hands and whether any
// hand was present. An OK result always outranks a non-OK one.
func Best(hands []detector.HandLandmarks, th Thresholds) (Result, bool) {
	if len(hands) == 0 {
		return Result{}, false
	}
	var best Result
	for i := range hands {
		r := Recognize(&hands[i], th)
		if (r.IsOK && !best.IsOK) || (r.IsOK == best.IsOK && r.Confidence > best.Confidence) {
			best = r
		}
	}
	return best, true
}
