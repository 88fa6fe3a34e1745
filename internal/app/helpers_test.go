package app

import (
	"image/color"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/posebooth/internal/capture"
	"github.com/ayusman/posebooth/internal/detector"
)

// recorder counts metric calls.
type recorder struct {
	mu             sync.Mutex
	frames         map[string]int
	detectorErrors map[string]int
}

func newRecorder() *recorder {
	return &recorder{frames: map[string]int{}, detectorErrors: map[string]int{}}
}

func (r *recorder) IncTransition(string, string) {}
func (r *recorder) IncRedraw()                   {}

func (r *recorder) ObserveCapture(time.Duration, bool) {}

func (r *recorder) IncFrame(mode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[mode]++
}

func (r *recorder) IncDetectorError(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detectorErrors[name]++
}

func (r *recorder) frameCount(mode string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames[mode]
}

func (r *recorder) errorCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detectorErrors[name]
}

// fakeDetectors returns mock detectors and a pool that hands them out.
func fakeDetectors() (*detector.MockDetector, *detector.MockPoseDetector, *detector.Pool) {
	hands := detector.NewMockDetector()
	pose := detector.NewMockPoseDetector()
	pool := detector.NewPool(
		func() (detector.HandDetector, error) { return hands, nil },
		func() (detector.PoseDetector, error) { return pose, nil },
	)
	return hands, pose, pool
}

// openCamera returns an open mock camera looping over one grey frame.
func openCamera(t *testing.T) *capture.MockCamera {
	t.Helper()
	frame := capture.SolidFrame(1280, 960, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	t.Cleanup(func() { frame.Close() })

	cam := capture.NewMockCamera([]*gocv.Mat{frame}, true)
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return cam
}
