package app

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/posebooth/internal/capture"
	"github.com/ayusman/posebooth/internal/detector"
	"github.com/ayusman/posebooth/internal/gesture"
	"github.com/ayusman/posebooth/internal/kiosk"
)

type pumpHarness struct {
	pump    *Pump
	machine *kiosk.Machine
	clock   *clockwork.FakeClock
	hands   *detector.MockDetector
	pose    *detector.MockPoseDetector
	camera  *capture.MockCamera
	metrics *recorder
}

func newPumpHarness(t *testing.T, gate *capture.MotionGate) *pumpHarness {
	t.Helper()
	return newPumpHarnessWithPose(t, gate, nil)
}

// newPumpHarnessWithPose lets wrap stand in front of the mock pose detector.
func newPumpHarnessWithPose(t *testing.T, gate *capture.MotionGate, wrap func(detector.PoseDetector) detector.PoseDetector) *pumpHarness {
	t.Helper()
	h := &pumpHarness{
		clock:   clockwork.NewFakeClock(),
		camera:  openCamera(t),
		metrics: newRecorder(),
		hands:   detector.NewMockDetector(),
		pose:    detector.NewMockPoseDetector(),
	}
	var pose detector.PoseDetector = h.pose
	if wrap != nil {
		pose = wrap(h.pose)
	}
	pool := detector.NewPool(
		func() (detector.HandDetector, error) { return h.hands, nil },
		func() (detector.PoseDetector, error) { return pose, nil },
	)
	require.NoError(t, pool.Init())

	h.machine = kiosk.NewMachine(kiosk.Config{Clock: h.clock, Metrics: h.metrics})
	h.pump = NewPump(PumpConfig{
		Camera:     h.camera,
		Pool:       pool,
		Machine:    h.machine,
		Canvas:     image.Pt(640, 480),
		Thresholds: gesture.DefaultThresholds(),
		BodyEvery:  3,
		Gate:       gate,
		Clock:      h.clock,
		Metrics:    h.metrics,
	})
	h.pump.Mount()
	t.Cleanup(func() {
		h.pump.Unmount()
		h.pump.Wait()
		h.machine.Close()
	})
	return h
}

// step advances the clock by one frame and pumps it.
func (h *pumpHarness) step() {
	h.clock.Advance(100 * time.Millisecond)
	h.pump.Step()
	h.pump.Wait()
}

func TestPumpBodyOnlyWhileConfirmingBody(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	h := newPumpHarness(t, nil)
	h.pose.SetPose(detector.StandingPoseLandmarks())

	h.step()
	assert.Equal(t, kiosk.StateDetectingBody, h.machine.State())
	assert.Equal(t, 1, h.pose.Calls())
	assert.Zero(t, h.hands.Calls())

	rect := h.machine.BodyRect()
	require.NotNil(t, rect)
	assert.InDelta(t, 0.32*640, rect.X, 1e-6, "rect is in canvas pixels")

	for i := 0; i < 10; i++ {
		h.step()
	}
	assert.Equal(t, kiosk.StateDetectingGesture, h.machine.State())
	assert.Zero(t, h.hands.Calls())
	assert.Equal(t, 11, h.metrics.frameCount(ModeBody))
}

func TestPumpHandsPrimaryDuringGesture(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	h := newPumpHarness(t, nil)
	h.pose.SetPose(detector.StandingPoseLandmarks())
	for h.machine.State() != kiosk.StateDetectingGesture {
		h.step()
	}
	poseBefore := h.pose.Calls()

	h.hands.SetHands([]detector.HandLandmarks{detector.OKGestureLandmarks()})
	for i := 0; i < 6; i++ {
		h.step()
	}

	assert.Equal(t, 6, h.hands.Calls())
	assert.Equal(t, poseBefore+2, h.pose.Calls(), "body refresh runs every third hand callback")
	assert.Equal(t, kiosk.StateGestureDetected, h.machine.State())
	assert.Equal(t, 6, h.metrics.frameCount(ModeGesture))
}

// stalledPose blocks every DetectPose call once armed, until release is closed.
type stalledPose struct {
	detector.PoseDetector
	armed   atomic.Bool
	started chan struct{}
	release chan struct{}
	blocked atomic.Int32
}

func newStalledPose(inner detector.PoseDetector) *stalledPose {
	return &stalledPose{
		PoseDetector: inner,
		started:      make(chan struct{}, 8),
		release:      make(chan struct{}),
	}
}

func (p *stalledPose) DetectPose(frame *gocv.Mat) (*detector.PoseLandmarks, error) {
	if p.armed.Load() {
		p.blocked.Add(1)
		p.started <- struct{}{}
		<-p.release
	}
	return p.PoseDetector.DetectPose(frame)
}

func TestPumpBodyRefreshDoesNotBlockHands(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	stalled := newStalledPose(nil)
	h := newPumpHarnessWithPose(t, nil, func(inner detector.PoseDetector) detector.PoseDetector {
		stalled.PoseDetector = inner
		return stalled
	})
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(stalled.release) }) }
	t.Cleanup(unblock)

	h.pose.SetPose(detector.StandingPoseLandmarks())
	for h.machine.State() != kiosk.StateDetectingGesture {
		h.step()
	}
	h.hands.SetHands([]detector.HandLandmarks{detector.OKGestureLandmarks()})
	stalled.armed.Store(true)

	// Steps without waiting for background work; a blocking refresh would hang here.
	stepNoWait := func() {
		t.Helper()
		done := make(chan struct{})
		go func() {
			defer close(done)
			h.clock.Advance(100 * time.Millisecond)
			h.pump.Step()
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Step() blocked behind the body refresh")
		}
	}

	for i := 0; i < 3; i++ {
		stepNoWait()
	}
	select {
	case <-stalled.started:
	case <-time.After(2 * time.Second):
		t.Fatal("body refresh never started")
	}
	require.Equal(t, kiosk.StateGestureDetected, h.machine.State())

	for i := 0; i < 4; i++ {
		stepNoWait()
		assert.Equal(t, 4+i, h.hands.Calls(), "hand detector runs while the refresh is stuck")
	}
	assert.Equal(t, kiosk.StateGestureDetected, h.machine.State())
	assert.Equal(t, int32(1), stalled.blocked.Load(), "a second refresh must not start while one is in flight")

	unblock()
	h.pump.Wait()

	// The slot frees up once the stuck call returns: hand call 9 refreshes again.
	for i := 0; i < 2; i++ {
		h.step()
	}
	assert.Equal(t, int32(2), stalled.blocked.Load())
	assert.Equal(t, kiosk.StateGestureDetected, h.machine.State())
}

func TestPumpReachesCountdownAndStopsDetecting(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	h := newPumpHarness(t, nil)
	h.pose.SetPose(detector.StandingPoseLandmarks())
	h.hands.SetHands([]detector.HandLandmarks{detector.OKGestureLandmarks()})

	for i := 0; i < 60 && h.machine.State() != kiosk.StateCountdown; i++ {
		h.step()
	}
	require.Equal(t, kiosk.StateCountdown, h.machine.State())

	hands, pose := h.hands.Calls(), h.pose.Calls()
	for i := 0; i < 5; i++ {
		h.step()
	}
	assert.Equal(t, hands, h.hands.Calls())
	assert.Equal(t, pose, h.pose.Calls())
	assert.Equal(t, 5, h.metrics.frameCount(ModeNone))
}

func TestPumpSwallowsDetectorErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	h := newPumpHarness(t, nil)
	h.pose.SetError(errors.New("inference crashed"))

	for i := 0; i < 3; i++ {
		h.step()
	}
	assert.Equal(t, kiosk.StateIdle, h.machine.State())
	assert.Equal(t, 3, h.metrics.errorCount("pose"))

	h.pose.SetError(nil)
	h.pose.SetPose(detector.StandingPoseLandmarks())
	h.step()
	assert.Equal(t, kiosk.StateDetectingBody, h.machine.State())
}

func TestPumpUnmountedIsNoop(t *testing.T) {
	h := newPumpHarness(t, nil)
	h.pump.Unmount()

	h.step()
	assert.Zero(t, h.camera.Reads())
	assert.Zero(t, h.pose.Calls())
}

func TestPumpMotionGate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	gate := capture.NewMotionGate(1.0, time.Second)
	t.Cleanup(gate.Close)
	h := newPumpHarness(t, gate)
	h.pose.SetPose(detector.StandingPoseLandmarks())

	for i := 0; i < 5; i++ {
		h.step()
	}
	assert.Zero(t, h.pose.Calls(), "static scene never reaches the pose detector")
	assert.Equal(t, 5, h.metrics.frameCount(ModeGated))
	assert.Equal(t, kiosk.StateIdle, h.machine.State())
}
