package app

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"gocv.io/x/gocv"

	"github.com/ayusman/posebooth/internal/body"
	"github.com/ayusman/posebooth/internal/capture"
	"github.com/ayusman/posebooth/internal/detector"
	"github.com/ayusman/posebooth/internal/gesture"
	"github.com/ayusman/posebooth/internal/kiosk"
	"github.com/ayusman/posebooth/internal/logfields"
	"github.com/ayusman/posebooth/internal/metrics"
	"github.com/ayusman/posebooth/internal/render"
)

// Pump modes, as reported to metrics.
const (
	ModeBody    = "body"
	ModeGesture = "gesture"
	ModeGated   = "gated"
	ModeNone    = "none"
)

// PumpConfig configures the frame pump.
type PumpConfig struct {
	Camera     capture.Camera
	Pool       *detector.Pool
	Machine    *kiosk.Machine
	Frames     *render.FrameBuffer
	Canvas     image.Point
	Thresholds gesture.Thresholds
	// FPS caps how often frames are pulled from the camera.
	FPS int
	// BodyEvery refreshes the body rect on every Nth hand callback.
	BodyEvery int
	// Gate skips body inference in IDLE while the scene is static. Nil disables it.
	Gate    *capture.MotionGate
	Clock   clockwork.Clock
	Metrics metrics.Recorder
	Logger  *slog.Logger
}

// Pump is the single entry point for camera frames. It picks which detector
// runs based on the capture state and feeds the results to the machine.
type Pump struct {
	cfg PumpConfig

	mounted      atomic.Bool
	poseInFlight atomic.Bool
	handCalls    int
	background   sync.WaitGroup
}

// NewPump creates a pump. It does nothing until Mount is called.
func NewPump(cfg PumpConfig) *Pump {
	if cfg.FPS <= 0 {
		cfg.FPS = capture.DefaultFPS
	}
	if cfg.BodyEvery <= 0 {
		cfg.BodyEvery = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pump{cfg: cfg}
}

// Mount enables frame handling.
func (p *Pump) Mount() { p.mounted.Store(true) }

// Unmount turns every later frame and detector result into a no-op.
func (p *Pump) Unmount() { p.mounted.Store(false) }

// Mounted reports whether the pump accepts frames.
func (p *Pump) Mounted() bool { return p.mounted.Load() }

// Wait blocks until background body refreshes have returned.
func (p *Pump) Wait() { p.background.Wait() }

// Run pulls frames at the configured rate until ctx is cancelled.
func (p *Pump) Run(ctx context.Context) error {
	ticker := p.cfg.Clock.NewTicker(time.Second / time.Duration(p.cfg.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			p.Step()
		}
	}
}

// Step handles one camera frame. Detector errors are swallowed: the frame is
// skipped and the machine's timers deal with missing evidence.
func (p *Pump) Step() {
	if !p.Mounted() {
		return
	}
	defer p.cfg.Machine.Tick()

	raw, err := p.cfg.Camera.ReadFrame()
	if err != nil {
		p.cfg.Logger.Debug("frame read failed", logfields.Error(err))
		return
	}
	defer raw.Close()

	frame := gocv.NewMat()
	defer frame.Close()
	if raw.Cols() == p.cfg.Canvas.X && raw.Rows() == p.cfg.Canvas.Y {
		raw.CopyTo(&frame)
	} else {
		gocv.Resize(*raw, &frame, p.cfg.Canvas, 0, 0, gocv.InterpolationArea)
	}
	if p.cfg.Frames != nil {
		p.cfg.Frames.Set(frame)
	}

	state := p.cfg.Machine.State()
	switch {
	case state.ConfirmingBody():
		if state == kiosk.StateIdle && !p.cfg.Gate.Open(&frame, p.cfg.Clock.Now()) {
			p.cfg.Metrics.IncFrame(ModeGated)
			return
		}
		p.cfg.Metrics.IncFrame(ModeBody)
		p.detectBody(&frame)
	case state.ConfirmingGesture():
		p.cfg.Metrics.IncFrame(ModeGesture)
		p.detectHands(&frame)
	default:
		p.cfg.Metrics.IncFrame(ModeNone)
	}
}

func (p *Pump) detectBody(frame *gocv.Mat) {
	d, err := p.cfg.Pool.Pose()
	if err != nil {
		return
	}
	pose, err := d.DetectPose(frame)
	if err != nil {
		p.cfg.Metrics.IncDetectorError("pose")
		p.cfg.Logger.Debug("pose detection failed", logfields.Detector("pose"), logfields.Error(err))
		return
	}
	if !p.Mounted() {
		return
	}
	p.cfg.Machine.ObserveBody(pose, body.Estimate(pose, p.cfg.Canvas.X, p.cfg.Canvas.Y))
}

func (p *Pump) detectHands(frame *gocv.Mat) {
	d, err := p.cfg.Pool.Hands()
	if err != nil {
		return
	}
	hands, err := d.Detect(frame)
	if err != nil {
		p.cfg.Metrics.IncDetectorError("hands")
		p.cfg.Logger.Debug("hand detection failed", logfields.Detector("hands"), logfields.Error(err))
		return
	}
	if !p.Mounted() {
		return
	}
	result, found := gesture.Best(hands, p.cfg.Thresholds)
	p.cfg.Machine.ObserveHands(hands, result, found)

	p.handCalls++
	if p.handCalls%p.cfg.BodyEvery == 0 {
		p.refreshBody(frame)
	}
}

// refreshBody runs the pose detector off the hand path. At most one refresh
// is in flight; extra requests are dropped.
func (p *Pump) refreshBody(frame *gocv.Mat) {
	if !p.poseInFlight.CompareAndSwap(false, true) {
		return
	}
	clone := frame.Clone()
	p.background.Add(1)
	go func() {
		defer p.background.Done()
		defer p.poseInFlight.Store(false)
		defer clone.Close()
		p.detectBody(&clone)
	}()
}
