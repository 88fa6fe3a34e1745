package kiosk

import (
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ayusman/posebooth/internal/body"
	"github.com/ayusman/posebooth/internal/detector"
	"github.com/ayusman/posebooth/internal/gesture"
	"github.com/ayusman/posebooth/internal/logfields"
	"github.com/ayusman/posebooth/internal/mailbox"
	"github.com/ayusman/posebooth/internal/metrics"
)

// Default timing constants.
const (
	DefaultBodyConfirm       = 1000 * time.Millisecond
	DefaultBodyLoss          = 1000 * time.Millisecond
	DefaultGestureHold       = 3000 * time.Millisecond
	DefaultGestureGrace      = 300 * time.Millisecond
	DefaultCountdownFrom     = 5
	DefaultCountdownStep     = time.Second
	DefaultPresentationDelay = 1000 * time.Millisecond
)

// ErrNoBodyRect is returned when a capture is attempted before any body was seen.
var ErrNoBodyRect = errors.New("no body rectangle available")

// Timing holds the tunable hysteresis windows of the machine.
type Timing struct {
	BodyConfirm       time.Duration `yaml:"body_confirm"`
	BodyLoss          time.Duration `yaml:"body_loss"`
	GestureHold       time.Duration `yaml:"gesture_hold"`
	GestureGrace      time.Duration `yaml:"gesture_grace"`
	CountdownFrom     int           `yaml:"countdown_from"`
	CountdownStep     time.Duration `yaml:"countdown_step"`
	PresentationDelay time.Duration `yaml:"presentation_delay"`
}

// DefaultTiming returns the standard kiosk timing.
func DefaultTiming() Timing {
	return Timing{
		BodyConfirm:       DefaultBodyConfirm,
		BodyLoss:          DefaultBodyLoss,
		GestureHold:       DefaultGestureHold,
		GestureGrace:      DefaultGestureGrace,
		CountdownFrom:     DefaultCountdownFrom,
		CountdownStep:     DefaultCountdownStep,
		PresentationDelay: DefaultPresentationDelay,
	}
}

// Photo is the final output of one capture cycle.
type Photo struct {
	ID      string          `json:"id"`
	JPEG    []byte          `json:"-"`
	Width   int             `json:"width"`
	Height  int             `json:"height"`
	Crop    image.Rectangle `json:"crop"`
	TakenAt time.Time       `json:"taken_at"`
}

// Shutter reads the raw video source. Freeze produces the frozen frame shown
// while the photo is processed; Capture produces the final photo cropped to rect.
type Shutter interface {
	Freeze() ([]byte, error)
	Capture(rect body.Rect) (*Photo, error)
}

// HandsReading is the latest hands callback result.
type HandsReading struct {
	Hands  []detector.HandLandmarks `json:"hands"`
	Result gesture.Result           `json:"result"`
	Found  bool                     `json:"found"`
}

// Config configures a Machine.
type Config struct {
	Timing  Timing
	Shutter Shutter
	// OnCapture receives the final photo, exactly once per completed cycle.
	OnCapture func(Photo)
	// OnChange is called after every observation or transition, outside the lock.
	OnChange func()
	Clock    clockwork.Clock
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

// Timers exposes the hysteresis timestamps. Zero values mean not running.
type Timers struct {
	BodyStart       time.Time `json:"body_start"`
	BodyLastSeen    time.Time `json:"body_last_seen"`
	GestureStart    time.Time `json:"gesture_start"`
	GestureLastSeen time.Time `json:"gesture_last_seen"`
}

// Snapshot is a consistent view of the machine and both detector holders.
type Snapshot struct {
	State     State                   `json:"state"`
	Status    string                  `json:"status"`
	Countdown int                     `json:"countdown"`
	Hold      float64                 `json:"hold"`
	BodyRect  *body.Rect              `json:"body_rect,omitempty"`
	Pose      *detector.PoseLandmarks `json:"-"`
	Hands     *HandsReading           `json:"-"`
	Frozen    bool                    `json:"frozen"`
	CycleID   string                  `json:"cycle_id,omitempty"`
}

// Machine owns the capture state and every transition between states.
// All mutation happens under one mutex so snapshots are never torn.
type Machine struct {
	timing  Timing
	shutter Shutter
	clock   clockwork.Clock
	metrics metrics.Recorder
	logger  *slog.Logger

	onCapture func(Photo)
	onChange  func()

	mu        sync.Mutex
	state     State
	body      Window
	gesture   Window
	rect      *body.Rect
	countdown int
	nextStep  time.Time
	presentAt time.Time
	cycle     string
	closed    bool
	effects   []func()

	pose   mailbox.Slot[detector.PoseLandmarks]
	hands  mailbox.Slot[HandsReading]
	frozen mailbox.Slot[[]byte]

	inflight sync.WaitGroup
}

// NewMachine creates a machine in IDLE.
func NewMachine(cfg Config) *Machine {
	if cfg.Timing == (Timing{}) {
		cfg.Timing = DefaultTiming()
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
	return &Machine{
		timing:    cfg.Timing,
		shutter:   cfg.Shutter,
		clock:     cfg.Clock,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		onCapture: cfg.OnCapture,
		onChange:  cfg.OnChange,
	}
}

// ObserveBody records one pose detector result. A nil rect means no body was
// found in this frame; the stale rect is kept and the loss timer keeps running.
func (m *Machine) ObserveBody(pose *detector.PoseLandmarks, rect *body.Rect) {
	m.update(func(now time.Time) {
		m.pose.Store(pose)
		if rect == nil {
			return
		}
		switch m.state {
		case StateIdle:
			m.body.Reset()
			m.body.Feed(now)
			m.setRect(rect)
			m.transition(StateDetectingBody, now)
		case StateDetectingBody:
			m.body.Feed(now)
			m.setRect(rect)
			if m.body.Elapsed(now) >= m.timing.BodyConfirm {
				m.transition(StateDetectingGesture, now)
			}
		case StateDetectingGesture, StateGestureDetected:
			m.body.Feed(now)
			m.setRect(rect)
		}
	})
}

// ObserveHands records one hand detector result.
func (m *Machine) ObserveHands(hands []detector.HandLandmarks, result gesture.Result, found bool) {
	m.update(func(now time.Time) {
		if !m.state.ConfirmingGesture() {
			return
		}
		m.hands.Put(HandsReading{Hands: hands, Result: result, Found: found})
		if !found || !result.IsOK {
			return
		}
		switch m.state {
		case StateDetectingGesture:
			m.gesture.Reset()
			m.gesture.Feed(now)
			m.transition(StateGestureDetected, now)
		case StateGestureDetected:
			m.gesture.Feed(now)
		}
	})
}

// Tick advances the timers without new evidence.
func (m *Machine) Tick() {
	m.update(func(time.Time) {})
}

// Reset returns to IDLE and clears every timer and holder. It is idempotent.
func (m *Machine) Reset() {
	m.update(func(now time.Time) {
		if m.state != StateIdle {
			m.transition(StateIdle, now)
		}
		m.rect = nil
		m.pose.Clear()
		m.frozen.Clear()
		m.cycle = ""
	})
}

// Close turns every later call into a no-op and waits for an in-flight capture.
func (m *Machine) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.inflight.Wait()
}

// State returns the current capture state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Countdown returns the current countdown value.
func (m *Machine) Countdown() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countdown
}

// Status returns the label for the current state.
func (m *Machine) Status() string {
	return m.State().Status()
}

// FrozenFrame returns the encoded frozen frame, or nil before the countdown completes.
func (m *Machine) FrozenFrame() []byte {
	if b := m.frozen.Load(); b != nil {
		return *b
	}
	return nil
}

// BodyRect returns the last body rectangle, or nil.
func (m *Machine) BodyRect() *body.Rect {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rect == nil {
		return nil
	}
	r := *m.rect
	return &r
}

// Timers returns the current hysteresis timestamps.
func (m *Machine) Timers() Timers {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Timers{
		BodyStart:       m.body.Start(),
		BodyLastSeen:    m.body.LastSeen(),
		GestureStart:    m.gesture.Start(),
		GestureLastSeen: m.gesture.LastSeen(),
	}
}

// Snapshot returns the state together with both detector holders.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	s := Snapshot{
		State:     m.state,
		Status:    m.state.Status(),
		Countdown: m.countdown,
		Pose:      m.pose.Load(),
		Hands:     m.hands.Load(),
		Frozen:    m.frozen.Load() != nil,
		CycleID:   m.cycle,
	}
	if m.rect != nil {
		r := *m.rect
		s.BodyRect = &r
	}
	if m.state == StateGestureDetected && m.timing.GestureHold > 0 {
		s.Hold = min(1, float64(m.gesture.Elapsed(now))/float64(m.timing.GestureHold))
	}
	return s
}

func (m *Machine) update(fn func(now time.Time)) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	now := m.clock.Now()
	fn(now)
	for m.step(now) {
	}
	effects := m.effects
	m.effects = nil
	m.mu.Unlock()

	for _, effect := range effects {
		effect()
	}
	if m.onChange != nil {
		m.onChange()
	}
}

// heldThroughGrace reports whether the hold deadline fell while the gesture
// still counted as present, even if nothing was evaluated until later.
func (m *Machine) heldThroughGrace() bool {
	deadline := m.gesture.Start().Add(m.timing.GestureHold)
	return !deadline.After(m.gesture.LastSeen().Add(m.timing.GestureGrace))
}

// step applies at most one timer-driven transition and reports whether it did.
func (m *Machine) step(now time.Time) bool {
	switch m.state {
	case StateDetectingBody, StateDetectingGesture:
		if m.body.Expired(now, m.timing.BodyLoss) {
			m.transition(StateIdle, now)
			return true
		}
	case StateGestureDetected:
		switch {
		case m.body.Expired(now, m.timing.BodyLoss):
			m.transition(StateIdle, now)
			return true
		case m.gesture.Expired(now, m.timing.GestureGrace) && !m.heldThroughGrace():
			m.gesture.Reset()
			m.transition(StateDetectingGesture, now)
			return true
		case m.gesture.Elapsed(now) >= m.timing.GestureHold:
			m.transition(StateCountdown, now)
			return true
		}
	case StateCountdown:
		for m.countdown > 0 && !now.Before(m.nextStep) {
			m.countdown--
			m.nextStep = m.nextStep.Add(m.timing.CountdownStep)
		}
		if m.countdown == 0 {
			m.transition(StateCapturing, now)
			return true
		}
	case StateCapturing:
		if !now.Before(m.presentAt) {
			m.transition(StateCapture, now)
			return true
		}
	}
	return false
}

func (m *Machine) transition(to State, now time.Time) {
	from := m.state
	m.state = to
	m.metrics.IncTransition(from.String(), to.String())
	m.logger.Info("capture state changed", logfields.From(from.String()), logfields.To(to.String()))

	if from.ConfirmingGesture() && !to.ConfirmingGesture() {
		m.hands.Clear()
	}

	switch to {
	case StateIdle:
		m.body.Reset()
		m.gesture.Reset()
		m.countdown = 0
		m.nextStep = time.Time{}
		m.presentAt = time.Time{}
	case StateCountdown:
		m.cycle = uuid.NewString()
		m.countdown = m.timing.CountdownFrom
		m.nextStep = now.Add(m.timing.CountdownStep)
		m.frozen.Clear()
	case StateCapturing:
		m.presentAt = now.Add(m.timing.PresentationDelay)
		m.freeze()
	case StateCapture:
		m.startCapture()
	}
}

// freeze runs under the lock so no snapshot can show CAPTURING without the frame.
func (m *Machine) freeze() {
	if m.shutter == nil {
		return
	}
	frame, err := m.shutter.Freeze()
	if err != nil {
		m.logger.Warn("failed to freeze frame", logfields.CaptureID(m.cycle), logfields.Error(err))
		return
	}
	m.frozen.Put(frame)
}

func (m *Machine) startCapture() {
	cycle := m.cycle
	var rect *body.Rect
	if m.rect != nil {
		r := *m.rect
		rect = &r
	}
	m.inflight.Add(1)
	m.effects = append(m.effects, func() {
		go func() {
			defer m.inflight.Done()
			m.runCapture(cycle, rect)
		}()
	})
}

func (m *Machine) runCapture(cycle string, rect *body.Rect) {
	start := m.clock.Now()
	var (
		photo *Photo
		err   error
	)
	switch {
	case rect == nil:
		err = ErrNoBodyRect
	case m.shutter == nil:
		err = errors.New("no shutter configured")
	default:
		photo, err = m.shutter.Capture(*rect)
	}
	took := m.clock.Since(start)
	m.metrics.ObserveCapture(took, err == nil)
	m.finishCapture(cycle, photo, err, took)
}

func (m *Machine) finishCapture(cycle string, photo *Photo, err error, took time.Duration) {
	m.update(func(now time.Time) {
		if m.state != StateCapture || m.cycle != cycle {
			return
		}
		if err != nil {
			m.logger.Warn("capture failed", logfields.CaptureID(cycle), logfields.Error(err))
			m.transition(StateIdle, now)
			return
		}
		out := *photo
		out.ID = cycle
		if out.TakenAt.IsZero() {
			out.TakenAt = now
		}
		m.transition(StateCompleted, now)
		m.logger.Info("photo captured", logfields.CaptureID(cycle),
			logfields.DurationMS(float64(took.Milliseconds())))
		if m.onCapture != nil {
			m.effects = append(m.effects, func() { m.onCapture(out) })
		}
	})
}

func (m *Machine) setRect(r *body.Rect) {
	c := *r
	m.rect = &c
}
