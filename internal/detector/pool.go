package detector

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrPoolClosed is returned by Hands and Pose before Init or after Dispose.
var ErrPoolClosed = errors.New("detector pool is not initialized")

// HandFactory constructs a hand detector.
type HandFactory func() (HandDetector, error)

// PoseFactory constructs a pose detector.
type PoseFactory func() (PoseDetector, error)

// Pool owns one hand and one pose detector for a single capture engine.
// Nothing is shared across pools; each engine gets its own instances.
type Pool struct {
	newHands HandFactory
	newPose  PoseFactory
	clock    clockwork.Clock

	mu    sync.RWMutex
	hands HandDetector
	pose  PoseDetector
}

// NewPool creates a pool that builds its detectors on Init.
func NewPool(hands HandFactory, pose PoseFactory) *Pool {
	return &Pool{newHands: hands, newPose: pose, clock: clockwork.NewRealClock()}
}

// WithClock sets the clock Dispose waits on.
func (p *Pool) WithClock(c clockwork.Clock) *Pool {
	if c != nil {
		p.clock = c
	}
	return p
}

// Init constructs both detectors. It is a no-op when already initialized.
// On failure, anything created so far is closed again.
func (p *Pool) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hands != nil && p.pose != nil {
		return nil
	}

	pose, err := p.newPose()
	if err != nil {
		return fmt.Errorf("init pose detector: %w", err)
	}
	hands, err := p.newHands()
	if err != nil {
		pose.Close()
		return fmt.Errorf("init hand detector: %w", err)
	}

	p.pose = pose
	p.hands = hands
	return nil
}

// Hands returns the hand detector.
func (p *Pool) Hands() (HandDetector, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.hands == nil {
		return nil, ErrPoolClosed
	}
	return p.hands, nil
}

// Pose returns the pose detector.
func (p *Pool) Pose() (PoseDetector, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.pose == nil {
		return nil, ErrPoolClosed
	}
	return p.pose, nil
}

// Ready reports whether both detectors are available.
func (p *Pool) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hands != nil && p.pose != nil
}

// Dispose detaches both detectors immediately and closes them after grace,
// so a call already in flight can finish against a live instance.
func (p *Pool) Dispose(grace time.Duration) error {
	p.mu.Lock()
	hands, pose := p.hands, p.pose
	p.hands, p.pose = nil, nil
	p.mu.Unlock()

	if grace > 0 {
		<-p.clock.After(grace)
	}

	var errs []error
	if hands != nil {
		if err := hands.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close hand detector: %w", err))
		}
	}
	if pose != nil {
		if err := pose.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pose detector: %w", err))
		}
	}
	return errors.Join(errs...)
}
