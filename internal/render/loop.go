package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"gocv.io/x/gocv"

	"github.com/ayusman/posebooth/internal/capture"
	"github.com/ayusman/posebooth/internal/kiosk"
	"github.com/ayusman/posebooth/internal/logfields"
	"github.com/ayusman/posebooth/internal/mailbox"
	"github.com/ayusman/posebooth/internal/metrics"
)

// DefaultMaxFPS caps how often the canvas is repainted.
const DefaultMaxFPS = 30

// Source is what the loop draws from.
type Source interface {
	Snapshot() kiosk.Snapshot
	FrozenFrame() []byte
}

// FrameBuffer holds the latest live frame at canvas size. The frame pump
// writes it and the render loop reads it.
type FrameBuffer struct {
	mu  sync.Mutex
	mat gocv.Mat
	seq uint64
}

// NewFrameBuffer returns an empty buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{mat: gocv.NewMat()}
}

// Set replaces the held frame with a copy of frame.
func (b *FrameBuffer) Set(frame gocv.Mat) {
	b.mu.Lock()
	defer b.mu.Unlock()
	frame.CopyTo(&b.mat)
	b.seq++
}

// CopyTo copies the held frame into dst and returns its sequence number.
func (b *FrameBuffer) CopyTo(dst *gocv.Mat) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mat.CopyTo(dst)
	return b.seq
}

// Close releases the held frame.
func (b *FrameBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mat.Close()
}

// Rendered is one encoded canvas frame.
type Rendered struct {
	JPEG  []byte
	Seq   uint64
	State kiosk.State
}

// LoopConfig configures a Loop.
type LoopConfig struct {
	Source    Source
	Frames    *FrameBuffer
	Scheduler *Scheduler
	Canvas    image.Point
	MaxFPS    int
	Clock     clockwork.Clock
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// Loop is the only writer of the canvas. It waits for a scheduled redraw,
// paints one frame from a single snapshot and publishes the JPEG.
type Loop struct {
	cfg LoopConfig

	out   mailbox.Slot[Rendered]
	seq   atomic.Uint64
	draws atomic.Uint64

	// frozen frame decode cache, touched only by the drawing goroutine
	frozenSrc []byte
	frozenMat gocv.Mat
}

// NewLoop creates a render loop.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewScheduler()
	}
	if cfg.Frames == nil {
		cfg.Frames = NewFrameBuffer()
	}
	if cfg.MaxFPS <= 0 {
		cfg.MaxFPS = DefaultMaxFPS
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
	return &Loop{cfg: cfg, frozenMat: gocv.NewMat()}
}

// Frames returns the live frame buffer the pump should write to.
func (l *Loop) Frames() *FrameBuffer { return l.cfg.Frames }

// Request asks for a redraw on the next animation frame.
func (l *Loop) Request() {
	l.cfg.Scheduler.Request()
}

// Run draws until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(l.cfg.MaxFPS)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.cfg.Scheduler.C():
		}

		l.cfg.Scheduler.Begin()
		if _, err := l.DrawOnce(); err != nil {
			l.cfg.Logger.Debug("redraw failed", logfields.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-l.cfg.Clock.After(interval):
		}
	}
}

// DrawOnce paints and publishes one frame. It must not run concurrently with
// itself; Run is its only caller outside tests.
func (l *Loop) DrawOnce() (Rendered, error) {
	snap := l.cfg.Source.Snapshot()

	video := gocv.NewMat()
	defer video.Close()
	l.cfg.Frames.CopyTo(&video)

	if snap.Frozen {
		l.refreshFrozen(l.cfg.Source.FrozenFrame())
	}

	canvas := Compose(video, l.frozenMat, l.cfg.Canvas, snap)
	defer canvas.Close()

	data, err := capture.EncodeJPEG(canvas)
	if err != nil {
		return Rendered{}, fmt.Errorf("encode canvas: %w", err)
	}

	r := Rendered{JPEG: data, Seq: l.seq.Add(1), State: snap.State}
	l.out.Put(r)
	l.draws.Add(1)
	l.cfg.Metrics.IncRedraw()
	return r, nil
}

func (l *Loop) refreshFrozen(src []byte) {
	if len(src) == 0 || bytes.Equal(src, l.frozenSrc) {
		return
	}
	mat, err := gocv.IMDecode(src, gocv.IMReadColor)
	if err != nil {
		l.cfg.Logger.Debug("failed to decode frozen frame", logfields.Error(err))
		return
	}
	l.frozenMat.Close()
	l.frozenMat = mat
	l.frozenSrc = src
}

// Latest returns the most recently published frame, if any.
func (l *Loop) Latest() (Rendered, bool) {
	r := l.out.Load()
	if r == nil {
		return Rendered{}, false
	}
	return *r, true
}

// Draws returns how many frames were painted.
func (l *Loop) Draws() uint64 {
	return l.draws.Load()
}

// Close releases cached images. Run must have returned.
func (l *Loop) Close() {
	l.frozenMat.Close()
}
