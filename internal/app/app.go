// Package app wires the camera, detectors, capture state machine, render loop
// and photo sink into one running kiosk.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/ayusman/posebooth/internal/capture"
	"github.com/ayusman/posebooth/internal/config"
	"github.com/ayusman/posebooth/internal/detector"
	"github.com/ayusman/posebooth/internal/kiosk"
	"github.com/ayusman/posebooth/internal/logfields"
	"github.com/ayusman/posebooth/internal/metrics"
	"github.com/ayusman/posebooth/internal/plugin"
	"github.com/ayusman/posebooth/internal/render"
	"github.com/ayusman/posebooth/internal/store"
)

// Options holds the collaborators of an App. Only Config is required.
type Options struct {
	Config *config.Config
	// Camera defaults to the configured capture device.
	Camera capture.Camera
	// Hands and Pose default to the MediaPipe services.
	Hands   detector.HandFactory
	Pose    detector.PoseFactory
	Store   *store.Store
	Clock   clockwork.Clock
	Metrics metrics.Recorder
	Logger  *slog.Logger
}

// App is one capture engine: it owns its camera, its detector pool and the
// goroutines that drive them.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	camera  capture.Camera
	pool    *detector.Pool
	machine *kiosk.Machine
	loop    *render.Loop
	pump    *Pump
	gate    *capture.MotionGate
	sink    *Sink
	store   *store.Store
	plugins *plugin.Manager
	events  *plugin.Dispatcher

	// lifecycle serializes Start and Stop; mu guards the fields below it.
	lifecycle sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	initErr *InitError
}

// New assembles an App. Nothing is opened until Start.
func New(opts Options) *App {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Camera == nil {
		opts.Camera = capture.NewCamera(cfg.Camera)
	}
	if opts.Hands == nil {
		opts.Hands = func() (detector.HandDetector, error) {
			d, err := detector.NewMediaPipeHands(cfg.Detector)
			if err != nil {
				return nil, err
			}
			return d, nil
		}
	}
	if opts.Pose == nil {
		opts.Pose = func() (detector.PoseDetector, error) {
			d, err := detector.NewMediaPipePose(cfg.Detector)
			if err != nil {
				return nil, err
			}
			return d, nil
		}
	}

	a := &App{
		cfg:    cfg,
		logger: opts.Logger,
		camera: opts.Camera,
		pool:   detector.NewPool(opts.Hands, opts.Pose).WithClock(opts.Clock),
		gate:   capture.NewMotionGate(cfg.Motion.Threshold, cfg.Motion.Hold),
		store:  opts.Store,
	}

	var captures *store.CaptureRepository
	if opts.Store != nil {
		captures = opts.Store.Captures()
	}
	a.sink = NewSink(cfg.Capture.OutputDir, captures, opts.Logger)
	a.wirePlugins()

	canvas := cfg.Canvas.Size()
	redraw := render.NewScheduler()
	a.machine = kiosk.NewMachine(kiosk.Config{
		Timing:    cfg.Timing,
		Shutter:   capture.NewPipeline(opts.Camera, canvas, cfg.Capture.PipelineConfig),
		OnCapture: a.sink.Handle,
		OnChange:  func() { redraw.Request() },
		Clock:     opts.Clock,
		Metrics:   opts.Metrics,
		Logger:    opts.Logger,
	})
	a.loop = render.NewLoop(render.LoopConfig{
		Source:    a.machine,
		Scheduler: redraw,
		Canvas:    canvas,
		MaxFPS:    cfg.Render.MaxFPS,
		Clock:     opts.Clock,
		Metrics:   opts.Metrics,
		Logger:    opts.Logger,
	})
	a.pump = NewPump(PumpConfig{
		Camera:     opts.Camera,
		Pool:       a.pool,
		Machine:    a.machine,
		Frames:     a.loop.Frames(),
		Canvas:     canvas,
		Thresholds: cfg.Gesture,
		FPS:        cfg.Pump.FPS,
		BodyEvery:  cfg.Pump.BodyEvery,
		Gate:       a.gate,
		Clock:      opts.Clock,
		Metrics:    opts.Metrics,
		Logger:     opts.Logger,
	})
	return a
}

// wirePlugins discovers the photo plugins and hands every saved capture to
// them in the background.
func (a *App) wirePlugins() {
	pc := a.cfg.Plugins
	a.plugins = plugin.NewManager(pc.Dir, a.logger)
	if err := a.plugins.Discover(); err != nil {
		a.logger.Warn("plugin discovery failed", logfields.Path(pc.Dir), logfields.Error(err))
	}

	settings := make(map[string]json.RawMessage, len(pc.Settings))
	for name, v := range pc.Settings {
		raw, err := json.Marshal(v)
		if err != nil {
			a.logger.Warn("invalid plugin settings", slog.String("plugin", name), logfields.Error(err))
			continue
		}
		settings[name] = raw
	}
	a.events = plugin.NewDispatcher(a.plugins, plugin.NewExecutor(pc.Timeout), settings, a.logger)

	if n := len(a.plugins.Subscribers(plugin.EventPhotoCaptured)); n > 0 {
		a.logger.Info("photo plugins loaded", slog.Int("count", n))
		a.sink.Notify(func(c *store.Capture) {
			a.events.Go(plugin.Photo{
				ID:      c.ID,
				Path:    c.Path,
				Width:   c.Width,
				Height:  c.Height,
				TakenAt: c.TakenAt,
			})
		})
	}
}

// Start opens the camera and the detectors and starts the pump and render
// loop. A failure is returned as an *InitError and also kept for Err.
func (a *App) Start(ctx context.Context) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	running, initErr := a.running, a.initErr
	a.mu.Unlock()
	if running {
		return nil
	}
	if initErr != nil {
		return initErr
	}

	if err := a.camera.Open(); err != nil {
		return a.fail("camera", err)
	}
	if err := a.pool.Init(); err != nil {
		a.camera.Close()
		return a.fail("detectors", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.running = true
	a.mu.Unlock()
	a.pump.Mount()

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.loop.Run(runCtx)
	}()
	go func() {
		defer a.wg.Done()
		a.pump.Run(runCtx)
	}()

	a.loop.Request()
	a.logger.Info("capture pipeline started", logfields.State(a.machine.State().String()))
	return nil
}

func (a *App) fail(stage string, err error) error {
	initErr := &InitError{Stage: stage, Err: err}
	a.mu.Lock()
	a.initErr = initErr
	a.mu.Unlock()
	a.logger.Error("capture pipeline failed to start", slog.String("stage", stage), logfields.Error(err))
	return initErr
}

// Err returns the terminal initialization error, if any.
func (a *App) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initErr == nil {
		return nil
	}
	return a.initErr
}

// Retry clears a previous initialization failure and starts again.
func (a *App) Retry(ctx context.Context) error {
	a.mu.Lock()
	a.initErr = nil
	a.mu.Unlock()
	return a.Start(ctx)
}

// Stop tears the pipeline down: the camera stops first so no new frames
// arrive, then the detectors are released after the configured grace.
func (a *App) Stop() error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	cancel := a.cancel
	a.mu.Unlock()

	cancel()
	a.pump.Unmount()
	var errs []error
	if err := a.camera.Close(); err != nil {
		errs = append(errs, err)
	}
	a.wg.Wait()

	if err := a.pool.Dispose(a.cfg.Pump.DisposeGrace); err != nil {
		errs = append(errs, err)
	}
	a.pump.Wait()
	a.machine.Reset()

	a.logger.Info("capture pipeline stopped")
	return errors.Join(errs...)
}

// Close stops the pipeline and releases everything the App owns.
func (a *App) Close() error {
	err := a.Stop()
	a.events.Wait()
	a.machine.Close()
	a.gate.Close()
	a.loop.Close()
	a.loop.Frames().Close()
	return err
}

// Running reports whether the pipeline is up.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Reset returns the machine to IDLE.
func (a *App) Reset() error {
	if !a.Running() {
		return ErrNotInitialized
	}
	a.machine.Reset()
	return nil
}

// Machine returns the capture state machine.
func (a *App) Machine() *kiosk.Machine { return a.machine }

// Loop returns the render loop.
func (a *App) Loop() *render.Loop { return a.loop }

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera { return a.camera }

// Plugins returns the photo plugin manager.
func (a *App) Plugins() *plugin.Manager { return a.plugins }

// Store returns the capture store, which may be nil.
func (a *App) Store() *store.Store { return a.store }

// Snapshot returns the machine's current view.
func (a *App) Snapshot() kiosk.Snapshot { return a.machine.Snapshot() }

// FrozenFrame returns the frozen JPEG, or nil outside a capture.
func (a *App) FrozenFrame() []byte { return a.machine.FrozenFrame() }

// Latest returns the most recently rendered canvas frame.
func (a *App) Latest() (render.Rendered, bool) { return a.loop.Latest() }
