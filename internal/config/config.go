// Package config loads the kiosk configuration from YAML, .env files and
// POSEBOOTH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/posebooth/internal/capture"
	"github.com/ayusman/posebooth/internal/detector"
	"github.com/ayusman/posebooth/internal/gesture"
	"github.com/ayusman/posebooth/internal/kiosk"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "POSEBOOTH_"

// Config is the full kiosk configuration.
type Config struct {
	Camera   capture.CameraConfig `yaml:"camera"`
	Canvas   CanvasConfig         `yaml:"canvas"`
	Detector detector.Config      `yaml:"detector"`
	Timing   kiosk.Timing         `yaml:"timing"`
	Gesture  gesture.Thresholds   `yaml:"gesture"`
	Capture  CaptureConfig        `yaml:"capture"`
	Motion   MotionConfig         `yaml:"motion"`
	Pump     PumpConfig           `yaml:"pump"`
	Render   RenderConfig         `yaml:"render"`
	Server   ServerConfig         `yaml:"server"`
	Store    StoreConfig          `yaml:"store"`
	Plugins  PluginsConfig        `yaml:"plugins"`
}

// CanvasConfig is the working canvas detectors and overlays use.
type CanvasConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Size returns the canvas as a point.
func (c CanvasConfig) Size() image.Point { return image.Pt(c.Width, c.Height) }

// CaptureConfig configures the crop pipeline and where photos are kept.
type CaptureConfig struct {
	capture.PipelineConfig `yaml:",inline"`
	OutputDir              string `yaml:"output_dir"`
}

// MotionConfig configures the idle motion gate. Threshold 0 disables it.
type MotionConfig struct {
	Threshold float64       `yaml:"threshold"`
	Hold      time.Duration `yaml:"hold"`
}

// PumpConfig configures the frame pump.
type PumpConfig struct {
	FPS int `yaml:"fps"`
	// BodyEvery runs the pose detector on every Nth hand callback during gesture states.
	BodyEvery int `yaml:"body_every"`
	// DisposeGrace is how long in-flight detector calls get before release.
	DisposeGrace time.Duration `yaml:"dispose_grace"`
}

// RenderConfig configures the render loop.
type RenderConfig struct {
	MaxFPS int `yaml:"max_fps"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// StoreConfig configures the capture history database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// PluginsConfig configures the post-capture photo plugins.
type PluginsConfig struct {
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout"`
	// Settings is handed to each plugin, keyed by plugin name.
	Settings map[string]map[string]any `yaml:"settings"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Camera:   capture.DefaultCameraConfig(),
		Canvas:   CanvasConfig{Width: 640, Height: 480},
		Detector: detector.DefaultConfig(),
		Timing:   kiosk.DefaultTiming(),
		Gesture:  gesture.DefaultThresholds(),
		Capture: CaptureConfig{
			PipelineConfig: capture.DefaultPipelineConfig(),
			OutputDir:      "captures",
		},
		Motion: MotionConfig{Hold: 5 * time.Second},
		Pump: PumpConfig{
			FPS:          30,
			BodyEvery:    5,
			DisposeGrace: 200 * time.Millisecond,
		},
		Render: RenderConfig{MaxFPS: 30},
		Server: ServerConfig{Addr: "localhost:8080", StaticDir: "web"},
		Store:  StoreConfig{Path: "posebooth.db"},
		Plugins: PluginsConfig{
			Dir:     "plugins",
			Timeout: 10 * time.Second,
		},
	}
}

// Load reads .env files, the YAML file at path (optional when empty) and the
// environment overrides, in that order, on top of the defaults.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(".env", ".env.local"); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFiles loads each file that exists. Variables already set win.
func loadEnvFiles(names ...string) error {
	for _, name := range names {
		err := godotenv.Load(name)
		switch {
		case err == nil:
			slog.Debug("loaded environment file", slog.String("path", name))
		case errors.Is(err, fs.ErrNotExist):
		default:
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"ADDR":             &c.Server.Addr,
		"STATIC_DIR":       &c.Server.StaticDir,
		"STORE_PATH":       &c.Store.Path,
		"OUTPUT_DIR":       &c.Capture.OutputDir,
		"PYTHON":           &c.Detector.Python,
		"MEDIAPIPE_SCRIPT": &c.Detector.Script,
		"PLUGIN_DIR":       &c.Plugins.Dir,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CAMERA_DEVICE": &c.Camera.Device,
		"CAMERA_FPS":    &c.Camera.FPS,
		"BODY_EVERY":    &c.Pump.BodyEvery,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "MOTION_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sMOTION_THRESHOLD: %w", EnvPrefix, err)
		}
		c.Motion.Threshold = f
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Canvas.Width > 0 && c.Canvas.Height > 0, "canvas size must be positive, got %dx%d", c.Canvas.Width, c.Canvas.Height)
	check(c.Camera.Device >= 0, "camera.device must be >= 0")
	check(c.Pump.FPS > 0, "pump.fps must be > 0")
	check(c.Pump.BodyEvery > 0, "pump.body_every must be > 0")
	check(c.Pump.DisposeGrace >= 0, "pump.dispose_grace must be >= 0")
	check(c.Render.MaxFPS > 0, "render.max_fps must be > 0")

	t := c.Timing
	check(t.BodyConfirm > 0, "timing.body_confirm must be > 0")
	check(t.BodyLoss > 0, "timing.body_loss must be > 0")
	check(t.GestureHold > 0, "timing.gesture_hold must be > 0")
	check(t.GestureGrace > 0 && t.GestureGrace < t.GestureHold, "timing.gesture_grace must be > 0 and shorter than gesture_hold")
	check(t.CountdownFrom > 0, "timing.countdown_from must be > 0")
	check(t.CountdownStep > 0, "timing.countdown_step must be > 0")
	check(t.PresentationDelay >= 0, "timing.presentation_delay must be >= 0")

	g := c.Gesture
	check(g.Confidence >= 0 && g.Confidence <= 100, "gesture.confidence must be within 0-100")
	check(g.MinHandSize > 0, "gesture.min_hand_size must be > 0")

	check(c.Capture.Aspect > 0, "capture.aspect must be > 0")
	check(c.Capture.Upscale > 0, "capture.upscale must be > 0")
	check(c.Capture.Quality > 0 && c.Capture.Quality <= 100, "capture.quality must be within 1-100")
	check(c.Capture.OutputDir != "", "capture.output_dir is required")

	check(c.Motion.Threshold >= 0, "motion.threshold must be >= 0")
	check(c.Motion.Threshold == 0 || c.Motion.Hold > 0, "motion.hold must be > 0 when motion gating is on")

	check(c.Detector.MaxHands > 0, "detector.max_hands must be > 0")
	check(c.Server.Addr != "", "server.addr is required")
	check(c.Store.Path != "", "store.path is required")
	check(c.Plugins.Timeout > 0, "plugins.timeout must be > 0")

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
