package capture

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/posebooth/internal/body"
	"github.com/ayusman/posebooth/internal/kiosk"
	"github.com/ayusman/posebooth/internal/logfields"
)

// Pipeline defaults.
const (
	DefaultAspect  = 9.0 / 16.0
	DefaultPadding = 40
	DefaultUpscale = 1.5
	DefaultQuality = 92
)

// PipelineConfig configures the frozen-frame and photo pipeline.
type PipelineConfig struct {
	// Aspect is the frozen frame's width/height ratio.
	Aspect float64 `yaml:"aspect"`
	// Padding is added around the body rectangle, in video pixels.
	Padding int `yaml:"padding"`
	// Upscale multiplies the cropped photo's size.
	Upscale float64 `yaml:"upscale"`
	// Quality is the JPEG quality, 1-100.
	Quality int `yaml:"quality"`
}

// DefaultPipelineConfig returns the 9:16, 1.5x defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Aspect:  DefaultAspect,
		Padding: DefaultPadding,
		Upscale: DefaultUpscale,
		Quality: DefaultQuality,
	}
}

// Pipeline reads raw camera frames, never the rendered overlay. It implements
// kiosk.Shutter.
type Pipeline struct {
	camera Camera
	canvas image.Point
	cfg    PipelineConfig
	logger *slog.Logger
	now    func() time.Time
}

var _ kiosk.Shutter = (*Pipeline)(nil)

// NewPipeline creates a pipeline. canvas is the working-canvas size body
// rectangles are expressed in.
func NewPipeline(camera Camera, canvas image.Point, cfg PipelineConfig) *Pipeline {
	def := DefaultPipelineConfig()
	if cfg.Aspect <= 0 {
		cfg.Aspect = def.Aspect
	}
	if cfg.Padding < 0 {
		cfg.Padding = 0
	}
	if cfg.Upscale <= 0 {
		cfg.Upscale = def.Upscale
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = def.Quality
	}
	return &Pipeline{
		camera: camera,
		canvas: canvas,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
}

// Freeze grabs a raw frame, crops it to the configured aspect and encodes it.
func (p *Pipeline) Freeze() ([]byte, error) {
	frame, err := p.camera.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	crop := CropToFit(image.Pt(frame.Cols(), frame.Rows()), p.cfg.Aspect)
	if crop.Empty() {
		return nil, ErrEmptyCrop
	}
	region := frame.Region(crop)
	defer region.Close()

	return p.encode(region)
}

// Capture grabs a raw frame, crops it to rect and upscales the result.
func (p *Pipeline) Capture(rect body.Rect) (*kiosk.Photo, error) {
	frame, err := p.camera.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	crop, err := BodyCrop(rect, p.canvas, image.Pt(frame.Cols(), frame.Rows()), p.cfg.Padding)
	if err != nil {
		return nil, err
	}
	region := frame.Region(crop)
	defer region.Close()

	size := image.Pt(
		int(math.Round(float64(crop.Dx())*p.cfg.Upscale)),
		int(math.Round(float64(crop.Dy())*p.cfg.Upscale)),
	)
	out := gocv.NewMat()
	defer out.Close()
	gocv.Resize(region, &out, size, 0, 0, gocv.InterpolationCubic)

	data, err := p.encode(out)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	p.logger.Debug("photo cropped", logfields.CaptureID(id),
		slog.String("crop", crop.String()), slog.String("size", size.String()))

	return &kiosk.Photo{
		ID:      id,
		JPEG:    data,
		Width:   size.X,
		Height:  size.Y,
		Crop:    crop,
		TakenAt: p.now(),
	}, nil
}

func (p *Pipeline) encode(mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, p.cfg.Quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}

// EncodeJPEG encodes mat at the default quality.
func EncodeJPEG(mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}
