package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ayusman/posebooth/internal/kiosk"
	"github.com/ayusman/posebooth/internal/logfields"
	"github.com/ayusman/posebooth/internal/store"
)

// Sink keeps completed photos: the JPEG on disk and a row in the store.
type Sink struct {
	dir      string
	captures *store.CaptureRepository
	logger   *slog.Logger
	notify   func(*store.Capture)
}

// NewSink writes photos under dir. captures may be nil to skip the database.
func NewSink(dir string, captures *store.CaptureRepository, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{dir: dir, captures: captures, logger: logger}
}

// Notify registers fn to run after each successful Handle.
func (s *Sink) Notify(fn func(*store.Capture)) {
	s.notify = fn
}

// Save writes the photo and records it.
func (s *Sink) Save(p kiosk.Photo) (*store.Capture, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}
	path := filepath.Join(s.dir, p.ID+".jpg")
	if err := os.WriteFile(path, p.JPEG, 0o644); err != nil {
		return nil, fmt.Errorf("write photo: %w", err)
	}

	c := &store.Capture{
		ID:        p.ID,
		Path:      path,
		Width:     p.Width,
		Height:    p.Height,
		Crop:      p.Crop,
		SizeBytes: int64(len(p.JPEG)),
		TakenAt:   p.TakenAt,
	}
	if s.captures != nil {
		if err := s.captures.Create(c); err != nil {
			return nil, fmt.Errorf("record capture: %w", err)
		}
	}
	return c, nil
}

// Handle is the machine's capture callback. Failures are logged; the photo
// cycle itself has already completed.
func (s *Sink) Handle(p kiosk.Photo) {
	c, err := s.Save(p)
	if err != nil {
		s.logger.Error("failed to save photo", logfields.CaptureID(p.ID), logfields.Error(err))
		return
	}
	s.logger.Info("photo saved", logfields.CaptureID(c.ID), logfields.Path(c.Path))
	if s.notify != nil {
		s.notify(c)
	}
}
