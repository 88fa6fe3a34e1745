package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/ayusman/posebooth/internal/logfields"
)

// Result is the outcome of one plugin run.
type Result struct {
	Plugin   string
	Response *Response
	Err      error
}

// Dispatcher delivers capture events to subscribed plugins, one at a time
// in name order.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	configs  map[string]json.RawMessage
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. configs holds per-plugin settings keyed
// by plugin name and is passed through as Request.Config.
func NewDispatcher(m *Manager, e *Executor, configs map[string]json.RawMessage, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{manager: m, executor: e, configs: configs, logger: logger}
}

// PhotoCaptured runs every plugin subscribed to EventPhotoCaptured. A failing
// plugin does not stop the others.
func (d *Dispatcher) PhotoCaptured(ctx context.Context, photo Photo) []Result {
	subs := d.manager.Subscribers(EventPhotoCaptured)
	results := make([]Result, 0, len(subs))
	for _, p := range subs {
		req := &Request{
			Event:  EventPhotoCaptured,
			Photo:  photo,
			Config: d.configs[p.Manifest.Name],
		}
		resp, err := d.executor.Execute(ctx, p, req)
		if err == nil && !resp.Success {
			err = errors.New(resp.Error)
		}

		logger := d.logger.With(slog.String("plugin", p.Manifest.Name), logfields.CaptureID(photo.ID))
		if err != nil {
			logger.Warn("photo plugin failed", logfields.Error(err))
		} else {
			logger.Info("photo plugin finished")
		}
		results = append(results, Result{Plugin: p.Manifest.Name, Response: resp, Err: err})
	}
	return results
}

// Go runs PhotoCaptured in the background. Wait blocks until all such runs
// are done.
func (d *Dispatcher) Go(photo Photo) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.PhotoCaptured(context.Background(), photo)
	}()
}

// Wait blocks until background runs started with Go have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
