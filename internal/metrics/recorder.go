// Package metrics defines observability hooks for the capture engine.
package metrics

import "time"

// Recorder receives engine events. Implementations may forward to Prometheus
// or drop them; NoopRecorder is the default when metrics are not configured.
type Recorder interface {
	IncTransition(from, to string)
	IncFrame(mode string)
	IncDetectorError(detector string)
	IncRedraw()
	ObserveCapture(d time.Duration, success bool)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncTransition(string, string)         {}
func (NoopRecorder) IncFrame(string)                      {}
func (NoopRecorder) IncDetectorError(string)              {}
func (NoopRecorder) IncRedraw()                           {}
func (NoopRecorder) ObserveCapture(time.Duration, bool)   {}
