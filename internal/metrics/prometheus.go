package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg             *prom.Registry
	transitions     *prom.CounterVec
	frames          *prom.CounterVec
	detectorErrors  *prom.CounterVec
	redraws         prom.Counter
	captures        *prom.CounterVec
	captureDuration prom.Histogram
}

// NewPrometheusRecorder constructs and registers the engine metrics on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		transitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "posebooth",
			Name:      "state_transitions_total",
			Help:      "Capture state machine transitions",
		}, []string{"from", "to"}),
		frames: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "posebooth",
			Name:      "frames_total",
			Help:      "Camera frames pumped, by detector mode",
		}, []string{"mode"}),
		detectorErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "posebooth",
			Name:      "detector_errors_total",
			Help:      "Swallowed per-frame detector failures",
		}, []string{"detector"}),
		redraws: prom.NewCounter(prom.CounterOpts{
			Namespace: "posebooth",
			Name:      "redraws_total",
			Help:      "Coalesced overlay redraws",
		}),
		captures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "posebooth",
			Name:      "captures_total",
			Help:      "Capture pipeline runs by outcome",
		}, []string{"result"}),
		captureDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "posebooth",
			Name:      "capture_duration_seconds",
			Help:      "Time spent reading, cropping and encoding the final photo",
			Buckets:   prom.DefBuckets,
		}),
	}
	reg.MustRegister(pr.transitions, pr.frames, pr.detectorErrors, pr.redraws, pr.captures, pr.captureDuration)
	return pr
}

func (p *PrometheusRecorder) IncTransition(from, to string) {
	p.transitions.WithLabelValues(from, to).Inc()
}

func (p *PrometheusRecorder) IncFrame(mode string) {
	p.frames.WithLabelValues(mode).Inc()
}

func (p *PrometheusRecorder) IncDetectorError(detector string) {
	p.detectorErrors.WithLabelValues(detector).Inc()
}

func (p *PrometheusRecorder) IncRedraw() {
	p.redraws.Inc()
}

func (p *PrometheusRecorder) ObserveCapture(d time.Duration, success bool) {
	result := "success"
	if !success {
		result = "failed"
	}
	p.captures.WithLabelValues(result).Inc()
	p.captureDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}
