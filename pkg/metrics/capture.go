package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CaptureMetrics records bulk-capture sweep outcomes.
type CaptureMetrics struct {
	attempted *prometheus.CounterVec
	captured  prometheus.Counter
}

// NewCaptureMetrics registers the sweep metrics on the provided registerer.
func NewCaptureMetrics(reg prometheus.Registerer) *CaptureMetrics {
	if reg == nil {
		return &CaptureMetrics{}
	}
	attempted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "capture_attempts_total",
		Help: "Bulk-capture attempts by outcome.",
	}, []string{"outcome"})
	captured := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "capture_amount_cents_total",
		Help: "Total cents captured by the bulk-capture sweep.",
	})
	reg.MustRegister(attempted, captured)
	return &CaptureMetrics{
		attempted: attempted,
		captured:  captured,
	}
}

// IncOutcome increments the attempt counter for the given outcome label.
func (c *CaptureMetrics) IncOutcome(outcome string) {
	if c == nil || c.attempted == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	c.attempted.WithLabelValues(outcome).Inc()
}

// AddCapturedCents adds to the running captured-amount counter.
func (c *CaptureMetrics) AddCapturedCents(cents int64) {
	if c == nil || c.captured == nil || cents <= 0 {
		return
	}
	c.captured.Add(float64(cents))
}
