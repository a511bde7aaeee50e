package channel

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricFramesProcessedTotal = "channel_frames_processed_total"
	MetricFramesSkippedTotal   = "channel_frames_skipped_total"
	MetricFrameErrorsTotal     = "channel_frame_errors_total"
)

// Metrics contains Prometheus metrics for the channel sync pipeline.
// All operations are thread-safe.
type Metrics struct {
	framesProcessed *prometheus.CounterVec
	framesSkipped   prometheus.Counter
	frameErrors     *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		framesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFramesProcessedTotal,
				Help: "Total number of feed frames applied, by kind",
			},
			[]string{"kind"},
		),
		framesSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricFramesSkippedTotal,
				Help: "Total number of feed frames skipped as stale or duplicate",
			},
		),
		frameErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFrameErrorsTotal,
				Help: "Total number of feed frame failures by error type",
			},
			[]string{"error_type"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.framesProcessed,
		m.framesSkipped,
		m.frameErrors,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncFramesProcessed increments the processed counter for a frame kind.
func (m *Metrics) IncFramesProcessed(kind string) {
	m.framesProcessed.WithLabelValues(kind).Inc()
}

// IncFramesSkipped increments the skipped counter.
func (m *Metrics) IncFramesSkipped() {
	m.framesSkipped.Inc()
}

// IncFrameErrors increments the error counter for an error type.
func (m *Metrics) IncFrameErrors(errorType string) {
	m.frameErrors.WithLabelValues(errorType).Inc()
}
