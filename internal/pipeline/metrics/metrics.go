package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the message pipeline.
type Metrics struct {
	// Messages that completed the pipeline, by direction and label
	ProcessedTotal *prometheus.CounterVec

	// End-to-end pipeline latency, dominated by remote classification
	// when the heuristic escalates
	ProcessDuration prometheus.Histogram

	// Pending outbound messages re-admitted by the startup sweep
	RecoveredTotal prometheus.Counter
}

// New creates a Metrics instance with all pipeline metrics registered.
func New() *Metrics {
	return &Metrics{
		ProcessedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sms_pipeline_processed_total",
			Help: "Total messages processed by direction and classification label",
		}, []string{"direction", "label"}),

		ProcessDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sms_pipeline_duration_seconds",
			Help:    "End-to-end pipeline processing time",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 3, 5},
		}),

		RecoveredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sms_pipeline_recovered_total",
			Help: "Total pending outbound messages re-enqueued by the recovery sweep",
		}),
	}
}

// IncrementProcessed records one completed pipeline pass.
func (m *Metrics) IncrementProcessed(direction, label string) {
	if m != nil {
		m.ProcessedTotal.WithLabelValues(direction, label).Inc()
	}
}

// ObserveDuration records how long one pipeline pass took.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m != nil {
		m.ProcessDuration.Observe(d.Seconds())
	}
}

// IncrementRecovered records one message re-admitted at startup.
func (m *Metrics) IncrementRecovered() {
	if m != nil {
		m.RecoveredTotal.Inc()
	}
}
