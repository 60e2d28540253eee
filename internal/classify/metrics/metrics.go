package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the classification module.
type Metrics struct {
	// Classification outcomes by label and source
	ClassificationsTotal *prometheus.CounterVec

	// Remote escalation latency
	RemoteLatency prometheus.Histogram

	// Remote escalation failures (errors and timeouts)
	RemoteFailures prometheus.Counter
}

// New creates a Metrics instance with all classification metrics registered.
func New() *Metrics {
	return &Metrics{
		ClassificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sms_classify_results_total",
			Help: "Total classification results by label and source",
		}, []string{"label", "source"}),

		RemoteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sms_classify_remote_duration_seconds",
			Help:    "Duration of remote classification calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		}),

		RemoteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sms_classify_remote_failures_total",
			Help: "Total remote classification failures including timeouts",
		}),
	}
}

// IncrementResult records one classification outcome.
func (m *Metrics) IncrementResult(label, source string) {
	if m != nil {
		m.ClassificationsTotal.WithLabelValues(label, source).Inc()
	}
}

// ObserveRemoteLatency records the duration of a remote call.
func (m *Metrics) ObserveRemoteLatency(d time.Duration) {
	if m != nil {
		m.RemoteLatency.Observe(d.Seconds())
	}
}

// IncrementRemoteFailure records a failed remote call.
func (m *Metrics) IncrementRemoteFailure() {
	if m != nil {
		m.RemoteFailures.Inc()
	}
}
