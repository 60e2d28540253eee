package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for event emission.
type Metrics struct {
	EmittedTotal *prometheus.CounterVec
	DroppedTotal prometheus.Counter
	SinkFailures prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		EmittedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sms_events_emitted_total",
			Help: "Total lifecycle events emitted by action",
		}, []string{"action"}),

		DroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sms_events_dropped_total",
			Help: "Total lifecycle events dropped because the buffer was full",
		}),

		SinkFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sms_events_sink_failures_total",
			Help: "Total sink publish failures",
		}),
	}
}

func (m *Metrics) incrementEmitted(action Action) {
	if m != nil {
		m.EmittedTotal.WithLabelValues(string(action)).Inc()
	}
}

func (m *Metrics) incrementDropped() {
	if m != nil {
		m.DroppedTotal.Inc()
	}
}

func (m *Metrics) incrementSinkFailure() {
	if m != nil {
		m.SinkFailures.Inc()
	}
}
