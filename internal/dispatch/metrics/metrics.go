package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the dispatch queue.
type Metrics struct {
	// Gateway attempts by result: accepted, rejected, transient,
	// short_circuit
	AttemptsTotal *prometheus.CounterVec

	// Terminal job outcomes: done, dead
	JobsTotal *prometheus.CounterVec

	// Active jobs (queued + in flight)
	QueueDepth prometheus.Gauge

	// Circuit breaker transitions: open, closed
	BreakerTransitions *prometheus.CounterVec
}

// New creates a Metrics instance with all dispatch metrics registered.
func New() *Metrics {
	return &Metrics{
		AttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sms_dispatch_attempts_total",
			Help: "Total gateway send attempts by result",
		}, []string{"result"}),

		JobsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sms_dispatch_jobs_total",
			Help: "Total send jobs reaching a terminal state",
		}, []string{"outcome"}),

		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sms_dispatch_queue_depth",
			Help: "Send jobs currently queued or in flight",
		}),

		BreakerTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sms_dispatch_breaker_transitions_total",
			Help: "Gateway circuit breaker transitions",
		}, []string{"state"}),
	}
}

// IncrementAttempt records one gateway send attempt.
func (m *Metrics) IncrementAttempt(result string) {
	if m != nil {
		m.AttemptsTotal.WithLabelValues(result).Inc()
	}
}

// IncrementJob records one terminal job outcome.
func (m *Metrics) IncrementJob(outcome string) {
	if m != nil {
		m.JobsTotal.WithLabelValues(outcome).Inc()
	}
}

// SetQueueDepth records the current number of active jobs.
func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

// IncrementBreakerTransition records a circuit state change.
func (m *Metrics) IncrementBreakerTransition(state string) {
	if m != nil {
		m.BreakerTransitions.WithLabelValues(state).Inc()
	}
}
