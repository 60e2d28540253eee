package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the recipient cache.
type Metrics struct {
	// Lookup outcomes: hit or miss
	LookupsTotal *prometheus.CounterVec

	// Explicit invalidations via version bump
	VersionBumpsTotal prometheus.Counter
}

// New creates a Metrics instance with all cache metrics registered.
func New() *Metrics {
	return &Metrics{
		LookupsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sms_recipient_cache_lookups_total",
			Help: "Total recipient cache lookups by outcome",
		}, []string{"outcome"}),

		VersionBumpsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sms_recipient_cache_version_bumps_total",
			Help: "Total schema version bumps invalidating the cache",
		}),
	}
}

// IncrementLookup records one lookup outcome.
func (m *Metrics) IncrementLookup(outcome string) {
	if m != nil {
		m.LookupsTotal.WithLabelValues(outcome).Inc()
	}
}

// IncrementVersionBump records one cache-wide invalidation.
func (m *Metrics) IncrementVersionBump() {
	if m != nil {
		m.VersionBumpsTotal.Inc()
	}
}
