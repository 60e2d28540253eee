package dispatch

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy shapes the wait between attempts: geometric growth from Base
// with ±Jitter randomization so synchronized retries spread out. Jitter 0
// makes delays exact, which scheduling tests rely on.
type RetryPolicy struct {
	Base   time.Duration
	Factor float64
	Jitter float64
}

// DefaultRetryPolicy returns the dispatch defaults: 1s base, doubling,
// ±50% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Base:   time.Second,
		Factor: 2,
		Jitter: 0.5,
	}
}

// Delay returns the wait after the given 1-based attempt number.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.Base
	bo.Multiplier = p.Factor
	bo.RandomizationFactor = p.Jitter
	bo.MaxElapsedTime = 0
	bo.Reset()

	delay := bo.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = bo.NextBackOff()
	}
	return delay
}
