// Package retry computes retry schedules for background deliveries.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Exponential doubles (by Multiplier) from Initial up to Max without jitter so
// schedules are reproducible.
type Exponential struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

func Default() Exponential {
	return Exponential{Initial: 30 * time.Second, Max: 30 * time.Minute, Multiplier: 2}
}

// Delay returns the wait before the given 1-based attempt.
func (e Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	b := backoff.NewExponentialBackOff()
	if e.Initial > 0 {
		b.InitialInterval = e.Initial
	}
	if e.Max > 0 {
		b.MaxInterval = e.Max
	}
	if e.Multiplier > 1 {
		b.Multiplier = e.Multiplier
	}
	b.RandomizationFactor = 0
	b.Reset()
	var delay time.Duration
	for i := 0; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}
