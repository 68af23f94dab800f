package gateway

import (
	"math"
	"math/rand"
	"time"
)

// Delay returns the reconnect delay for attempt N (1-based).
//
// The stock policy is a flat delay: every attempt waits InitialDelay. Growth
// only engages when Multiplier exceeds 1, compounding per attempt until
// MaxDelay caps it. Jitter, when enabled, scales the result by a random
// factor in [0.5, 1.5).
func (p RetryPolicy) Delay(attempt int, rng *rand.Rand) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}
	d := float64(p.InitialDelay)
	if p.Multiplier > 1.0 && attempt > 1 {
		d *= math.Pow(p.Multiplier, float64(attempt-1))
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		f := 0.5
		if rng != nil {
			f += rng.Float64()
		}
		d *= f
	}
	return time.Duration(d)
}
