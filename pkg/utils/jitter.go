package utils

import (
	"math/rand"
	"time"
)

// Jitter adds random jitter to a duration.
// The jitter is applied as a percentage of the base duration.
//
// Example: Jitter(time.Minute, 0.1) returns 54s-66s (±10%)
func Jitter(base time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return base
	}
	if fraction > 1 {
		fraction = 1
	}
	// Generate jitter in range [-fraction, +fraction]
	jitterRange := float64(base) * fraction
	jitter := (rand.Float64()*2 - 1) * jitterRange
	return base + time.Duration(jitter)
}

// JitterUp adds random jitter that only increases the duration.
// Used to space out chunk retries without ever shrinking the delay.
//
// Example: JitterUp(time.Minute, 0.25) returns 60s-75s (+0-25%)
func JitterUp(base time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return base
	}
	jitter := rand.Float64() * float64(base) * fraction
	return base + time.Duration(jitter)
}

// RetryDelays returns the increasing delay sequence used between attempts
// of a failed chunk transfer: base, 2*base, 4*base, ... capped at max,
// each with up to +25% jitter.
func RetryDelays(base, max time.Duration, attempts int) []time.Duration {
	delays := make([]time.Duration, 0, attempts)
	d := base
	for i := 0; i < attempts; i++ {
		if d > max {
			d = max
		}
		delays = append(delays, JitterUp(d, 0.25))
		d *= 2
	}
	return delays
}
