package webhook

import (
	"math/rand"
	"time"
)

// backoffDelay computes the wait before retry attempt n (1-indexed: the
// delay after the nth failed attempt). The result is clamped to the
// policy's MaxDelay; retries continue until attempts run out rather than
// abandoning the event once the raw delay would exceed the ceiling.
func backoffDelay(p RetryPolicy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var delay time.Duration
	switch p.BackoffStrategy {
	case BackoffFixed:
		delay = p.InitialDelay
	case BackoffLinear:
		delay = p.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		delay = shiftDelay(p.InitialDelay, attempt)
	case BackoffExponentialWithJitter:
		delay = shiftDelay(p.InitialDelay, attempt)
		if delay < p.MaxDelay {
			// Additive jitter up to 10%: jittered delay never drops below
			// the un-jittered exponential value.
			delay += time.Duration(rand.Int63n(int64(delay)/10 + 1))
		}
	default:
		delay = p.InitialDelay
	}

	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// shiftDelay doubles the initial delay attempt-1 times, saturating
// instead of overflowing.
func shiftDelay(initial time.Duration, attempt int) time.Duration {
	delay := initial
	for i := 1; i < attempt; i++ {
		if delay > time.Hour {
			return delay
		}
		delay *= 2
	}
	return delay
}
