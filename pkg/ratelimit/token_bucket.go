package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket admits requests while tokens are available. The bucket
// starts full at max tokens and refills continuously at max tokens per
// window, so short bursts up to the budget are allowed while the average
// rate stays at the configured limit.
//
// TokenBucket is safe for concurrent use.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time

	// now is injectable for tests.
	now func() time.Time
}

// NewTokenBucket creates a token bucket limiter admitting at most max
// requests per window on average, with bursts up to max.
func NewTokenBucket(max int, window time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(max),
		tokens:     float64(max),
		refillRate: float64(max) / window.Seconds(),
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Allow reports whether a request may proceed, consuming one token when
// it does.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// Remaining returns the number of whole tokens currently available.
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	return int(tb.tokens)
}

// refillLocked adds tokens for the elapsed time since the last refill,
// capped at capacity. Caller must hold the lock.
func (tb *TokenBucket) refillLocked() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}

	tb.tokens += elapsed.Seconds() * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}
