package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow admits requests as long as fewer than max admissions
// happened within the trailing window.
//
// It keeps a log of admission timestamps; entries older than the window
// are pruned on each call. Memory is bounded by the admission budget,
// which for per-destination limits is small. Unlike a fixed window there
// is no reset spike: the budget drains continuously as old admissions
// age out.
//
// SlidingWindow is safe for concurrent use.
type SlidingWindow struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	log    []time.Time

	// now is injectable for tests.
	now func() time.Time
}

// NewSlidingWindow creates a sliding window limiter admitting at most max
// requests per window.
func NewSlidingWindow(max int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		max:    max,
		window: window,
		log:    make([]time.Time, 0, max),
		now:    time.Now,
	}
}

// Allow reports whether a request may proceed, consuming one admission
// slot when it does.
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.pruneLocked(now)

	if len(sw.log) >= sw.max {
		return false
	}
	sw.log = append(sw.log, now)
	return true
}

// Remaining returns the number of admissions left in the current window.
func (sw *SlidingWindow) Remaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.pruneLocked(sw.now())
	return sw.max - len(sw.log)
}

// pruneLocked drops admissions older than the window. Caller must hold
// the lock.
func (sw *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-sw.window)

	keep := 0
	for _, t := range sw.log {
		if t.After(cutoff) {
			break
		}
		keep++
	}
	if keep > 0 {
		sw.log = append(sw.log[:0], sw.log[keep:]...)
	}
}
