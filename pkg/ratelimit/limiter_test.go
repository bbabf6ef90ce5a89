package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestSlidingWindow_AdmitsUpToMax(t *testing.T) {
	sw := NewSlidingWindow(3, time.Second)

	for i := 0; i < 3; i++ {
		if !sw.Allow() {
			t.Fatalf("Allow() #%d = false, want true", i+1)
		}
	}
	if sw.Allow() {
		t.Error("Allow() over budget = true, want false")
	}
	if got := sw.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}
}

func TestSlidingWindow_RecoversAfterWindow(t *testing.T) {
	base := time.Now()
	sw := NewSlidingWindow(2, time.Second)
	sw.now = func() time.Time { return base }

	sw.Allow()
	sw.Allow()
	if sw.Allow() {
		t.Fatal("Allow() at capacity = true, want false")
	}

	// Advance past the window; the budget fully drains.
	sw.now = func() time.Time { return base.Add(1100 * time.Millisecond) }
	if !sw.Allow() {
		t.Error("Allow() after window elapsed = false, want true")
	}
}

func TestSlidingWindow_PartialDrain(t *testing.T) {
	base := time.Now()
	sw := NewSlidingWindow(2, time.Second)

	sw.now = func() time.Time { return base }
	sw.Allow()
	sw.now = func() time.Time { return base.Add(600 * time.Millisecond) }
	sw.Allow()

	// First admission has aged out, second has not.
	sw.now = func() time.Time { return base.Add(1100 * time.Millisecond) }
	if !sw.Allow() {
		t.Fatal("Allow() after partial drain = false, want true")
	}
	if sw.Allow() {
		t.Error("Allow() with one slot drained = true, want false")
	}
}

func TestTokenBucket_BurstThenRefill(t *testing.T) {
	base := time.Now()
	tb := NewTokenBucket(5, time.Second)
	tb.lastRefill = base
	tb.now = func() time.Time { return base }

	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Fatalf("Allow() #%d = false, want true", i+1)
		}
	}
	if tb.Allow() {
		t.Fatal("Allow() with empty bucket = true, want false")
	}

	// 5 tokens/sec: after 400ms two tokens are back.
	tb.now = func() time.Time { return base.Add(400 * time.Millisecond) }
	if !tb.Allow() {
		t.Error("Allow() after refill = false, want true")
	}
	if !tb.Allow() {
		t.Error("second Allow() after refill = false, want true")
	}
	if tb.Allow() {
		t.Error("third Allow() after partial refill = true, want false")
	}
}

func TestTokenBucket_CappedAtCapacity(t *testing.T) {
	base := time.Now()
	tb := NewTokenBucket(2, time.Second)
	tb.lastRefill = base

	// A long idle period never accumulates more than capacity.
	tb.now = func() time.Time { return base.Add(time.Hour) }
	if got := tb.Remaining(); got != 2 {
		t.Errorf("Remaining() after long idle = %d, want 2", got)
	}
}

func TestNew_StrategySelection(t *testing.T) {
	tests := []struct {
		strategy Strategy
		wantType string
	}{
		{StrategySlidingWindow, "*ratelimit.SlidingWindow"},
		{"", "*ratelimit.SlidingWindow"},
		{StrategyTokenBucket, "*ratelimit.TokenBucket"},
	}
	for _, tt := range tests {
		l, err := New(Config{MaxRequests: 10, Window: time.Second, Strategy: tt.strategy})
		if err != nil {
			t.Fatalf("New(%q) error = %v", tt.strategy, err)
		}
		switch tt.wantType {
		case "*ratelimit.SlidingWindow":
			if _, ok := l.(*SlidingWindow); !ok {
				t.Errorf("New(%q) = %T, want SlidingWindow", tt.strategy, l)
			}
		case "*ratelimit.TokenBucket":
			if _, ok := l.(*TokenBucket); !ok {
				t.Errorf("New(%q) = %T, want TokenBucket", tt.strategy, l)
			}
		}
	}

	if _, err := New(Config{Strategy: "leaky_bucket"}); err == nil {
		t.Error("New(unknown strategy) error = nil, want error")
	}
}

func TestSlidingWindow_Concurrent(t *testing.T) {
	sw := NewSlidingWindow(50, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sw.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want exactly 50", allowed)
	}
}
