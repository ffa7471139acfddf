package services

import (
	"testing"
	"time"
)

func newTestLimiter(limit int, window time.Duration) (*RateLimiter, *time.Time) {
	rl := NewRateLimiter(limit, window)
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	rl.chance = func() float64 { return 1 } // no probabilistic sweeps
	return rl, &clock
}

func TestRateLimiterBurst(t *testing.T) {
	const limit = 10
	rl, clock := newTestLimiter(limit, time.Minute)

	for i := 0; i < limit; i++ {
		*clock = clock.Add(50 * time.Millisecond)
		if !rl.Allow("alice") {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
	if rl.Allow("alice") {
		t.Fatal("call 11 within the window should be rejected")
	}

	// Another user is unaffected.
	if !rl.Allow("bob") {
		t.Fatal("a different user should not be limited")
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	rl, clock := newTestLimiter(10, time.Minute)

	for i := 0; i < 10; i++ {
		rl.Allow("alice")
	}
	if rl.Allow("alice") {
		t.Fatal("limit reached, call should be rejected")
	}

	*clock = clock.Add(61 * time.Second)
	if !rl.Allow("alice") {
		t.Fatal("call after the window elapsed should be allowed")
	}
}

func TestRateLimiterRejectionNotRecorded(t *testing.T) {
	rl, clock := newTestLimiter(2, time.Minute)

	rl.Allow("alice")
	rl.Allow("alice")
	for i := 0; i < 5; i++ {
		if rl.Allow("alice") {
			t.Fatal("over-limit call allowed")
		}
	}

	// Only the two allowed timestamps age out; the five rejections
	// must not have extended the window.
	*clock = clock.Add(61 * time.Second)
	if !rl.Allow("alice") {
		t.Fatal("rejected calls should not add timestamps")
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl, clock := newTestLimiter(10, time.Minute)
	rl.chance = func() float64 { return 0 } // sweep on every call

	rl.Allow("alice")
	rl.Allow("bob")
	if rl.TrackedUsers() != 2 {
		t.Fatalf("tracked users = %d, want 2", rl.TrackedUsers())
	}

	*clock = clock.Add(2 * time.Minute)
	rl.Allow("carol")
	if rl.TrackedUsers() != 1 {
		t.Fatalf("stale users should be swept, tracked = %d", rl.TrackedUsers())
	}
}
