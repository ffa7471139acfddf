package services

import (
	"math/rand"
	"sync"
	"time"
)

// RateLimiter is a sliding-window request counter per user identity.
// Soft, in-process, and non-distributed: state does not survive a
// restart and is not shared across instances. That is a design
// boundary, not a bug; a fleet-wide limit belongs in a shared store.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	users  map[string][]time.Time
	now    func() time.Time
	chance func() float64
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		users:  make(map[string][]time.Time),
		now:    time.Now,
		chance: rand.Float64,
	}
}

// Allow reports whether userID may make a request now. An allowed call
// records its timestamp; a rejected call records nothing. Roughly one
// call in ten also sweeps stale state for every user, bounding memory
// without a background task.
func (rl *RateLimiter) Allow(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	log := rl.users[userID]
	recent := log[:0]
	for _, ts := range log {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= rl.limit {
		rl.users[userID] = recent
		return false
	}

	rl.users[userID] = append(recent, now)

	if rl.chance() < 0.1 {
		rl.sweepLocked(cutoff)
	}
	return true
}

// sweepLocked drops timestamps older than the window and removes users
// with empty histories. Caller holds the lock.
func (rl *RateLimiter) sweepLocked(cutoff time.Time) {
	for user, log := range rl.users {
		recent := log[:0]
		for _, ts := range log {
			if ts.After(cutoff) {
				recent = append(recent, ts)
			}
		}
		if len(recent) == 0 {
			delete(rl.users, user)
		} else {
			rl.users[user] = recent
		}
	}
}

// TrackedUsers reports how many users currently hold request history.
func (rl *RateLimiter) TrackedUsers() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.users)
}
