package app

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/aweso807-blip/syncb/internal/domain"
)

// RateLimiter is a sliding-window message limiter keyed by client identity.
// A zero or negative limit disables it.
type RateLimiter struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	history  map[domain.ClientID][]time.Time
	limit    int
	interval time.Duration
}

func NewRateLimiter(clock clockwork.Clock, limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		clock:    clock,
		history:  make(map[domain.ClientID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *RateLimiter) Allow(id domain.ClientID) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[id]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[id] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[id] = fresh
	return true
}

// Forget drops a client's window, e.g. when its session ends.
func (rl *RateLimiter) Forget(id domain.ClientID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, id)
}
