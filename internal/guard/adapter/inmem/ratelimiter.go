package inmem

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chronoguard/internal/guard"
)

const staleThreshold = 10 * time.Minute

// RateLimiter enforces per-key token bucket limits, one bucket per key.
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter.
// perSecond is the refill rate, burst the maximum bucket capacity.
// clock is injectable for deterministic testing.
func NewRateLimiter(perSecond float64, burst int, clock func() time.Time) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		now:     clock,
		buckets: make(map[string]*bucket),
	}
}

// Allow checks whether a request identified by key should be allowed.
func (rl *RateLimiter) Allow(key string) guard.RateLimitResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now

	res := b.lim.ReserveN(now, 1)
	if !res.OK() {
		return guard.RateLimitResult{Allowed: false, RetryAfter: 1}
	}
	if delay := res.DelayFrom(now); delay > 0 {
		// Not allowed now; give the token back so the wait doesn't compound.
		res.CancelAt(now)
		return guard.RateLimitResult{
			Allowed:    false,
			RetryAfter: max(int(math.Ceil(delay.Seconds())), 1),
		}
	}
	return guard.RateLimitResult{Allowed: true}
}

// Cleanup removes stale buckets that haven't been seen recently.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > staleThreshold {
			delete(rl.buckets, key)
		}
	}
}

// BucketCount returns the number of active buckets (for testing).
func (rl *RateLimiter) BucketCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
