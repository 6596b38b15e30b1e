package ratelimit

import (
	"sync"
	"time"
)

// bucket tracks the token state for a single user.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter implements a token-bucket rate limiter keyed by user ID. Every
// user gets the same rate; a rate of zero disables limiting entirely.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    int
	window  time.Duration
	now     func() time.Time // injectable clock for testing
}

// New creates a Limiter that allows rate requests per window.
func New(rate int, window time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		window:  window,
		now:     time.Now,
	}
}

// Enabled reports whether the limiter enforces a limit at all.
func (l *Limiter) Enabled() bool {
	return l.rate > 0
}

// getBucket returns the bucket for key, creating one if it doesn't exist.
// Must be called with l.mu held.
func (l *Limiter) getBucket(key string) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{
			tokens:     float64(l.rate),
			lastRefill: l.now(),
		}
		l.buckets[key] = b
	}
	return b
}

// refill adds tokens to the bucket based on elapsed time since the last refill.
// Must be called with l.mu held.
func (l *Limiter) refill(b *bucket) {
	now := l.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	// Tokens accumulate at rate/window per second.
	refillRate := float64(l.rate) / l.window.Seconds()
	b.tokens += elapsed * refillRate
	if b.tokens > float64(l.rate) {
		b.tokens = float64(l.rate)
	}
	b.lastRefill = now
}

// Allow checks whether a request from key is permitted. Returns true and
// consumes one token when allowed, false when the limit is exceeded.
func (l *Limiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getBucket(key)
	l.refill(b)

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Status returns the current rate-limit state for key. limit is the maximum
// number of tokens, remaining is the number of tokens left (floored to int),
// and resetAt is the time at which the bucket will be fully replenished.
func (l *Limiter) Status(key string) (limit int, remaining int, resetAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getBucket(key)
	l.refill(b)

	limit = l.rate
	remaining = int(b.tokens)
	if remaining < 0 {
		remaining = 0
	}

	// Time until full replenishment from current level.
	deficit := float64(l.rate) - b.tokens
	if deficit <= 0 {
		resetAt = l.now()
	} else {
		refillRate := float64(l.rate) / l.window.Seconds()
		resetAt = l.now().Add(time.Duration(deficit/refillRate*1e9) * time.Nanosecond)
	}
	return
}
