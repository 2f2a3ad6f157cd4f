package notion

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	// maxRetryAfter caps the pause applied after a 429.
	maxRetryAfter = 30 * time.Second
	// throttleWindow is how long a 429 keeps counting as consecutive.
	throttleWindow = 30 * time.Second
)

// RateLimiter is a token bucket that paces Notion API requests. It
// allows short bursts and refills at a steady rate, and honors
// server-requested pauses with exponential growth when 429s arrive
// back to back. Safe for concurrent use.
type RateLimiter struct {
	mu           sync.Mutex
	tokens       float64
	maxTokens    float64
	refillRate   float64
	lastRefill   time.Time
	pauseUntil   time.Time
	throttles    int
	lastThrottle time.Time
}

// NewRateLimiter allows requestsPerSecond on average with bursts up to
// burstSize.
func NewRateLimiter(requestsPerSecond float64, burstSize int) *RateLimiter {
	return &RateLimiter{
		tokens:     float64(burstSize),
		maxTokens:  float64(burstSize),
		refillRate: requestsPerSecond,
		lastRefill: time.Now(),
	}
}

// DefaultRateLimiter is tuned for Notion's published limit of roughly
// 3 requests per second.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(3.0, 10)
}

// Wait blocks until a request slot is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait := r.acquire()
		if wait == 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// acquire consumes a token when one is available, otherwise returns
// how long the caller should sleep before trying again.
func (r *RateLimiter) acquire() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Before(r.pauseUntil) {
		return r.pauseUntil.Sub(now)
	}

	elapsed := now.Sub(r.lastRefill).Seconds()
	r.tokens += elapsed * r.refillRate
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
	r.lastRefill = now

	if r.tokens < 1 {
		return time.Duration((1 - r.tokens) / r.refillRate * float64(time.Second))
	}
	r.tokens--
	return 0
}

// SetRetryAfter pauses all requests for the server-requested delay.
// Consecutive 429s double the pause (1x, 2x, 4x, 8x), capped at
// maxRetryAfter.
func (r *RateLimiter) SetRetryAfter(delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Sub(r.lastThrottle) < throttleWindow {
		r.throttles++
	} else {
		r.throttles = 1
	}
	r.lastThrottle = now

	scaled := delay * time.Duration(1<<min(r.throttles-1, 3))
	if scaled > maxRetryAfter {
		scaled = maxRetryAfter
	}
	r.pauseUntil = now.Add(scaled)
	// drain the bucket so the pause is not followed by a burst
	r.tokens = 0
}

// MarkRequestSuccess clears throttle history once the API has been
// healthy for a while.
func (r *RateLimiter) MarkRequestSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.throttles > 0 && time.Since(r.lastThrottle) > throttleWindow {
		r.throttles = 0
	}
}

// ParseRetryAfter reads a Retry-After header given either as
// delta-seconds or as an HTTP date. Unparseable or negative values
// fall back to one second.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return time.Second
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return time.Second
		}
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return time.Second
}
