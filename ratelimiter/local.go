package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrWaitExceeded is returned by WaitAndConsume when the required wait is longer than maxWait.
	ErrWaitExceeded = errors.New("rate limit wait exceeds max wait")

	// ErrExceedsCapacity is returned by WaitAndConsume when a call needs more tokens than
	// the bucket ever holds.
	ErrExceedsCapacity = errors.New("request exceeds rate limit capacity")
)

// RateLimiter combines a prompt-token bucket and a request bucket, both refilled per minute.
type RateLimiter struct {
	TokensBucket   *TokenBucket
	RequestsBucket *TokenBucket

	mu sync.Mutex
}

// Ensure RateLimiter implements Limiter.
var _ Limiter = (*RateLimiter)(nil)

// New creates a limiter allowing tokensPerMinute prompt tokens and requestsPerMinute
// requests. A non-positive value leaves that dimension unlimited.
func New(tokensPerMinute, requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		TokensBucket:   NewTokenBucket(tokensPerMinute, tokensPerMinute, time.Minute),
		RequestsBucket: NewTokenBucket(requestsPerMinute, requestsPerMinute, time.Minute),
	}
}

// TryConsume consumes numTokens and one request if both are available. Either both
// buckets are charged or neither is.
func (rl *RateLimiter) TryConsume(numTokens int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.TokensBucket.HasCapacity(numTokens) || !rl.RequestsBucket.HasCapacity(1) {
		return false
	}
	return rl.TokensBucket.TryConsume(numTokens) && rl.RequestsBucket.TryConsume(1)
}

// MaxTokens returns the tokens-per-minute capacity, or 0 when tokens are unlimited.
func (rl *RateLimiter) MaxTokens() int {
	return rl.TokensBucket.Capacity()
}

// TimeUntilAvailable returns how long until numTokens and one request would be available.
func (rl *RateLimiter) TimeUntilAvailable(tokens int) time.Duration {
	return max(rl.TokensBucket.TimeUntilAvailable(tokens), rl.RequestsBucket.TimeUntilAvailable(1))
}

// WaitAndConsume waits until tokens are available (up to maxWait), then consumes them.
// If maxWait is 0, there is no limit on how long to wait.
func (rl *RateLimiter) WaitAndConsume(ctx context.Context, tokens int, maxWait time.Duration) error {
	if limit := rl.MaxTokens(); limit > 0 && tokens > limit {
		return fmt.Errorf("%w: %d > %d", ErrExceedsCapacity, tokens, limit)
	}

	var deadline time.Time
	if maxWait > 0 {
		deadline = time.Now().Add(maxWait)
	}

	for {
		if rl.TryConsume(tokens) {
			return nil
		}

		wait := rl.TimeUntilAvailable(tokens)
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		if !deadline.IsZero() && time.Now().Add(wait).After(deadline) {
			return fmt.Errorf("%w: %v > %v", ErrWaitExceeded, wait, maxWait)
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

// TokenBucket implements a token bucket that fully refills every refillInterval.
// A bucket with non-positive capacity never limits.
type TokenBucket struct {
	mu             sync.Mutex
	capacity       int
	remaining      int
	refillInterval time.Duration
	lastRefill     time.Time
}

// NewTokenBucket creates a new token bucket.
func NewTokenBucket(capacity int, initialTokens int, refillInterval time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:       capacity,
		remaining:      initialTokens,
		refillInterval: refillInterval,
		lastRefill:     time.Now(),
	}
}

// Capacity returns the bucket size, or 0 when the bucket never limits.
func (tb *TokenBucket) Capacity() int {
	if tb.unlimited() {
		return 0
	}
	return tb.capacity
}

func (tb *TokenBucket) unlimited() bool {
	return tb.capacity <= 0
}

// refill must be called with tb.mu held.
func (tb *TokenBucket) refill(now time.Time) {
	if now.Sub(tb.lastRefill) >= tb.refillInterval {
		tb.remaining = tb.capacity
		tb.lastRefill = now
	}
}

// HasCapacity checks if tokens are available without consuming them.
func (tb *TokenBucket) HasCapacity(tokens int) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.unlimited() {
		return true
	}
	tb.refill(time.Now())
	return tokens <= tb.remaining
}

// TryConsume consumes tokens if available.
func (tb *TokenBucket) TryConsume(tokens int) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.unlimited() {
		return true
	}
	tb.refill(time.Now())
	if tokens <= tb.remaining {
		tb.remaining -= tokens
		return true
	}
	return false
}

// TimeUntilAvailable estimates how long until tokens would be available, assuming a
// linear refill across the interval plus a 10% buffer. It does not modify state.
func (tb *TokenBucket) TimeUntilAvailable(tokens int) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.unlimited() {
		return 0
	}

	sinceRefill := time.Since(tb.lastRefill)
	effective := tb.remaining
	if sinceRefill >= tb.refillInterval {
		effective = tb.capacity
	} else if sinceRefill > 0 {
		replenished := int(float64(tb.capacity) * (float64(sinceRefill) / float64(tb.refillInterval)))
		effective = min(tb.capacity, tb.remaining+replenished)
	}

	if tokens <= effective {
		return 0
	}

	rate := float64(tb.capacity) / float64(tb.refillInterval)
	wait := time.Duration(float64(tokens-effective) / rate)
	return wait + wait/10
}
