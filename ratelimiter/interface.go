// Package ratelimiter provides per-provider request throttling for outbound generation calls.
package ratelimiter

import (
	"context"
	"time"
)

// Limiter throttles calls to one image provider. Each call is charged one request
// plus an estimated prompt token count.
type Limiter interface {
	// TryConsume charges a call of numTokens if both buckets have capacity.
	// It reports whether the call was charged.
	TryConsume(numTokens int) bool

	// MaxTokens reports the largest token count a single call can be charged, or 0
	// when tokens are unlimited.
	MaxTokens() int

	// TimeUntilAvailable reports how long a call of tokens would wait. It charges nothing.
	TimeUntilAvailable(tokens int) time.Duration

	// WaitAndConsume blocks until the call can be charged. It returns ErrExceedsCapacity
	// when tokens is above MaxTokens, ErrWaitExceeded when capacity would arrive after
	// maxWait, or ctx.Err() when ctx ends first.
	// A zero maxWait waits until ctx is done.
	WaitAndConsume(ctx context.Context, tokens int, maxWait time.Duration) error
}
