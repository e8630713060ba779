package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTokenBucket(t *testing.T) {
	bucket := NewTokenBucket(10, 10, time.Minute)

	if !bucket.TryConsume(5) {
		t.Error("failed to consume tokens from full bucket")
	}
	if bucket.remaining != 5 {
		t.Errorf("expected 5 remaining tokens, got %d", bucket.remaining)
	}
	if bucket.TryConsume(6) {
		t.Error("should not be able to consume more than remaining")
	}

	fastBucket := NewTokenBucket(10, 0, 10*time.Millisecond)
	if fastBucket.TryConsume(1) {
		t.Error("should fail to consume from empty bucket")
	}

	time.Sleep(20 * time.Millisecond)

	if !fastBucket.TryConsume(1) {
		t.Error("should succeed after refill")
	}
}

func TestTokenBucket_Unlimited(t *testing.T) {
	bucket := NewTokenBucket(0, 0, time.Minute)
	for i := 0; i < 100; i++ {
		if !bucket.TryConsume(1000) {
			t.Fatal("zero-capacity bucket should never limit")
		}
	}
	if wait := bucket.TimeUntilAvailable(1 << 20); wait != 0 {
		t.Errorf("expected no wait, got %v", wait)
	}
}

func TestRateLimiter_TryConsume(t *testing.T) {
	rl := New(100, 10)
	if !rl.TryConsume(10) {
		t.Error("should be able to proceed with valid request")
	}

	smallTokenRL := New(10, 100)
	if !smallTokenRL.TryConsume(10) {
		t.Error("should be able to consume exactly available tokens")
	}
	if smallTokenRL.TryConsume(1) {
		t.Error("should not proceed when tokens exhausted")
	}

	smallReqRL := New(100, 1)
	if !smallReqRL.TryConsume(1) {
		t.Error("should be able to proceed with 1st request")
	}
	if smallReqRL.TryConsume(1) {
		t.Error("should not proceed when requests exhausted")
	}
	if smallReqRL.TokensBucket.remaining != 99 {
		t.Errorf("rejected request must not charge tokens, remaining %d", smallReqRL.TokensBucket.remaining)
	}
}

func TestRateLimiter_TimeUntilAvailable(t *testing.T) {
	rl := New(60, 60) // 1 token per second
	rl.TokensBucket.TryConsume(60)

	wait := rl.TimeUntilAvailable(1)
	if wait < 900*time.Millisecond || wait > 1500*time.Millisecond {
		t.Errorf("expected wait around 1s, got %v", wait)
	}
}

func TestRateLimiter_WaitAndConsume(t *testing.T) {
	rl := New(0, 1)
	ctx := context.Background()

	if err := rl.WaitAndConsume(ctx, 1, 0); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}

	err := rl.WaitAndConsume(ctx, 1, 100*time.Millisecond)
	if !errors.Is(err, ErrWaitExceeded) {
		t.Errorf("expected ErrWaitExceeded, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := rl.WaitAndConsume(cancelled, 1, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRateLimiter_ExceedsCapacity(t *testing.T) {
	rl := New(100, 10)
	if rl.MaxTokens() != 100 {
		t.Errorf("MaxTokens() = %d, want 100", rl.MaxTokens())
	}
	if New(0, 10).MaxTokens() != 0 {
		t.Error("unlimited tokens should report MaxTokens 0")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	err := rl.WaitAndConsume(ctx, 101, 0)
	if !errors.Is(err, ErrExceedsCapacity) {
		t.Fatalf("expected ErrExceedsCapacity, got %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("oversized call should fail without waiting")
	}
	if rl.TokensBucket.remaining != 100 {
		t.Errorf("oversized call must not charge tokens, remaining %d", rl.TokensBucket.remaining)
	}
}
