package imagestudio

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies errors surfaced by the orchestrator.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindProvider   ErrorKind = "provider"
	KindTimeout    ErrorKind = "timeout"
	KindGeneration ErrorKind = "generation"
	KindRateLimit  ErrorKind = "rate_limit"
	KindCanceled   ErrorKind = "canceled"
	KindUnknown    ErrorKind = "unknown"
)

// ValidationError is returned before any network call when a request is malformed.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ProviderError is returned when a backend answers with a non-success status or a body
// that cannot be interpreted. It is never retried inside an adapter.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, truncate(e.Body, 512))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: malformed response: %s", e.Provider, truncate(e.Body, 512))
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned when polling exhausts its attempt budget without a terminal
// status. The upstream task may still complete.
type TimeoutError struct {
	TaskID   string
	Attempts int
	Elapsed  time.Duration

	// LastErr is the last transport error seen while polling, if any.
	LastErr error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s did not finish after %d attempts (%v), it may still be processing",
		e.TaskID, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Unwrap() error {
	return e.LastErr
}

// GenerationError is returned when a provider reports an explicit FAILED status.
type GenerationError struct {
	Provider string
	TaskID   string
	Reason   string
}

func (e *GenerationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: task %s failed", e.Provider, e.TaskID)
	}
	return fmt.Sprintf("%s: task %s failed: %s", e.Provider, e.TaskID, e.Reason)
}

// RateLimitError is returned when a rate limit is hit.
type RateLimitError struct {
	RetryAfter time.Duration
	LimitType  string
	Provider   string
	Err        error // Underlying error from the provider
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %s limit, retry after %v",
		e.Provider, e.LimitType, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// IsRateLimitError checks if an error is a RateLimitError.
func IsRateLimitError(err error) bool {
	var rlErr *RateLimitError
	return errors.As(err, &rlErr)
}

// IsTimeoutError checks if an error is a polling TimeoutError.
func IsTimeoutError(err error) bool {
	var tErr *TimeoutError
	return errors.As(err, &tErr)
}

// ErrStorageNotConfigured is returned when storage operations are attempted
// without a configured storage backend.
var ErrStorageNotConfigured = errors.New("storage not configured")

// KindOf classifies err. Cancellation is checked last so that typed errors wrapping a
// context error keep their own kind.
func KindOf(err error) ErrorKind {
	var (
		vErr  *ValidationError
		pErr  *ProviderError
		tErr  *TimeoutError
		gErr  *GenerationError
		rlErr *RateLimitError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &vErr):
		return KindValidation
	case errors.As(err, &rlErr):
		return KindRateLimit
	case errors.As(err, &tErr):
		return KindTimeout
	case errors.As(err, &gErr):
		return KindGeneration
	case errors.As(err, &pErr):
		return KindProvider
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}

// ErrorInfo is the {kind, message} shape handed to callers that render errors.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Describe converts err into an ErrorInfo.
func Describe(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{}
	}
	return ErrorInfo{Kind: KindOf(err), Message: err.Error()}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
