package imagestudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultPollInterval is the wait between two status queries.
	DefaultPollInterval = 2 * time.Second

	// DefaultMaxPollAttempts caps the number of status queries per task.
	DefaultMaxPollAttempts = 30
)

// TaskPoller drives an asynchronous task to a terminal status.
// It holds no per-task state and is safe for concurrent use.
type TaskPoller struct {
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// PollerOption configures a TaskPoller.
type PollerOption func(*TaskPoller)

// WithPollInterval sets the wait between status queries.
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *TaskPoller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxAttempts sets the maximum number of status queries.
func WithMaxAttempts(n int) PollerOption {
	return func(p *TaskPoller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithPollLogger sets the logger used for transient failures.
func WithPollLogger(logger *slog.Logger) PollerOption {
	return func(p *TaskPoller) {
		p.logger = logger
	}
}

// WithSleeper replaces the context-aware timer wait. Intended for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) PollerOption {
	return func(p *TaskPoller) {
		p.sleep = sleep
	}
}

// NewTaskPoller creates a poller with a 2s interval and 30 attempts unless overridden.
func NewTaskPoller(opts ...PollerOption) *TaskPoller {
	p := &TaskPoller{
		interval:    DefaultPollInterval,
		maxAttempts: DefaultMaxPollAttempts,
		logger:      slog.Default(),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the configured wait between queries.
func (p *TaskPoller) Interval() time.Duration { return p.interval }

// MaxAttempts returns the configured query budget.
func (p *TaskPoller) MaxAttempts() int { return p.maxAttempts }

// AwaitCompletion queries q until the task reaches a terminal status, the attempt budget
// is spent, or ctx is done. Only terminal statuses are returned.
//
// Transport errors are logged and consume an attempt. A ProviderError without a status
// code means the provider answered with a body that cannot be interpreted; it is
// returned at once. There is no wait after the final attempt, and no query beyond
// MaxAttempts.
func (p *TaskPoller) AwaitCompletion(ctx context.Context, q StatusQuerier, handle *TaskHandle) (*TaskStatus, error) {
	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("polling task %s: %w", handle.TaskID, err)
		}

		status, err := q.TaskStatus(ctx, handle)
		if err == nil && status == nil {
			status = Pending("")
		}

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, fmt.Errorf("polling task %s: %w", handle.TaskID, ctx.Err())
			}
			if !retryable(err) {
				p.logger.Error("task status unreadable",
					"provider", handle.Provider,
					"task_id", handle.TaskID,
					"attempt", attempt,
					"error", err.Error(),
				)
				return nil, err
			}
			lastErr = err
			p.logger.Warn("task status query failed",
				"provider", handle.Provider,
				"task_id", handle.TaskID,
				"attempt", attempt,
				"error", err.Error(),
			)
		case status.IsTerminal():
			p.logger.Debug("task reached terminal status",
				"provider", handle.Provider,
				"task_id", handle.TaskID,
				"attempt", attempt,
				"state", status.State.String(),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return status, nil
		default:
			p.logger.Debug("task still running",
				"provider", handle.Provider,
				"task_id", handle.TaskID,
				"attempt", attempt,
				"status", status.RawStatus,
			)
		}

		if attempt == p.maxAttempts {
			break
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return nil, fmt.Errorf("polling task %s: %w", handle.TaskID, err)
		}
	}

	return nil, &TimeoutError{
		TaskID:   handle.TaskID,
		Attempts: p.maxAttempts,
		Elapsed:  time.Since(start),
		LastErr:  lastErr,
	}
}

// retryable reports whether a failed status query may succeed on a later attempt.
// Network failures and non-2xx answers may; a malformed body will not.
func retryable(err error) bool {
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return pErr.StatusCode != 0
	}
	return true
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
