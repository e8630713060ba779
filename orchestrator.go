package imagestudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mhpenta/imagestudio/internal/metrics"
	"github.com/mhpenta/imagestudio/ratelimiter"
)

var (
	// ErrProviderNotRegistered is returned when a call names an unknown provider.
	ErrProviderNotRegistered = errors.New("provider not registered")

	// ErrUnsupportedAdapter is returned for adapters that are neither sync nor async.
	ErrUnsupportedAdapter = errors.New("adapter implements neither SyncAdapter nor AsyncAdapter")

	// ErrMissingTaskID is wrapped in a ProviderError when a submission yields no task id.
	ErrMissingTaskID = errors.New("submission response has no task id")
)

// Orchestrator selects an adapter, dispatches generate or edit, drives polling for
// asynchronous providers and returns a uniform GenerationResult.
//
// It never writes history. Each call is independent; the only shared state is the
// adapter registry, which is read-mostly.
type Orchestrator struct {
	adapters        map[string]Adapter
	defaultProvider string

	poller *TaskPoller

	// Rate limiting (per provider)
	rateLimiters   ratelimiter.Registry
	tokenEstimator TokenEstimator

	logger  *slog.Logger
	metrics *metrics.Collector

	mu sync.RWMutex
}

// CallOption customizes a single GenerateOrEdit or Dispatch call.
type CallOption func(*callOptions)

type callOptions struct {
	provider        string
	waitOnRateLimit bool
	maxWait         time.Duration
}

// UseProvider routes the call to the named provider instead of the default.
func UseProvider(name string) CallOption {
	return func(o *callOptions) {
		o.provider = name
	}
}

// WaitOnRateLimit makes the call wait up to maxWait for rate limit capacity instead of
// failing with a RateLimitError. Zero maxWait waits until ctx is done.
func WaitOnRateLimit(maxWait time.Duration) CallOption {
	return func(o *callOptions) {
		o.waitOnRateLimit = true
		o.maxWait = maxWait
	}
}

// GenerateOrEdit runs an edit when source is present and a generation otherwise.
func (o *Orchestrator) GenerateOrEdit(ctx context.Context, prompt string, source *ImageRef, size ImageSize, opts ...CallOption) (*GenerationResult, error) {
	return o.Dispatch(ctx, NewGenerationRequest(prompt, source, size), opts...)
}

// Dispatch validates req and sends it to the selected adapter.
func (o *Orchestrator) Dispatch(ctx context.Context, req *GenerationRequest, opts ...CallOption) (*GenerationResult, error) {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	adapter, err := o.adapterFor(co.provider)
	if err != nil {
		return nil, err
	}
	provider := adapter.Name()
	caps := adapter.Capabilities()

	if !caps.SupportsSize(req.Size) {
		return nil, &ValidationError{
			Field: "size",
			Err:   fmt.Errorf("%w: %s does not support %s", ErrUnsupportedSize, provider, req.Size),
		}
	}

	start := time.Now()
	o.logger.Debug("starting image request",
		"provider", provider,
		"mode", req.Mode.String(),
		"prompt_length", len(req.Prompt),
		"size", req.Size.String(),
	)

	if err := o.checkRateLimit(ctx, provider, req.Prompt, co); err != nil {
		o.logger.Warn("rate limit hit",
			"provider", provider,
			"error", err.Error(),
		)
		o.metrics.RecordGeneration(provider, req.Mode.String(), string(KindOf(err)), time.Since(start))
		return nil, err
	}

	prepared, degraded := PrepareRequest(req, caps)
	if degraded {
		o.logger.Warn("provider has no native edit, servicing edit as generation",
			"provider", provider,
		)
		o.metrics.RecordDegradedEdit(provider)
	}

	var result *GenerationResult
	switch a := adapter.(type) {
	case AsyncAdapter:
		result, err = o.runAsync(ctx, a, prepared)
	case SyncAdapter:
		result, err = a.Generate(ctx, prepared)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedAdapter, provider)
	}
	duration := time.Since(start)

	if err != nil {
		o.logger.Error("image request failed",
			"provider", provider,
			"mode", req.Mode.String(),
			"duration_ms", duration.Milliseconds(),
			"kind", string(KindOf(err)),
			"error", err.Error(),
		)
		o.metrics.RecordGeneration(provider, req.Mode.String(), string(KindOf(err)), duration)
		return nil, err
	}

	if result == nil {
		result = &GenerationResult{}
	}
	if result.Provider == "" {
		result.Provider = provider
	}
	result.Degraded = result.Degraded || degraded

	outcome := "success"
	switch {
	case !result.HasImage() && result.Text != "":
		outcome = "text_only"
	case !result.HasImage():
		outcome = "empty"
	}

	o.logger.Info("image request completed",
		"provider", provider,
		"mode", req.Mode.String(),
		"model", result.Model,
		"duration_ms", duration.Milliseconds(),
		"outcome", outcome,
		"degraded", result.Degraded,
	)
	o.metrics.RecordGeneration(provider, req.Mode.String(), outcome, duration)

	return result, nil
}

// runAsync submits req and waits for a terminal status.
func (o *Orchestrator) runAsync(ctx context.Context, a AsyncAdapter, req *GenerationRequest) (*GenerationResult, error) {
	handle, err := a.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if handle == nil || handle.TaskID == "" {
		return nil, &ProviderError{Provider: a.Name(), Err: ErrMissingTaskID}
	}
	if handle.Provider == "" {
		handle.Provider = a.Name()
	}

	o.logger.Debug("task submitted",
		"provider", handle.Provider,
		"task_id", handle.TaskID,
		"model", handle.Model,
	)

	status, err := o.poller.AwaitCompletion(ctx, &observedQuerier{q: a, metrics: o.metrics}, handle)
	if err != nil {
		return nil, err
	}

	switch status.State {
	case TaskSucceeded:
		return &GenerationResult{
			Image:    status.Image,
			Provider: handle.Provider,
			Model:    handle.Model,
			ProviderMeta: map[string]any{
				"task_id":      handle.TaskID,
				"submitted_at": handle.SubmittedAt,
			},
		}, nil
	case TaskFailed:
		return nil, &GenerationError{
			Provider: handle.Provider,
			TaskID:   handle.TaskID,
			Reason:   status.Reason,
		}
	default:
		return nil, fmt.Errorf("poller returned non-terminal status %s for task %s", status.State, handle.TaskID)
	}
}

// observedQuerier records every status query in metrics.
type observedQuerier struct {
	q       StatusQuerier
	metrics *metrics.Collector
}

func (oq *observedQuerier) TaskStatus(ctx context.Context, handle *TaskHandle) (*TaskStatus, error) {
	status, err := oq.q.TaskStatus(ctx, handle)
	result := "error"
	if err == nil {
		result = TaskPending.String()
		if status != nil {
			result = status.State.String()
		}
	}
	oq.metrics.RecordPollAttempt(handle.Provider, result)
	return status, err
}

// RegisterAdapter adds or replaces an adapter. The first registered adapter becomes
// the default provider.
func (o *Orchestrator) RegisterAdapter(a Adapter) *Orchestrator {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.adapters[a.Name()] = a
	if o.defaultProvider == "" {
		o.defaultProvider = a.Name()
	}
	return o
}

// SetRateLimiter sets a custom rate limiter for a provider.
// Use this to swap in a distributed rate limiter (e.g., Redis-based) for production.
func (o *Orchestrator) SetRateLimiter(provider string, limiter ratelimiter.Limiter) *Orchestrator {
	o.rateLimiters.Set(provider, limiter)
	return o
}

// DefaultProvider returns the provider used when a call does not name one.
func (o *Orchestrator) DefaultProvider() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.defaultProvider
}

// Providers returns the registered provider names, sorted.
func (o *Orchestrator) Providers() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	names := make([]string, 0, len(o.adapters))
	for name := range o.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Capabilities returns the capabilities of the named provider.
func (o *Orchestrator) Capabilities(provider string) (Capabilities, bool) {
	a, err := o.adapterFor(provider)
	if err != nil {
		return Capabilities{}, false
	}
	return a.Capabilities(), true
}

// Close releases all adapter resources.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var errs []error
	for name, a := range o.adapters {
		if err := a.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
		}
	}
	o.adapters = make(map[string]Adapter)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// adapterFor resolves a provider name, falling back to the default when empty.
func (o *Orchestrator) adapterFor(provider string) (Adapter, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if provider == "" {
		provider = o.defaultProvider
	}
	a, ok := o.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotRegistered, provider)
	}
	return a, nil
}

// checkRateLimit charges the provider's limiter, optionally waiting for capacity.
func (o *Orchestrator) checkRateLimit(ctx context.Context, provider, prompt string, co callOptions) error {
	const tokenBuffer = 100

	limiter, err := o.rateLimiters.Get(provider)
	if err != nil {
		// No limiter configured for this provider.
		return nil
	}

	estimatedTokens := o.tokenEstimator.EstimateTokens(prompt) + tokenBuffer

	// No amount of waiting admits a call larger than the bucket.
	if maxTokens := limiter.MaxTokens(); maxTokens > 0 && estimatedTokens > maxTokens {
		err := fmt.Errorf("%w: estimated %d tokens, %s allows %d per minute",
			ratelimiter.ErrExceedsCapacity, estimatedTokens, provider, maxTokens)
		return &ValidationError{Field: "prompt", Err: err}
	}

	if co.waitOnRateLimit {
		if err := limiter.WaitAndConsume(ctx, estimatedTokens, co.maxWait); err != nil {
			if ctx.Err() != nil {
				return err
			}
			return &RateLimitError{
				RetryAfter: limiter.TimeUntilAvailable(estimatedTokens),
				LimitType:  "tokens",
				Provider:   provider,
				Err:        err,
			}
		}
		return nil
	}

	if !limiter.TryConsume(estimatedTokens) {
		return &RateLimitError{
			RetryAfter: limiter.TimeUntilAvailable(estimatedTokens),
			LimitType:  "tokens",
			Provider:   provider,
		}
	}
	return nil
}
