package imagestudio

import (
	"log/slog"

	"github.com/mhpenta/imagestudio/internal/metrics"
	"github.com/mhpenta/imagestudio/ratelimiter"
)

// OrchestratorOption configures the Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets a structured logger for the orchestrator.
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithAdapter registers an additional provider adapter.
func WithAdapter(a Adapter) OrchestratorOption {
	return func(o *Orchestrator) {
		o.adapters[a.Name()] = a
	}
}

// WithDefaultProvider sets the provider used when a call does not name one.
func WithDefaultProvider(name string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.defaultProvider = name
	}
}

// WithPoller replaces the default 2s/30-attempt task poller.
func WithPoller(p *TaskPoller) OrchestratorOption {
	return func(o *Orchestrator) {
		o.poller = p
	}
}

// WithMetrics records generation and polling metrics.
func WithMetrics(c *metrics.Collector) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = c
	}
}

// WithRateLimiter throttles calls to provider with limiter.
func WithRateLimiter(provider string, limiter ratelimiter.Limiter) OrchestratorOption {
	return func(o *Orchestrator) {
		o.rateLimiters.Set(provider, limiter)
	}
}

// WithTokenEstimator overrides the prompt token estimator used for rate limiting.
func WithTokenEstimator(e TokenEstimator) OrchestratorOption {
	return func(o *Orchestrator) {
		o.tokenEstimator = e
	}
}

// NewOrchestrator creates an Orchestrator whose default provider is defaultAdapter.
//
// Example:
//
//	ms := modelscope.NewAsync(cfg.ModelScope)
//	orch := imagestudio.NewOrchestrator(ms,
//	    imagestudio.WithLogger(slog.Default()),
//	    imagestudio.WithAdapter(geminiAdapter),
//	)
//	result, err := orch.GenerateOrEdit(ctx, "a red cube", nil, "")
func NewOrchestrator(defaultAdapter Adapter, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		adapters:       make(map[string]Adapter),
		logger:         slog.Default(),
		rateLimiters:   ratelimiter.NewRegistry(),
		tokenEstimator: NewSimpleTokenEstimator(),
	}

	if defaultAdapter != nil {
		o.adapters[defaultAdapter.Name()] = defaultAdapter
		o.defaultProvider = defaultAdapter.Name()
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.poller == nil {
		o.poller = NewTaskPoller(WithPollLogger(o.logger))
	}

	return o
}
