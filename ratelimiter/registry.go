package ratelimiter

import (
	"fmt"
	"sync"
)

// Registry holds one limiter per provider.
type Registry interface {
	Get(provider string) (Limiter, error)
	Set(provider string, limiter Limiter)
}

type mapRegistry struct {
	registry map[string]Limiter
	mu       sync.RWMutex
}

// NewRegistry creates a new in-memory limiter registry.
func NewRegistry() Registry {
	return &mapRegistry{
		registry: make(map[string]Limiter),
	}
}

func (r *mapRegistry) Get(provider string) (Limiter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limiter, exists := r.registry[provider]
	if !exists {
		return nil, fmt.Errorf("rate limiter not found for provider: %s", provider)
	}
	return limiter, nil
}

func (r *mapRegistry) Set(provider string, limiter Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.registry[provider] = limiter
}
