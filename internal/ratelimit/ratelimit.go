// Package ratelimit throttles how often the router may invoke a given
// provider's LLM agent, independent of the per-invocation concurrency
// the router already bounds by only ever dispatching one LLM agent per
// run. A long-lived process driving the router across many diffs still
// needs to keep each provider under its own rate ceiling.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// ProviderLimiter hands out a token-bucket limiter per provider name,
// creating it lazily on first use.
type ProviderLimiter struct {
	mu         sync.RWMutex
	limiters   map[string]*rate.Limiter
	ratePerMin int
	burst      int
}

// NewProviderLimiter builds a limiter allowing ratePerMin requests per
// minute per provider, with the given burst. ratePerMin <= 0 disables
// limiting entirely: Acquire becomes a no-op.
func NewProviderLimiter(ratePerMin, burst int) *ProviderLimiter {
	if ratePerMin <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &ProviderLimiter{
		limiters:   make(map[string]*rate.Limiter),
		ratePerMin: ratePerMin,
		burst:      burst,
	}
}

func (p *ProviderLimiter) limiterFor(provider string) *rate.Limiter {
	p.mu.RLock()
	l, ok := p.limiters[provider]
	p.mu.RUnlock()
	if ok {
		return l
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok = p.limiters[provider]; ok {
		return l
	}
	l = rate.NewLimiter(rate.Limit(float64(p.ratePerMin)/60.0), p.burst)
	p.limiters[provider] = l
	return l
}

// Acquire blocks until provider has a token available or ctx is done.
// A nil receiver never blocks.
func (p *ProviderLimiter) Acquire(ctx context.Context, provider string) error {
	if p == nil {
		return nil
	}
	return p.limiterFor(provider).Wait(ctx)
}
