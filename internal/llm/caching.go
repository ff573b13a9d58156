package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/covassure/claimflow/internal/cache"
)

// CachingProvider wraps a provider with a response cache keyed by provider,
// model and prompt, so re-submitting an identical claim does not re-bill the
// provider. Retries with clarified prompts produce distinct keys and are
// never served stale.
type CachingProvider struct {
	inner Provider
	cache cache.Cache
	ttl   time.Duration
}

// NewCachingProvider wraps inner with the given cache
func NewCachingProvider(inner Provider, c cache.Cache, ttl time.Duration) *CachingProvider {
	return &CachingProvider{inner: inner, cache: c, ttl: ttl}
}

// Name returns the wrapped provider's name
func (p *CachingProvider) Name() string {
	return p.inner.Name()
}

// IsAvailable delegates to the wrapped provider
func (p *CachingProvider) IsAvailable(ctx context.Context) bool {
	return p.inner.IsAvailable(ctx)
}

// Generate serves from cache when possible, otherwise delegates and stores
// the response
func (p *CachingProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	key := cache.Key(p.inner.Name(), req.Model, req.SystemPrompt+"\x00"+req.Prompt)

	if data, found := p.cache.Get(key); found {
		var resp GenerateResponse
		if err := json.Unmarshal(data, &resp); err == nil {
			return &resp, nil
		}
		// Corrupt entry: fall through to the provider
		_ = p.cache.Delete(key)
	}

	resp, err := p.inner.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(resp); err == nil {
		_ = p.cache.Set(key, data, p.ttl)
	}

	return resp, nil
}
