package llm

import "context"

// Waiter blocks until a request toward the named key is allowed. Implemented
// by worker.Limiter.
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// LimitedProvider applies rate limiting in front of a provider so concurrent
// claim workflows do not hammer the external API
type LimitedProvider struct {
	inner   Provider
	limiter Waiter
}

// NewLimitedProvider wraps inner with the given limiter
func NewLimitedProvider(inner Provider, limiter Waiter) *LimitedProvider {
	return &LimitedProvider{inner: inner, limiter: limiter}
}

// Name returns the wrapped provider's name
func (p *LimitedProvider) Name() string {
	return p.inner.Name()
}

// IsAvailable delegates to the wrapped provider
func (p *LimitedProvider) IsAvailable(ctx context.Context) bool {
	return p.inner.IsAvailable(ctx)
}

// Generate waits for rate-limit clearance, then delegates
func (p *LimitedProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := p.limiter.Wait(ctx, p.inner.Name()); err != nil {
		return nil, err
	}
	return p.inner.Generate(ctx, req)
}
