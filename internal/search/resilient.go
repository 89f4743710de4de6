package search

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
)

// Retrying retries every failed search with exponential backoff. Provider
// errors are not classified: a 400 is retried like a timeout.
type Retrying struct {
	inner Provider
	cfg   resilience.RetryConfig
}

// WithRetry wraps p in a Retrying provider.
func WithRetry(p Provider, cfg resilience.RetryConfig) *Retrying {
	cfg.ShouldRetry = nil
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(p.Name(), "search")
	}
	return &Retrying{inner: p, cfg: cfg}
}

// Name implements Provider.
func (r *Retrying) Name() string { return r.inner.Name() }

// Search implements Provider.
func (r *Retrying) Search(ctx context.Context, query string) ([]model.RawRecord, error) {
	return resilience.DoVal(ctx, r.cfg, func(ctx context.Context) ([]model.RawRecord, error) {
		return r.inner.Search(ctx, query)
	})
}

type guarded struct {
	provider Provider
	breaker  *resilience.CircuitBreaker
}

// Chain tries providers in order and returns the first success. Each
// provider sits behind its own circuit breaker so a provider that keeps
// failing is skipped until its breaker resets.
type Chain struct {
	providers []guarded
}

// NewChain builds a Chain with one breaker per provider.
func NewChain(cfg resilience.CircuitBreakerConfig, providers ...Provider) *Chain {
	c := &Chain{}
	for _, p := range providers {
		bcfg := cfg
		name := p.Name()
		bcfg.OnStateChange = func(from, to resilience.CircuitState) {
			zap.L().Warn("search: circuit state change",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
		c.providers = append(c.providers, guarded{provider: p, breaker: resilience.NewCircuitBreaker(bcfg)})
	}
	return c
}

// Name implements Provider.
func (c *Chain) Name() string {
	name := "chain"
	for _, g := range c.providers {
		name += ":" + g.provider.Name()
	}
	return name
}

// Search implements Provider.
func (c *Chain) Search(ctx context.Context, query string) ([]model.RawRecord, error) {
	if len(c.providers) == 0 {
		return nil, eris.New("search: no providers configured")
	}

	var errs []error
	for _, g := range c.providers {
		recs, err := resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) ([]model.RawRecord, error) {
			return g.provider.Search(ctx, query)
		})
		if err == nil {
			return recs, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		zap.L().Warn("search: provider failed, trying next",
			zap.String("provider", g.provider.Name()),
			zap.String("query", query),
			zap.Error(err),
		)
		errs = append(errs, err)
	}
	return nil, eris.Wrap(errors.Join(errs...), "search: all providers failed")
}
