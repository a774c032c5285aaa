package ai

import (
	"context"

	"golang.org/x/time/rate"
)

// LimitedClient wraps a Client with a shared token-bucket limiter so that
// every model call, regardless of which pipeline issues it, draws from the
// same request budget. Waits block until a token is available; requests are
// never dropped.
type LimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// NewLimitedClient wraps client with the given limiter. The limiter is
// shared: pass the same instance to every wrapper that must respect one
// budget.
func NewLimitedClient(client Client, limiter *rate.Limiter) *LimitedClient {
	return &LimitedClient{
		inner:   client,
		limiter: limiter,
	}
}

func (c *LimitedClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...GenerateOption,
) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return c.inner.GenerateCompletion(ctx, prompt, opts...)
}

func (c *LimitedClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...GenerateOption,
) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.inner.GenerateCompletionWithFormat(ctx, name, description, prompt, out, opts...)
}

func (c *LimitedClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.GenerateEmbedding(ctx, input)
}

// GetMetrics forwards to the wrapped client when it tracks metrics.
func (c *LimitedClient) GetMetrics() ModelMetrics {
	if mp, ok := c.inner.(MetricsProvider); ok {
		return mp.GetMetrics()
	}
	return ModelMetrics{}
}

// ResetMetrics forwards to the wrapped client when it tracks metrics.
func (c *LimitedClient) ResetMetrics() {
	if mp, ok := c.inner.(MetricsProvider); ok {
		mp.ResetMetrics()
	}
}
