// ABOUTME: Client with provider routing and a middleware chain for generator calls.
// ABOUTME: Ships timeout, retry, and zap logging middleware used by the visualization stages.

package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Middleware wraps an LLM call. Middleware runs in registration order on the
// way in and reverse order on the way out.
type Middleware func(ctx context.Context, req Request, next NextFunc) (*Response, error)

// NextFunc continues the middleware chain.
type NextFunc func(ctx context.Context, req Request) (*Response, error)

// Client routes requests to registered provider adapters through the
// middleware chain.
type Client struct {
	providers       map[string]ProviderAdapter
	defaultProvider string
	middleware      []Middleware
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithProvider registers an adapter under name. The first registered provider
// becomes the default unless WithDefaultProvider says otherwise.
func WithProvider(name string, adapter ProviderAdapter) ClientOption {
	return func(c *Client) {
		c.providers[name] = adapter
		if c.defaultProvider == "" {
			c.defaultProvider = name
		}
	}
}

// WithDefaultProvider sets the provider used when a Request names none.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) {
		c.defaultProvider = name
	}
}

// WithMiddleware appends middleware to the chain.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// NewClient creates a Client with the given options applied.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		providers: make(map[string]ProviderAdapter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the adapter a request would be routed to.
func (c *Client) Provider(name string) (ProviderAdapter, error) {
	if name == "" {
		name = c.defaultProvider
	}
	if name == "" {
		return nil, configError("no provider specified and no default provider configured", nil)
	}
	adapter, ok := c.providers[name]
	if !ok {
		return nil, configError(fmt.Sprintf("provider %q not registered", name), nil)
	}
	return adapter, nil
}

// Complete sends a request through the middleware chain to the resolved adapter.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	handler := func(ctx context.Context, req Request) (*Response, error) {
		adapter, err := c.Provider(req.Provider)
		if err != nil {
			return nil, err
		}
		return adapter.Complete(ctx, req)
	}

	chain := handler
	for i := len(c.middleware) - 1; i >= 0; i-- {
		mw := c.middleware[i]
		next := chain
		chain = func(ctx context.Context, req Request) (*Response, error) {
			return mw(ctx, req, next)
		}
	}

	return chain(ctx, req)
}

// Close shuts down all registered adapters and joins their errors.
func (c *Client) Close() error {
	var errs []error
	for name, adapter := range c.providers {
		if err := adapter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing provider %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// TimeoutMiddleware bounds each call (including its retries when registered
// before RetryMiddleware) by d. A deadline hit surfaces as KindTimeout.
func TimeoutMiddleware(d time.Duration) Middleware {
	return func(ctx context.Context, req Request, next NextFunc) (*Response, error) {
		if d <= 0 {
			return next(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		resp, err := next(ctx, req)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutError(fmt.Sprintf("llm call exceeded %s", d), err)
		}
		return resp, err
	}
}

// RetryMiddleware retries retryable failures according to policy.
func RetryMiddleware(policy RetryPolicy) Middleware {
	return func(ctx context.Context, req Request, next NextFunc) (*Response, error) {
		var resp *Response
		err := Retry(ctx, policy, func() error {
			var callErr error
			resp, callErr = next(ctx, req)
			return callErr
		})
		return resp, err
	}
}

// LoggingMiddleware logs each call's model, duration, and outcome.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req Request, next NextFunc) (*Response, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		fields := []zap.Field{
			zap.String("component", "llm"),
			zap.String("model", req.Model),
			zap.Bool("image", req.HasImage()),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			logger.Warn("action=complete outcome=error", append(fields, zap.Error(err))...)
			return nil, err
		}
		logger.Debug("action=complete outcome=ok", append(fields,
			zap.String("provider", resp.Provider),
			zap.Int("output_tokens", resp.Usage.OutputTokens),
		)...)
		return resp, nil
	}
}
