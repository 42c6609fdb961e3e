package providers

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/streamrelay/llm"
	"github.com/BaSui01/streamrelay/llm/retry"
	"github.com/BaSui01/streamrelay/types"
	"go.uber.org/zap"
)

// RetryConfig holds retry configuration for a provider wrapper.
type RetryConfig struct {
	MaxRetries int           `json:"max_retries" yaml:"max_retries"` // Additional attempts after the first, default 3
	BaseDelay  time.Duration `json:"base_delay" yaml:"base_delay"`   // Linear step: retry n waits n × BaseDelay, default 1s
}

// DefaultRetryConfig returns the default retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
	}
}

// RetryObserver is notified before every retry.
type RetryObserver func(provider string, attempt int, err error)

// RetryableProvider wraps an llm.Provider and retries whole generation
// attempts with linear backoff.
//
// Each attempt's chunks are buffered and only forwarded once the attempt has
// finished cleanly, so the caller sees the output of exactly one attempt.
// Configuration errors and accumulator invariant violations are passed
// through without retrying. Exhausted retries end in a GenerationFailed chunk.
type RetryableProvider struct {
	inner    llm.Provider
	config   RetryConfig
	logger   *zap.Logger
	observer RetryObserver
}

// NewRetryableProvider creates a retrying wrapper around the given provider.
func NewRetryableProvider(inner llm.Provider, config RetryConfig, logger *zap.Logger) *RetryableProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &RetryableProvider{
		inner:  inner,
		config: config,
		logger: logger.With(zap.String("component", "retry_provider"), zap.String("provider", inner.Name())),
	}
}

// WithObserver registers a callback invoked before each retry.
func (p *RetryableProvider) WithObserver(fn RetryObserver) *RetryableProvider {
	p.observer = fn
	return p
}

// Compile-time interface check.
var _ llm.Provider = (*RetryableProvider)(nil)

func (p *RetryableProvider) Name() string { return p.inner.Name() }

// Unwrap returns the wrapped provider.
func (p *RetryableProvider) Unwrap() llm.Provider { return p.inner }

// GenerateResponse runs the generation with retries.
func (p *RetryableProvider) GenerateResponse(ctx context.Context, req *llm.GenerateRequest) (<-chan llm.StreamChunk, error) {
	out := make(chan llm.StreamChunk)

	go func() {
		defer close(out)

		retryer := retry.NewLinearRetryer(&retry.RetryPolicy{
			MaxRetries: p.config.MaxRetries,
			BaseDelay:  p.config.BaseDelay,
			Retryable:  shouldRetry,
			OnRetry: func(attempt int, err error, delay time.Duration) {
				p.logger.Warn("retrying generation",
					zap.Int("attempt", attempt),
					zap.Duration("delay", delay),
					zap.Error(err))
				if p.observer != nil {
					p.observer(p.inner.Name(), attempt, err)
				}
			},
		}, p.logger)

		chunks, err := retry.DoWithResult(ctx, retryer, func(int) ([]llm.StreamChunk, error) {
			return p.attempt(ctx, req)
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			llm.Send(ctx, out, llm.ErrorChunk(p.terminalError(err)))
			return
		}

		for _, c := range chunks {
			if !llm.Send(ctx, out, c) {
				return
			}
		}
	}()

	return out, nil
}

// attempt runs one generation to completion and returns its buffered output.
func (p *RetryableProvider) attempt(ctx context.Context, req *llm.GenerateRequest) ([]llm.StreamChunk, error) {
	ch, err := p.inner.GenerateResponse(ctx, req)
	if err != nil {
		return nil, err
	}

	var buf []llm.StreamChunk
	for c := range ch {
		if c.Err != nil {
			for range ch {
			}
			return nil, c.Err
		}
		buf = append(buf, c)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *RetryableProvider) terminalError(err error) *types.Error {
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		p.logger.Error("generation failed", zap.Int("attempts", exhausted.Attempts), zap.Error(exhausted.Last))
		return types.NewGenerationFailedError(p.inner.Name(), exhausted.Attempts, exhausted.Last)
	}
	if types.IsCode(err, types.ErrAccumulatorInvariant) {
		p.logger.Error("tool call accumulator invariant violated", zap.Error(err))
	}
	if e, ok := types.AsError(err); ok {
		return e
	}
	return types.NewError(types.ErrInternalError, err.Error()).WithCause(err)
}

// shouldRetry reports whether a failed attempt may be retried.
func shouldRetry(err error) bool {
	switch types.GetErrorCode(err) {
	case types.ErrConfiguration, types.ErrAccumulatorInvariant, types.ErrInvalidRequest:
		return false
	}
	return true
}
