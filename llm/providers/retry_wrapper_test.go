package providers

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/streamrelay/llm"
	"github.com/BaSui01/streamrelay/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedProvider fails its first `failures` attempts after emitting a
// partial chunk, then succeeds.
type scriptedProvider struct {
	failures int32
	calls    atomic.Int32
	setupErr error
	failWith *types.Error
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) GenerateResponse(ctx context.Context, req *llm.GenerateRequest) (<-chan llm.StreamChunk, error) {
	n := s.calls.Add(1)
	if s.setupErr != nil {
		return nil, s.setupErr
	}
	ch := make(chan llm.StreamChunk, 4)
	go func() {
		defer close(ch)
		if n <= s.failures {
			ch <- llm.TextChunk(fmt.Sprintf("partial-%d", n))
			failure := s.failWith
			if failure == nil {
				failure = types.NewTransientStreamError("scripted", "connection reset")
			}
			ch <- llm.ErrorChunk(failure)
			return
		}
		ch <- llm.TextChunk("George ")
		ch <- llm.TextChunk("Washington")
		ch <- llm.ToolCallChunk(types.ToolCall{ID: "c1", Name: "getWeather", Arguments: "{}"})
	}()
	return ch, nil
}

func fastRetry(max int) RetryConfig {
	return RetryConfig{MaxRetries: max, BaseDelay: time.Millisecond}
}

func drain(t *testing.T, ch <-chan llm.StreamChunk) ([]llm.StreamChunk, *types.Error) {
	t.Helper()
	var chunks []llm.StreamChunk
	var last *types.Error
	for c := range ch {
		if c.Err != nil {
			last = c.Err
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks, last
}

func TestRetryableProvider_SucceedsAfterFailures(t *testing.T) {
	inner := &scriptedProvider{failures: 2}
	var observed []int
	p := NewRetryableProvider(inner, fastRetry(3), zap.NewNop()).
		WithObserver(func(provider string, attempt int, err error) {
			observed = append(observed, attempt)
		})

	ch, err := p.GenerateResponse(context.Background(), &llm.GenerateRequest{})
	require.NoError(t, err)
	chunks, failure := drain(t, ch)

	require.Nil(t, failure)
	require.Len(t, chunks, 3)
	assert.Equal(t, "George ", chunks[0].Text)
	assert.Equal(t, "Washington", chunks[1].Text)
	assert.Equal(t, "c1", chunks[2].ToolCall.ID)
	for _, c := range chunks {
		assert.NotContains(t, c.Text, "partial", "output from a discarded attempt leaked")
	}
	assert.Equal(t, int32(3), inner.calls.Load())
	assert.Equal(t, []int{1, 2}, observed)
}

func TestRetryableProvider_ExhaustedYieldsGenerationFailed(t *testing.T) {
	inner := &scriptedProvider{failures: 10}
	p := NewRetryableProvider(inner, fastRetry(3), nil)

	ch, err := p.GenerateResponse(context.Background(), &llm.GenerateRequest{})
	require.NoError(t, err)
	chunks, failure := drain(t, ch)

	assert.Empty(t, chunks)
	require.NotNil(t, failure)
	assert.Equal(t, types.ErrGenerationFailed, failure.Code)
	assert.True(t, types.IsCode(failure, types.ErrTransientStream))
	assert.Equal(t, int32(4), inner.calls.Load())
}

func TestRetryableProvider_ConfigurationErrorNotRetried(t *testing.T) {
	inner := &scriptedProvider{setupErr: types.NewConfigurationError("scripted", "missing api key")}
	p := NewRetryableProvider(inner, fastRetry(3), nil)

	ch, err := p.GenerateResponse(context.Background(), &llm.GenerateRequest{})
	require.NoError(t, err)
	chunks, failure := drain(t, ch)

	assert.Empty(t, chunks)
	require.NotNil(t, failure)
	assert.Equal(t, types.ErrConfiguration, failure.Code)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestRetryableProvider_InvariantViolationNotRetried(t *testing.T) {
	inner := &scriptedProvider{failures: 1, failWith: types.NewInvariantViolation("fragment for unknown call")}
	p := NewRetryableProvider(inner, fastRetry(3), nil)

	ch, err := p.GenerateResponse(context.Background(), &llm.GenerateRequest{})
	require.NoError(t, err)
	chunks, failure := drain(t, ch)

	assert.Empty(t, chunks)
	require.NotNil(t, failure)
	assert.Equal(t, types.ErrAccumulatorInvariant, failure.Code)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestRetryableProvider_CancelDuringBackoff(t *testing.T) {
	inner := &scriptedProvider{failures: 10}
	p := NewRetryableProvider(inner, RetryConfig{MaxRetries: 3, BaseDelay: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := p.GenerateResponse(ctx, &llm.GenerateRequest{})
	require.NoError(t, err)

	time.AfterFunc(20*time.Millisecond, cancel)
	chunks, failure := drain(t, ch)

	assert.Empty(t, chunks)
	assert.Nil(t, failure, "an aborted generation emits nothing further")
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, shouldRetry(types.NewTransientStreamError("x", "eof")))
	assert.True(t, shouldRetry(MapHTTPError(401, "bad key", "x")))
	assert.True(t, shouldRetry(fmt.Errorf("dial tcp: refused")))
	assert.False(t, shouldRetry(types.NewConfigurationError("x", "no key")))
	assert.False(t, shouldRetry(types.NewInvariantViolation("x")))
}

// Property: k failures with k <= max yields the successful attempt exactly
// once; k > max yields nothing and GenerationFailed.
func TestProperty_RetryAtMostOneAttemptReachesCaller(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40

	properties := gopter.NewProperties(parameters)

	properties.Property("only one attempt's output is forwarded", prop.ForAll(
		func(failures int, maxRetries int) bool {
			inner := &scriptedProvider{failures: int32(failures)}
			p := NewRetryableProvider(inner, RetryConfig{MaxRetries: maxRetries, BaseDelay: 0}, nil)

			ch, err := p.GenerateResponse(context.Background(), &llm.GenerateRequest{})
			if err != nil {
				return false
			}
			chunks, failure := drain(t, ch)

			if failures <= maxRetries {
				return failure == nil &&
					len(chunks) == 3 &&
					chunks[0].Text == "George " &&
					int(inner.calls.Load()) == failures+1
			}
			return failure != nil &&
				failure.Code == types.ErrGenerationFailed &&
				len(chunks) == 0 &&
				int(inner.calls.Load()) == maxRetries+1
		},
		gen.IntRange(0, 6),
		gen.IntRange(0, 4),
	))

	properties.TestingRun(t)
}
