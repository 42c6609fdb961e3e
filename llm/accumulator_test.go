package llm

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/BaSui01/streamrelay/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulator_StreamedCall(t *testing.T) {
	acc := NewToolCallAccumulator("openai")

	require.NoError(t, acc.Open(0, "call_abc", "getWeather"))
	require.NoError(t, acc.Append(0, `{"location":`))
	require.NoError(t, acc.Append(0, `"San Francisco",`))
	require.NoError(t, acc.Append(0, `"unit":"Fahrenheit"}`))
	require.NoError(t, acc.Close(0))

	calls, err := acc.Complete()
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "call_abc", calls[0].ID)
	assert.Equal(t, "getWeather", calls[0].Name)
	assert.JSONEq(t, `{"location":"San Francisco","unit":"Fahrenheit"}`, calls[0].Arguments)
	assert.Zero(t, acc.Len())
}

func TestAccumulator_EmitsInOpenOrder(t *testing.T) {
	acc := NewToolCallAccumulator("anthropic")

	require.NoError(t, acc.Open(3, "b", "getMovies"))
	require.NoError(t, acc.Open(1, "a", "getWeather"))
	require.NoError(t, acc.Append(1, `{}`))
	require.NoError(t, acc.Append(3, `{"location":"Paris"}`))

	calls, err := acc.Complete()
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "b", calls[0].ID)
	assert.Equal(t, "a", calls[1].ID)
}

func TestAccumulator_SynthesizedIDs(t *testing.T) {
	acc := NewToolCallAccumulator("gemini")
	require.NoError(t, acc.Atomic(0, "", "getWeather", `{"location":"Paris"}`))
	require.NoError(t, acc.Atomic(1, "", "getWeather", `{"location":"Rome"}`))

	calls, err := acc.Complete()
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.NotEqual(t, calls[0].ID, calls[1].ID)
	assert.True(t, strings.HasPrefix(calls[0].ID, "call_"))

	other := NewToolCallAccumulator("gemini")
	require.NoError(t, other.Atomic(0, "", "getWeather", `{}`))
	otherCalls, err := other.Complete()
	require.NoError(t, err)
	assert.NotEqual(t, calls[0].ID, otherCalls[0].ID, "ids are scoped per generation")
}

func TestAccumulator_EmptyArgumentsBecomeObject(t *testing.T) {
	acc := NewToolCallAccumulator("openai")
	require.NoError(t, acc.Open(0, "c", "ping"))

	calls, err := acc.Complete()
	require.NoError(t, err)
	assert.Equal(t, "{}", calls[0].Arguments)
}

func TestAccumulator_InvariantViolations(t *testing.T) {
	t.Run("fragment for unknown index", func(t *testing.T) {
		acc := NewToolCallAccumulator("openai")
		err := acc.Append(2, `{"x":1}`)
		require.Error(t, err)
		assert.Equal(t, types.ErrAccumulatorInvariant, types.GetErrorCode(err))
	})

	t.Run("fragment after close", func(t *testing.T) {
		acc := NewToolCallAccumulator("openai")
		require.NoError(t, acc.Open(0, "c", "ping"))
		require.NoError(t, acc.Close(0))
		err := acc.Append(0, "x")
		assert.Equal(t, types.ErrAccumulatorInvariant, types.GetErrorCode(err))
	})

	t.Run("open twice", func(t *testing.T) {
		acc := NewToolCallAccumulator("openai")
		require.NoError(t, acc.Open(0, "c", "ping"))
		err := acc.Open(0, "d", "pong")
		assert.Equal(t, types.ErrAccumulatorInvariant, types.GetErrorCode(err))
	})

	t.Run("close unknown", func(t *testing.T) {
		acc := NewToolCallAccumulator("openai")
		assert.Equal(t, types.ErrAccumulatorInvariant, types.GetErrorCode(acc.Close(5)))
	})
}

func TestAccumulator_MalformedArgumentsAreTransient(t *testing.T) {
	acc := NewToolCallAccumulator("openai")
	require.NoError(t, acc.Open(0, "c", "getWeather"))
	require.NoError(t, acc.Append(0, `{"location":"San`))

	_, err := acc.Complete()
	require.Error(t, err)
	assert.Equal(t, types.ErrTransientStream, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
	assert.Zero(t, acc.Len())
}

func TestAccumulator_CompleteWithoutCalls(t *testing.T) {
	calls, err := NewToolCallAccumulator("openai").Complete()
	assert.NoError(t, err)
	assert.Nil(t, calls)
}

func TestAccumulator_ArgumentsAreNotReencoded(t *testing.T) {
	acc := NewToolCallAccumulator("openai")
	raw := `{"b": 1, "a": [1, 2]}`
	require.NoError(t, acc.Atomic(0, "c", "f", raw))
	calls, err := acc.Complete()
	require.NoError(t, err)
	assert.Equal(t, raw, calls[0].Arguments)

	var decoded map[string]any
	assert.NoError(t, json.Unmarshal([]byte(calls[0].Arguments), &decoded))
}
