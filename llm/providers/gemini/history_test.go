package gemini

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/BaSui01/streamrelay/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func callTurn(id, name string) geminiContent {
	return geminiContent{Role: roleModel, Parts: []geminiPart{{
		FunctionCall: &geminiFunctionCall{ID: id, Name: name, Args: json.RawMessage("{}")},
	}}}
}

func responseTurn(id, name string) geminiContent {
	return geminiContent{Role: roleFunction, Parts: []geminiPart{{
		FunctionResponse: &geminiFunctionResponse{ID: id, Name: name, Response: json.RawMessage(`{"ok":true}`)},
	}}}
}

func textTurn(role, text string) geminiContent {
	return geminiContent{Role: role, Parts: []geminiPart{{Text: text}}}
}

func roles(contents []geminiContent) []string {
	out := make([]string, len(contents))
	for i, c := range contents {
		out[i] = c.Role
	}
	return out
}

func TestMergeFunctionResponses(t *testing.T) {
	tests := []struct {
		name  string
		in    []geminiContent
		roles []string
		parts []int // parts per output turn
	}{
		{
			name:  "empty",
			in:    nil,
			roles: []string{},
			parts: []int{},
		},
		{
			name: "two responses merged",
			in: []geminiContent{
				textTurn(roleUser, "q"),
				callTurn("a", "getWeather"),
				responseTurn("a", "getWeather"),
				responseTurn("a2", "getWeather"),
				textTurn(roleModel, "done"),
			},
			roles: []string{roleUser, roleModel, roleFunction, roleModel},
			parts: []int{1, 1, 2, 1},
		},
		{
			name: "call without response",
			in: []geminiContent{
				textTurn(roleUser, "q"),
				callTurn("a", "getWeather"),
				textTurn(roleUser, "never mind"),
			},
			roles: []string{roleUser, roleModel, roleUser},
			parts: []int{1, 1, 1},
		},
		{
			name: "plain turn between call and response",
			in: []geminiContent{
				textTurn(roleUser, "q"),
				callTurn("a", "getWeather"),
				textTurn(roleModel, "checking"),
				responseTurn("a", "getWeather"),
			},
			roles: []string{roleUser, roleModel, roleFunction, roleModel},
			parts: []int{1, 1, 1, 1},
		},
		{
			name: "response after a flushed group passes through",
			in: []geminiContent{
				textTurn(roleUser, "q"),
				callTurn("a", "getWeather"),
				responseTurn("a", "getWeather"),
				textTurn(roleModel, "done"),
				responseTurn("late", "getWeather"),
			},
			roles: []string{roleUser, roleModel, roleFunction, roleModel, roleFunction},
			parts: []int{1, 1, 1, 1, 1},
		},
		{
			name: "orphan response passes through",
			in: []geminiContent{
				textTurn(roleUser, "q"),
				responseTurn("x", "getMovies"),
			},
			roles: []string{roleUser, roleFunction},
			parts: []int{1, 1},
		},
		{
			name: "responses at end of history",
			in: []geminiContent{
				textTurn(roleUser, "q"),
				callTurn("a", "getWeather"),
				responseTurn("a", "getWeather"),
				responseTurn("b", "getWeather"),
				responseTurn("c", "getWeather"),
			},
			roles: []string{roleUser, roleModel, roleFunction},
			parts: []int{1, 1, 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := MergeFunctionResponses(tt.in)
			assert.Equal(t, tt.roles, roles(out))
			got := make([]int, len(out))
			for i, c := range out {
				got[i] = len(c.Parts)
			}
			assert.Equal(t, tt.parts, got)
		})
	}
}

// Two call groups with no plain turn between them each keep their own
// single response turn.
func TestMergeFunctionResponses_AdjacentGroups(t *testing.T) {
	in := []geminiContent{
		textTurn(roleUser, "What's the weather in Paris, and what movies are showing there?"),
		callTurn("w1", "getWeather"),
		responseTurn("w1", "getWeather"),
		callTurn("m1", "getMovies"),
		responseTurn("m1", "getMovies"),
	}

	out := MergeFunctionResponses(in)
	require.Equal(t, []string{roleUser, roleModel, roleFunction, roleModel, roleFunction}, roles(out))
	assert.Equal(t, "getWeather", out[2].Parts[0].FunctionResponse.Name)
	assert.Equal(t, "getMovies", out[4].Parts[0].FunctionResponse.Name)
	require.Len(t, out[2].Parts, 1)
	require.Len(t, out[4].Parts, 1)
}

func TestConvertToGeminiContents_TwoToolScenario(t *testing.T) {
	w := types.ToolCall{ID: "w1", Name: "getWeather", Arguments: `{"location":"Paris","unit":"Celsius"}`}
	m := types.ToolCall{ID: "m1", Name: "getMovies", Arguments: `{"location":"Paris"}`}
	msgs := []types.Message{
		types.NewUserMessage("What's the weather in Paris, and what movies are showing there?"),
		types.NewAssistantMessage("", w),
		types.NewToolMessage("w1", `{"temperature":18}`),
		types.NewAssistantMessage("", m),
		types.NewToolMessage("m1", `["Amelie","La Haine"]`),
	}

	sys, contents := convertToGeminiContents("", msgs)
	assert.Nil(t, sys)
	require.Equal(t, []string{roleUser, roleModel, roleFunction, roleModel, roleFunction}, roles(contents))

	weather := contents[2].Parts[0].FunctionResponse
	assert.Equal(t, "getWeather", weather.Name)
	assert.JSONEq(t, `{"temperature":18}`, string(weather.Response))

	movies := contents[4].Parts[0].FunctionResponse
	assert.Equal(t, "getMovies", movies.Name)
	assert.JSONEq(t, `{"result":["Amelie","La Haine"]}`, string(movies.Response))
}

// For any sequence of call groups with 0..M responses each, optionally with
// plain turns before the call or between the call and its responses, the
// rewrite keeps every call turn and gives each answered group exactly one
// response turn right after its call, with parts in their original order.
func TestProperty_MergeFunctionResponses(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		k := rapid.IntRange(0, 6).Draw(rt, "groups")
		in := []geminiContent{textTurn(roleUser, "start")}
		nonEmpty, totalResponses := 0, 0
		var wantParts [][]string
		for g := 0; g < k; g++ {
			if rapid.Bool().Draw(rt, "plain") {
				in = append(in, textTurn(roleUser, "interlude"))
			}
			in = append(in, callTurn(fmt.Sprintf("g%d", g), "fn"))
			if rapid.Bool().Draw(rt, "gap") {
				in = append(in, textTurn(roleModel, "checking"))
			}
			m := rapid.IntRange(0, 4).Draw(rt, "responses")
			var ids []string
			for r := 0; r < m; r++ {
				id := fmt.Sprintf("g%d_r%d", g, r)
				in = append(in, responseTurn(id, "fn"))
				ids = append(ids, id)
			}
			totalResponses += m
			if m > 0 {
				nonEmpty++
				wantParts = append(wantParts, ids)
			}
		}

		out := MergeFunctionResponses(in)

		calls, responses := 0, 0
		var gotParts [][]string
		for i, c := range out {
			switch {
			case c.isCall():
				calls++
			case c.Role == roleFunction:
				responses++
				require.True(rt, i > 0 && out[i-1].isCall(), "response turn %d does not follow a call", i)
				var ids []string
				for _, p := range c.Parts {
					ids = append(ids, p.FunctionResponse.ID)
				}
				gotParts = append(gotParts, ids)
			}
		}
		require.Equal(rt, k, calls)
		require.Equal(rt, nonEmpty, responses)
		require.Equal(rt, wantParts, gotParts)
		require.Len(rt, out, len(in)-totalResponses+nonEmpty)
	})
}
