package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/streamrelay/llm"
	"github.com/BaSui01/streamrelay/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

// --- helpers ---

func sseServer(t *testing.T, capture *Request, events ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if capture != nil {
			body, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(body, capture))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			fmt.Fprintf(w, "data: %s\n\n", e)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(baseURL string) *Provider {
	return New(Config{
		ProviderName: "openai",
		APIKey:       "test-key",
		BaseURL:      baseURL,
		DefaultModel: "gpt-4o-mini",
	}, zap.NewNop())
}

func generate(t *testing.T, p llm.Provider, req *llm.GenerateRequest) ([]types.Chunk, error) {
	t.Helper()
	ch, err := p.GenerateResponse(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return llm.Collect(ch)
}

func concatText(chunks []types.Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Text)
	}
	return sb.String()
}

// --- generation ---

func TestGenerateResponse_Text(t *testing.T) {
	var captured Request
	srv := sseServer(t, &captured,
		`{"id":"1","choices":[{"index":0,"delta":{"role":"assistant","content":"The first president was "}}]}`,
		`{"id":"1","choices":[{"index":0,"delta":{"content":"George Washington."}}]}`,
		`{"id":"1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		`[DONE]`,
	)
	p := newTestProvider(srv.URL)

	chunks, err := generate(t, p, &llm.GenerateRequest{
		Instructions: "You are a helpful assistant.",
		Messages:     []types.Message{types.NewUserMessage("Who was the first president of the United States?")},
		Config:       types.ModelConfiguration{Temperature: types.Float64(0.2)},
	})
	require.NoError(t, err)
	assert.Contains(t, concatText(chunks), "George Washington")

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.True(t, captured.Stream)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "You are a helpful assistant.", captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
	require.NotNil(t, captured.Temperature)
	assert.Equal(t, 0.2, *captured.Temperature)
	assert.Nil(t, captured.MaxTokens)
	assert.Empty(t, captured.Tools)
}

func TestGenerateResponse_ToolCall(t *testing.T) {
	var captured Request
	srv := sseServer(t, &captured,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_w1","type":"function","function":{"name":"getWeather","arguments":""}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"location\":\"San"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":" Francisco\",\"unit\":"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Fahrenheit\"}"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		`[DONE]`,
	)
	p := newTestProvider(srv.URL)

	weather := types.ToolDefinition{
		Name:        "getWeather",
		Description: "Get the current weather",
		Parameters: []types.ToolParameter{
			{Name: "location", Type: "string", Required: true},
			{Name: "unit", Type: "string", Enum: []string{"Celsius", "Fahrenheit"}, Required: true},
		},
	}
	chunks, err := generate(t, p, &llm.GenerateRequest{
		Messages: []types.Message{types.NewUserMessage("What's the weather in San Francisco in Fahrenheit?")},
		Tools:    []types.ToolDefinition{weather},
	})
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	call := chunks[0].ToolCall
	require.NotNil(t, call)
	assert.Equal(t, "call_w1", call.ID)
	assert.Equal(t, "getWeather", call.Name)
	var args map[string]string
	require.NoError(t, json.Unmarshal([]byte(call.Arguments), &args))
	assert.Equal(t, map[string]string{"location": "San Francisco", "unit": "Fahrenheit"}, args)

	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "function", captured.Tools[0].Type)
	assert.Equal(t, "getWeather", captured.Tools[0].Function.Name)
	assert.Equal(t, "object", captured.Tools[0].Function.Parameters["type"])
}

func TestGenerateResponse_TextBeforeToolCalls(t *testing.T) {
	srv := sseServer(t, nil,
		`{"choices":[{"index":0,"delta":{"content":"Checking."}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"a","function":{"name":"getWeather","arguments":"{}"}},{"index":1,"id":"b","function":{"name":"getMovies","arguments":"{}"}}]}}]}`,
		`{"choices":[{"index":0,"finish_reason":"tool_calls"}]}`,
		`[DONE]`,
	)
	chunks, err := generate(t, newTestProvider(srv.URL), &llm.GenerateRequest{
		Messages: []types.Message{types.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Checking.", chunks[0].Text)
	assert.Equal(t, "a", chunks[1].ToolCall.ID)
	assert.Equal(t, "b", chunks[2].ToolCall.ID)
}

func TestGenerateResponse_Failures(t *testing.T) {
	tests := []struct {
		name   string
		events []string
		code   types.ErrorCode
	}{
		{
			name:   "fragment for unopened call",
			events: []string{`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":3,"function":{"arguments":"{}"}}]}}]}`},
			code:   types.ErrAccumulatorInvariant,
		},
		{
			name:   "stream cut before finish",
			events: []string{`{"choices":[{"index":0,"delta":{"content":"Geo"}}]}`},
			code:   types.ErrTransientStream,
		},
		{
			name:   "malformed event",
			events: []string{`{"choices":[`},
			code:   types.ErrTransientStream,
		},
		{
			name:   "in-band error",
			events: []string{`{"error":{"message":"overloaded"}}`},
			code:   types.ErrTransientStream,
		},
		{
			name: "truncated arguments",
			events: []string{
				`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"a","function":{"name":"f","arguments":"{\"x\":"}}]}}]}`,
				`{"choices":[{"index":0,"finish_reason":"length"}]}`,
			},
			code: types.ErrTransientStream,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := sseServer(t, nil, tt.events...)
			_, err := generate(t, newTestProvider(srv.URL), &llm.GenerateRequest{
				Messages: []types.Message{types.NewUserMessage("hi")},
			})
			require.Error(t, err)
			assert.Equal(t, tt.code, types.GetErrorCode(err))
		})
	}
}

func TestGenerateResponse_MissingAPIKey(t *testing.T) {
	p := New(Config{ProviderName: "openai", BaseURL: "http://127.0.0.1:1"}, nil)

	_, err := p.GenerateResponse(context.Background(), &llm.GenerateRequest{})
	require.Error(t, err)
	assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
}

func TestGenerateResponse_CredentialOverride(t *testing.T) {
	srv := sseServer(t, nil, `{"choices":[{"index":0,"finish_reason":"stop"}]}`)
	p := New(Config{ProviderName: "openai", BaseURL: srv.URL}, nil)

	ctx := llm.WithCredentialOverride(context.Background(), llm.CredentialOverride{APIKey: "test-key"})
	ch, err := p.GenerateResponse(ctx, &llm.GenerateRequest{Messages: []types.Message{types.NewUserMessage("hi")}})
	require.NoError(t, err)
	_, err = llm.Collect(ch)
	assert.NoError(t, err)
}

func TestGenerateResponse_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"try later","type":"server_error"}}`))
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).GenerateResponse(context.Background(), &llm.GenerateRequest{
		Messages: []types.Message{types.NewUserMessage("hi")},
	})
	require.Error(t, err)
	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrTransientStream, e.Code)
	assert.Equal(t, http.StatusServiceUnavailable, e.HTTPStatus)
	assert.Contains(t, e.Message, "try later")
}

func TestGenerateResponse_InvalidHistory(t *testing.T) {
	p := newTestProvider("http://127.0.0.1:1")
	_, err := p.GenerateResponse(context.Background(), &llm.GenerateRequest{
		Messages: []types.Message{types.NewUserMessage("hi"), types.NewToolMessage("ghost", "{}")},
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestGenerateResponse_CancelClosesStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"partial\"}}]}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent(),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := newTestProvider(srv.URL).GenerateResponse(ctx, &llm.GenerateRequest{
		Messages: []types.Message{types.NewUserMessage("hi")},
	})
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, "partial", first.Text)
	cancel()

	select {
	case c, ok := <-ch:
		assert.False(t, ok, "unexpected chunk after cancel: %+v", c)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancel")
	}
}

// --- mapping ---

func TestToWireMessages_TrimsAndInjectsInstructions(t *testing.T) {
	call := types.ToolCall{ID: "c1", Name: "getWeather", Arguments: `{"location":"Paris"}`}
	msgs := []types.Message{
		types.NewSystemMessage("global"),
		types.NewAssistantMessage("leftover"),
		types.NewUserMessage("weather?"),
		types.NewAssistantMessage("", call),
		types.NewToolMessage("c1", `{"temp":20}`),
	}

	wire := ToWireMessages("base", msgs)
	require.Len(t, wire, 4)
	assert.Equal(t, Message{Role: "system", Content: "base\n\nglobal"}, wire[0])
	assert.Equal(t, "user", wire[1].Role)
	assert.Equal(t, "assistant", wire[2].Role)
	require.Len(t, wire[2].ToolCalls, 1)
	assert.Equal(t, `{"location":"Paris"}`, wire[2].ToolCalls[0].Function.Arguments)
	assert.Equal(t, Message{Role: "tool", Content: `{"temp":20}`, ToolCallID: "c1"}, wire[3])
}

func TestMapping_ToolResultRoundTrip(t *testing.T) {
	msgs := []types.Message{
		types.NewToolMessage("c1", `{"temp":20}`),
		types.NewAssistantMessage("", types.ToolCall{ID: "c1", Name: "getWeather", Arguments: `{"location":"Paris"}`}),
	}
	for _, m := range msgs {
		assert.Equal(t, m, FromWireMessage(ToWireMessage(m)))
	}
}
