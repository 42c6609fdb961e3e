package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/streamrelay/agent"
	"github.com/BaSui01/streamrelay/internal/ctxkeys"
	"github.com/BaSui01/streamrelay/llm"
	"github.com/BaSui01/streamrelay/types"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

// fakeStreamer 按预设记录回放一次生成
type fakeStreamer struct {
	chunks []llm.StreamChunk
	err    error

	mu       sync.Mutex
	got      agent.ChatRequest
	threadID string
	apiKey   string
}

func (f *fakeStreamer) Stream(ctx context.Context, req agent.ChatRequest) (<-chan llm.StreamChunk, error) {
	f.mu.Lock()
	f.got = req
	f.threadID, _ = ctxkeys.ThreadID(ctx)
	if o, ok := llm.CredentialOverrideFromContext(ctx); ok {
		f.apiKey = o.APIKey
	}
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for _, c := range f.chunks {
			if !llm.Send(ctx, ch, c) {
				return
			}
		}
	}()
	return ch, nil
}

func weatherCall() types.ToolCall {
	return types.ToolCall{ID: "call_1", Name: "getWeather", Arguments: `{"location":"Paris"}`}
}

func postStream(t *testing.T, h *ChatHandler, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		r.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.HandleStream(w, r)
	return w
}

// sseEvent 一条解析后的 SSE 事件
type sseEvent struct {
	name string
	data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var cur sseEvent
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if cur.data != "" || cur.name != "" {
				events = append(events, cur)
			}
			cur = sseEvent{}
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		}
	}
	require.NoError(t, sc.Err())
	return events
}

// =============================================================================
// 🧪 SSE 测试
// =============================================================================

func TestChatHandler_HandleStream(t *testing.T) {
	streamer := &fakeStreamer{chunks: []llm.StreamChunk{
		llm.TextChunk("Checking "),
		llm.TextChunk("the weather."),
		llm.ToolCallChunk(weatherCall()),
	}}
	h := NewChatHandler(streamer, nil, zap.NewNop())

	header := http.Header{}
	header.Set(ProviderKeyHeader, " sk-caller ")
	w := postStream(t, h, `{"task":"weather","thread_id":"t-1","input":"Paris?"}`, header)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 4)
	assert.JSONEq(t, `{"text":"Checking "}`, events[0].data)
	assert.JSONEq(t, `{"text":"the weather."}`, events[1].data)
	assert.JSONEq(t, `{"toolCall":{"id":"call_1","type":"function","function":{"name":"getWeather","arguments":"{\"location\":\"Paris\"}"}}}`, events[2].data)
	assert.Equal(t, "[DONE]", events[3].data)

	assert.Equal(t, agent.ChatRequest{Task: "weather", ThreadID: "t-1", Input: "Paris?"}, streamer.got)
	assert.Equal(t, "t-1", streamer.threadID)
	assert.Equal(t, "sk-caller", streamer.apiKey)
}

func TestChatHandler_HandleStream_MidStreamError(t *testing.T) {
	streamer := &fakeStreamer{chunks: []llm.StreamChunk{
		llm.TextChunk("partial"),
		llm.ErrorChunk(types.NewGenerationFailedError("openai", 3, nil)),
	}}
	h := NewChatHandler(streamer, nil, zap.NewNop())

	w := postStream(t, h, `{"thread_id":"t-1"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 2, "the error record ends the stream")
	assert.JSONEq(t, `{"text":"partial"}`, events[0].data)
	assert.Equal(t, "error", events[1].name)

	var rec types.ErrorRecord
	require.NoError(t, json.Unmarshal([]byte(events[1].data), &rec))
	assert.Equal(t, types.ErrGenerationFailed, rec.Error.Code)
	assert.NotContains(t, w.Body.String(), "[DONE]")
}

func TestChatHandler_HandleStream_Errors(t *testing.T) {
	tests := []struct {
		name     string
		streamer *fakeStreamer
		body     string
		want     int
		wantCode types.ErrorCode
	}{
		{
			name:     "missing thread id",
			streamer: &fakeStreamer{},
			body:     `{"task":"weather"}`,
			want:     http.StatusBadRequest,
			wantCode: types.ErrInvalidRequest,
		},
		{
			name:     "unknown field",
			streamer: &fakeStreamer{},
			body:     `{"thread_id":"t","prompt":"x"}`,
			want:     http.StatusBadRequest,
			wantCode: types.ErrInvalidRequest,
		},
		{
			name:     "unknown task",
			streamer: &fakeStreamer{err: types.NewTaskNotFoundError("nope")},
			body:     `{"task":"nope","thread_id":"t"}`,
			want:     http.StatusNotFound,
			wantCode: types.ErrTaskNotFound,
		},
		{
			name: "failure before first record",
			streamer: &fakeStreamer{chunks: []llm.StreamChunk{
				llm.ErrorChunk(types.NewGenerationFailedError("gemini", 3, nil)),
			}},
			body:     `{"thread_id":"t"}`,
			want:     http.StatusBadGateway,
			wantCode: types.ErrGenerationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewChatHandler(tt.streamer, nil, zap.NewNop())
			w := postStream(t, h, tt.body, nil)

			assert.Equal(t, tt.want, w.Code)
			var resp Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.wantCode), resp.Error.Code)
		})
	}
}

func TestChatHandler_HandleStream_EmptyGeneration(t *testing.T) {
	h := NewChatHandler(&fakeStreamer{}, nil, zap.NewNop())
	w := postStream(t, h, `{"thread_id":"t"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "[DONE]", events[0].data)
}

// =============================================================================
// 🧪 WebSocket 测试
// =============================================================================

func dialChat(t *testing.T, h *ChatHandler) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn, ctx
}

func TestChatHandler_HandleWebSocket(t *testing.T) {
	streamer := &fakeStreamer{chunks: []llm.StreamChunk{
		llm.TextChunk("Hi"),
		llm.ToolCallChunk(weatherCall()),
	}}
	conn, ctx := dialChat(t, NewChatHandler(streamer, nil, zap.NewNop()))

	require.NoError(t, wsjson.Write(ctx, conn, agent.ChatRequest{Task: "weather", ThreadID: "t-ws"}))

	var first, second types.Chunk
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	require.NoError(t, wsjson.Read(ctx, conn, &second))
	assert.Equal(t, "Hi", first.Text)
	require.NotNil(t, second.ToolCall)
	assert.Equal(t, weatherCall(), *second.ToolCall)

	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestChatHandler_HandleWebSocket_Error(t *testing.T) {
	streamer := &fakeStreamer{err: types.NewTaskNotFoundError("nope")}
	conn, ctx := dialChat(t, NewChatHandler(streamer, nil, zap.NewNop()))

	require.NoError(t, wsjson.Write(ctx, conn, agent.ChatRequest{Task: "nope", ThreadID: "t"}))

	var rec types.ErrorRecord
	require.NoError(t, wsjson.Read(ctx, conn, &rec))
	assert.Equal(t, types.ErrTaskNotFound, rec.Error.Code)

	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestChatHandler_HandleWebSocket_MissingThread(t *testing.T) {
	conn, ctx := dialChat(t, NewChatHandler(&fakeStreamer{}, nil, zap.NewNop()))

	require.NoError(t, wsjson.Write(ctx, conn, agent.ChatRequest{Task: "weather"}))

	var rec types.ErrorRecord
	require.NoError(t, wsjson.Read(ctx, conn, &rec))
	assert.Equal(t, types.ErrInvalidRequest, rec.Error.Code)
}
