package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/streamrelay/agent"
	"github.com/BaSui01/streamrelay/internal/ctxkeys"
	"github.com/BaSui01/streamrelay/llm"
	"github.com/BaSui01/streamrelay/types"
)

// ProviderKeyHeader carries a per-request provider credential.
const ProviderKeyHeader = "X-Provider-API-Key"

// =============================================================================
// 💬 生成流接口 Handler
// =============================================================================

// ChatStreamer starts one generation. agent.Service implements it.
type ChatStreamer interface {
	Stream(ctx context.Context, req agent.ChatRequest) (<-chan llm.StreamChunk, error)
}

// ChatHandler 生成流处理器
type ChatHandler struct {
	service        ChatStreamer
	originPatterns []string
	logger         *zap.Logger
}

// NewChatHandler 创建生成流处理器。originPatterns 为允许跨域的 WebSocket Origin。
func NewChatHandler(service ChatStreamer, originPatterns []string, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		service:        service,
		originPatterns: originPatterns,
		logger:         logger.With(zap.String("handler", "chat")),
	}
}

// HandleStream 处理 SSE 生成请求
// @Summary 流式生成
// @Tags 生成
// @Accept json
// @Produce text/event-stream
// @Router /api/v1/chat/stream [post]
func (h *ChatHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req agent.ChatRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := validateChatRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "streaming not supported", h.logger)
		return
	}

	ctx := h.requestContext(r, &req)
	stream, err := h.service.Stream(ctx, req)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	// 先读第一条记录：在写响应头之前失败的生成仍可返回正确的状态码
	first, ok := <-stream
	if ok && first.Err != nil {
		drain(stream)
		WriteError(w, first.Err, h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sse := &sseWriter{w: w, flusher: flusher}
	if ok {
		if err := sse.chunk(first); err != nil {
			drain(stream)
			return
		}
		for chunk := range stream {
			if err := sse.chunk(chunk); err != nil {
				h.logger.Debug("client went away", zap.Error(err))
				drain(stream)
				return
			}
			// 错误记录即流的结尾，不再发送 [DONE]
			if chunk.Err != nil {
				h.logger.Warn("generation ended with error", zap.String("code", string(AsAPIError(chunk.Err).Code)))
				drain(stream)
				return
			}
		}
	}
	if ctx.Err() != nil {
		return
	}
	_ = sse.done()
}

// HandleWebSocket 处理 WebSocket 生成请求：客户端发送一条 ChatRequest，
// 服务端逐条发送记录后正常关闭。
// @Summary WebSocket 流式生成
// @Tags 生成
// @Router /api/v1/chat/ws [get]
func (h *ChatHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	var req agent.ChatRequest
	if err := wsjson.Read(r.Context(), conn, &req); err != nil {
		h.logger.Debug("websocket read failed", zap.Error(err))
		_ = conn.Close(websocket.StatusUnsupportedData, "expected a chat request")
		return
	}

	// 之后客户端的任何消息或断开都会取消 ctx
	ctx := conn.CloseRead(h.requestContext(r, &req))

	if err := validateChatRequest(&req); err != nil {
		h.closeWithError(ctx, conn, err)
		return
	}

	stream, err := h.service.Stream(ctx, req)
	if err != nil {
		h.closeWithError(ctx, conn, err)
		return
	}

	for chunk := range stream {
		if chunk.Err != nil {
			h.closeWithError(ctx, conn, chunk.Err)
			drain(stream)
			return
		}
		if err := wsjson.Write(ctx, conn, chunk.Chunk); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			drain(stream)
			return
		}
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (h *ChatHandler) closeWithError(ctx context.Context, conn *websocket.Conn, err error) {
	h.logger.Warn("generation ended with error", zap.String("code", string(AsAPIError(err).Code)))
	_ = wsjson.Write(ctx, conn, types.NewErrorRecord(err))
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (h *ChatHandler) requestContext(r *http.Request, req *agent.ChatRequest) context.Context {
	ctx := r.Context()
	ctx = ctxkeys.WithThreadID(ctx, req.ThreadID)
	ctx = ctxkeys.WithTask(ctx, req.Task)
	if key := strings.TrimSpace(r.Header.Get(ProviderKeyHeader)); key != "" {
		ctx = llm.WithCredentialOverride(ctx, llm.CredentialOverride{APIKey: key})
	}
	return ctx
}

func validateChatRequest(req *agent.ChatRequest) *types.Error {
	if strings.TrimSpace(req.ThreadID) == "" {
		return types.NewError(types.ErrInvalidRequest, "thread_id is required")
	}
	return nil
}

// drain releases the producer after the consumer gives up.
func drain(stream <-chan llm.StreamChunk) {
	go func() {
		for range stream {
		}
	}()
}

// =============================================================================
// 📡 SSE 编码
// =============================================================================

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseWriter) chunk(c llm.StreamChunk) error {
	if c.Err != nil {
		return s.event("error", types.NewErrorRecord(c.Err))
	}
	return s.event("", c.Chunk)
}

func (s *sseWriter) event(name string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	var b strings.Builder
	if name != "" {
		b.WriteString("event: ")
		b.WriteString(name)
		b.WriteByte('\n')
	}
	b.WriteString("data: ")
	b.Write(data)
	b.WriteString("\n\n")
	if _, err := s.w.Write([]byte(b.String())); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) done() error {
	if _, err := s.w.Write([]byte("data: [DONE]\n\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
