package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/BaSui01/streamrelay/internal/tlsutil"
	"github.com/BaSui01/streamrelay/llm"
	"github.com/BaSui01/streamrelay/llm/middleware"
	"github.com/BaSui01/streamrelay/llm/providers"
	"github.com/BaSui01/streamrelay/types"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.0-flash"
)

// GeminiProvider 实现 Google Gemini 的角色重映射适配
type GeminiProvider struct {
	cfg           providers.GeminiConfig
	client        *http.Client
	logger        *zap.Logger
	rewriterChain *middleware.RewriterChain
}

// NewGeminiProvider 创建 Gemini Provider
func NewGeminiProvider(cfg providers.GeminiConfig, logger *zap.Logger) *GeminiProvider {
	// 设置默认 BaseURL
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiProvider{
		cfg:           cfg,
		client:        tlsutil.StreamingHTTPClient(cfg.Timeout),
		logger:        logger.With(zap.String("provider", "gemini")),
		rewriterChain: middleware.DefaultRewriterChain(),
	}
}

var _ llm.Provider = (*GeminiProvider)(nil)

func (p *GeminiProvider) Name() string { return "gemini" }

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	Tools             []geminiTool            `json:"tools,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
	Index        int           `json:"index"`
}

type geminiResponse struct {
	Candidates   []geminiCandidate `json:"candidates"`
	ModelVersion string            `json:"modelVersion,omitempty"`
	Error        *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (p *GeminiProvider) buildHeaders(req *http.Request, apiKey string) {
	// Gemini 使用 x-goog-api-key 认证
	req.Header.Set("x-goog-api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
}

func (p *GeminiProvider) buildRequest(ctx context.Context, req *llm.GenerateRequest) (*geminiRequest, string, error) {
	rewritten, err := p.rewriterChain.Execute(ctx, req)
	if err != nil {
		if e, ok := types.AsError(err); ok {
			return nil, "", e.WithProvider(p.Name())
		}
		return nil, "", types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.Name())
	}

	systemInstruction, contents := convertToGeminiContents(rewritten.Instructions, rewritten.Messages)
	body := &geminiRequest{
		Contents:          contents,
		Tools:             convertToGeminiTools(rewritten.Tools),
		SystemInstruction: systemInstruction,
	}
	if cfg := rewritten.Config; cfg.Temperature != nil || cfg.MaxTokens != nil {
		body.GenerationConfig = &geminiGenerationConfig{
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxTokens,
		}
	}

	model := p.cfg.Model
	if model == "" {
		model = defaultModel
	}
	return body, providers.ChooseModel(rewritten.Model, model), nil
}

// GenerateResponse streams a generateContent call.
func (p *GeminiProvider) GenerateResponse(ctx context.Context, req *llm.GenerateRequest) (<-chan llm.StreamChunk, error) {
	apiKey := llm.ResolveAPIKey(ctx, p.cfg.APIKey)
	if apiKey == "" {
		return nil, types.NewConfigurationError(p.Name(), "missing API key")
	}

	body, model, err := p.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse",
		strings.TrimRight(p.cfg.BaseURL, "/"), url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewConfigurationError(p.Name(), fmt.Sprintf("invalid endpoint: %v", err))
	}
	p.buildHeaders(httpReq, apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, providers.WrapTransportError(err, p.Name())
	}
	if resp.StatusCode >= 400 {
		defer providers.SafeCloseBody(resp.Body)
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	p.logger.Debug("stream opened", zap.String("model", model), zap.Int("contents", len(body.Contents)))
	return streamSSE(ctx, resp.Body, p.Name()), nil
}

func streamSSE(ctx context.Context, body io.ReadCloser, providerName string) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		defer providers.SafeCloseBody(body)

		s := &streamState{ctx: ctx, out: ch, provider: providerName, acc: llm.NewToolCallAccumulator(providerName)}
		err := providers.ReadSSE(ctx, body, s.handle)
		if ctx.Err() != nil {
			return
		}
		if err == nil && !s.finished {
			// Gemini 可能不带 finishReason 直接结束流
			err = s.flush()
		}
		if err != nil && ctx.Err() == nil {
			llm.Send(ctx, ch, llm.ErrorChunk(providers.WrapTransportError(err, providerName)))
		}
	}()
	return ch
}

type streamState struct {
	ctx      context.Context
	out      chan<- llm.StreamChunk
	provider string
	acc      *llm.ToolCallAccumulator
	next     int
	finished bool
}

func (s *streamState) handle(_ string, data string) error {
	var event geminiResponse
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return types.NewTransientStreamError(s.provider, "malformed stream event").WithCause(err)
	}
	if event.Error != nil {
		return types.NewTransientStreamError(s.provider, fmt.Sprintf("%s: %s", event.Error.Status, event.Error.Message))
	}

	for _, cand := range event.Candidates {
		if cand.Index != 0 {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				if !llm.Send(s.ctx, s.out, llm.TextChunk(part.Text)) {
					return s.ctx.Err()
				}
			}
			if fc := part.FunctionCall; fc != nil {
				if err := s.acc.Atomic(s.next, fc.ID, fc.Name, string(fc.Args)); err != nil {
					return err
				}
				s.next++
			}
		}
		switch cand.FinishReason {
		case "":
		case "MALFORMED_FUNCTION_CALL":
			return types.NewTransientStreamError(s.provider, "model produced a malformed function call")
		default:
			if err := s.flush(); err != nil {
				return err
			}
			return io.EOF
		}
	}
	return nil
}

// flush emits every recorded call.
func (s *streamState) flush() error {
	s.finished = true
	calls, err := s.acc.Complete()
	if err != nil {
		return err
	}
	for _, c := range calls {
		if !llm.Send(s.ctx, s.out, llm.ToolCallChunk(c)) {
			return s.ctx.Err()
		}
	}
	return nil
}
