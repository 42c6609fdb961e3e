package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/streamrelay/internal/tlsutil"
	"github.com/BaSui01/streamrelay/llm"
	"github.com/BaSui01/streamrelay/llm/middleware"
	"github.com/BaSui01/streamrelay/llm/providers"
	"github.com/BaSui01/streamrelay/types"
	"go.uber.org/zap"
)

const (
	defaultBaseURL          = "https://api.anthropic.com"
	defaultModel            = "claude-3-5-sonnet-20241022"
	defaultAnthropicVersion = "2023-06-01"
	defaultMaxTokens        = 4096
)

// ClaudeProvider 实现 Anthropic Claude 的内容块适配
type ClaudeProvider struct {
	cfg           providers.ClaudeConfig
	client        *http.Client
	logger        *zap.Logger
	rewriterChain *middleware.RewriterChain
}

// NewClaudeProvider 创建 Claude 提供者
func NewClaudeProvider(cfg providers.ClaudeConfig, logger *zap.Logger) *ClaudeProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.AnthropicVersion == "" {
		cfg.AnthropicVersion = defaultAnthropicVersion
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaudeProvider{
		cfg:           cfg,
		client:        tlsutil.StreamingHTTPClient(cfg.Timeout),
		logger:        logger.With(zap.String("provider", "anthropic")),
		rewriterChain: middleware.DefaultRewriterChain(),
	}
}

var _ llm.Provider = (*ClaudeProvider)(nil)

func (p *ClaudeProvider) Name() string { return "anthropic" }

type claudeRequest struct {
	Model       string          `json:"model"`
	Messages    []claudeMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
	Stream      bool            `json:"stream"`
	Tools       []claudeTool    `json:"tools,omitempty"`
}

func (p *ClaudeProvider) buildHeaders(req *http.Request, apiKey string) {
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", p.cfg.AnthropicVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
}

func (p *ClaudeProvider) buildRequest(ctx context.Context, req *llm.GenerateRequest) (*claudeRequest, error) {
	rewritten, err := p.rewriterChain.Execute(ctx, req)
	if err != nil {
		if e, ok := types.AsError(err); ok {
			return nil, e.WithProvider(p.Name())
		}
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.Name())
	}
	model := p.cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &claudeRequest{
		Model:       providers.ChooseModel(rewritten.Model, model),
		Messages:    toClaudeMessages(rewritten.Instructions, rewritten.Messages),
		MaxTokens:   rewritten.Config.MaxTokensOr(defaultMaxTokens),
		Temperature: rewritten.Config.Temperature,
		Stream:      true,
		Tools:       toClaudeTools(rewritten.Tools),
	}, nil
}

// GenerateResponse streams a Messages API completion.
func (p *ClaudeProvider) GenerateResponse(ctx context.Context, req *llm.GenerateRequest) (<-chan llm.StreamChunk, error) {
	apiKey := llm.ResolveAPIKey(ctx, p.cfg.APIKey)
	if apiKey == "" {
		return nil, types.NewConfigurationError(p.Name(), "missing API key")
	}

	body, err := p.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/messages"
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

	p.logger.Debug("stream opened", zap.String("model", body.Model), zap.Int("messages", len(body.Messages)))
	return streamSSE(ctx, resp.Body, p.Name()), nil
}

// claudeStreamEvent 表示 Claude SSE 事件
type claudeStreamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text,omitempty"`
		PartialJSON string `json:"partial_json,omitempty"`
	} `json:"delta,omitempty"`
	ContentBlock *claudeContent `json:"content_block,omitempty"`
	Error        *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
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
			err = types.NewTransientStreamError(providerName, "stream ended before message_stop")
		}
		if err != nil {
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
	finished bool
}

func (s *streamState) handle(_ string, data string) error {
	var event claudeStreamEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return types.NewTransientStreamError(s.provider, "malformed stream event").WithCause(err)
	}

	switch event.Type {
	case "content_block_start":
		if cb := event.ContentBlock; cb != nil && cb.Type == "tool_use" {
			return s.acc.Open(event.Index, cb.ID, cb.Name)
		}

	case "content_block_delta":
		if event.Delta == nil {
			return nil
		}
		switch event.Delta.Type {
		case "text_delta":
			if event.Delta.Text != "" && !llm.Send(s.ctx, s.out, llm.TextChunk(event.Delta.Text)) {
				return s.ctx.Err()
			}
		case "input_json_delta":
			return s.acc.Append(event.Index, event.Delta.PartialJSON)
		}

	case "content_block_stop":
		if s.acc.IsOpen(event.Index) {
			return s.acc.Close(event.Index)
		}

	case "message_stop":
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
		return io.EOF

	case "error":
		msg := "upstream stream error"
		if event.Error != nil {
			msg = event.Error.Type + ": " + event.Error.Message
		}
		return types.NewTransientStreamError(s.provider, msg)
	}
	return nil
}
