package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/streamrelay/internal/tlsutil"
	"github.com/BaSui01/streamrelay/llm"
	"github.com/BaSui01/streamrelay/llm/middleware"
	"github.com/BaSui01/streamrelay/llm/providers"
	"github.com/BaSui01/streamrelay/types"
	"go.uber.org/zap"
)

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	// ProviderName is the unique identifier for this provider (e.g., "deepseek", "qwen").
	ProviderName string

	// APIKey is the authentication key for the provider's API.
	APIKey string

	// BaseURL is the base URL for the provider's API (e.g., "https://api.deepseek.com").
	BaseURL string

	// DefaultModel is the model to use when none is specified in the request.
	DefaultModel string

	// Timeout bounds the wait for response headers. Defaults to 60s.
	Timeout time.Duration

	// EndpointPath is the chat completions endpoint path. Defaults to "/v1/chat/completions".
	EndpointPath string

	// BuildHeaders is an optional function to set custom headers on each request.
	// If nil, the default "Authorization: Bearer <apiKey>" header is used.
	BuildHeaders func(req *http.Request, apiKey string)

	// HTTPClient overrides the default streaming client.
	HTTPClient *http.Client
}

// Provider is the direct-mapping adapter.
type Provider struct {
	Cfg           Config
	Client        *http.Client
	Logger        *zap.Logger
	RewriterChain *middleware.RewriterChain
}

// New creates a new OpenAI-compatible provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = tlsutil.StreamingHTTPClient(cfg.Timeout)
	}
	return &Provider{
		Cfg:           cfg,
		Client:        client,
		Logger:        logger.With(zap.String("provider", cfg.ProviderName)),
		RewriterChain: middleware.DefaultRewriterChain(),
	}
}

// Compile-time interface check.
var _ llm.Provider = (*Provider)(nil)

// Name returns the provider name.
func (p *Provider) Name() string { return p.Cfg.ProviderName }

func (p *Provider) buildHeaders(req *http.Request, apiKey string) {
	if p.Cfg.BuildHeaders != nil {
		p.Cfg.BuildHeaders(req, apiKey)
		return
	}
	providers.BearerTokenHeaders(req, apiKey)
}

func (p *Provider) endpoint() string {
	return strings.TrimRight(p.Cfg.BaseURL, "/") + p.Cfg.EndpointPath
}

// BuildRequest applies the rewriter chain and maps req to the wire body.
func (p *Provider) BuildRequest(ctx context.Context, req *llm.GenerateRequest) (*Request, error) {
	rewritten, err := p.RewriterChain.Execute(ctx, req)
	if err != nil {
		if e, ok := types.AsError(err); ok {
			return nil, e.WithProvider(p.Name())
		}
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.Name())
	}
	return &Request{
		Model:       providers.ChooseModel(rewritten.Model, p.Cfg.DefaultModel),
		Messages:    ToWireMessages(rewritten.Instructions, rewritten.Messages),
		Tools:       ToWireTools(rewritten.Tools),
		Temperature: rewritten.Config.Temperature,
		MaxTokens:   rewritten.Config.MaxTokens,
		Stream:      true,
	}, nil
}

// GenerateResponse streams a chat completion.
func (p *Provider) GenerateResponse(ctx context.Context, req *llm.GenerateRequest) (<-chan llm.StreamChunk, error) {
	apiKey := llm.ResolveAPIKey(ctx, p.Cfg.APIKey)
	if apiKey == "" {
		return nil, types.NewConfigurationError(p.Name(), "missing API key")
	}

	body, err := p.BuildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewConfigurationError(p.Name(), fmt.Sprintf("invalid endpoint: %v", err))
	}
	p.buildHeaders(httpReq, apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, providers.WrapTransportError(err, p.Name())
	}
	if resp.StatusCode >= 400 {
		defer providers.SafeCloseBody(resp.Body)
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	p.Logger.Debug("stream opened", zap.String("model", body.Model), zap.Int("messages", len(body.Messages)))
	return StreamSSE(ctx, resp.Body, p.Name()), nil
}

// streamResponse is one chat.completion.chunk event.
type streamResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []streamChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type streamChoice struct {
	Index        int          `json:"index"`
	Delta        *streamDelta `json:"delta,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`
}

type streamDelta struct {
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// StreamSSE parses an OpenAI-compatible event stream into canonical chunks.
// It owns body and closes it when the stream ends or ctx is cancelled.
func StreamSSE(ctx context.Context, body io.ReadCloser, providerName string) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		defer providers.SafeCloseBody(body)

		s := &sseState{ctx: ctx, out: ch, provider: providerName, acc: llm.NewToolCallAccumulator(providerName)}
		err := providers.ReadSSE(ctx, body, s.handle)
		if ctx.Err() != nil {
			return
		}
		if err == nil && !s.finished {
			err = types.NewTransientStreamError(providerName, "stream ended before a finish signal")
		}
		if err != nil {
			llm.Send(ctx, ch, llm.ErrorChunk(providers.WrapTransportError(err, providerName)))
		}
	}()
	return ch
}

type sseState struct {
	ctx      context.Context
	out      chan<- llm.StreamChunk
	provider string
	acc      *llm.ToolCallAccumulator
	finished bool
}

func (s *sseState) handle(_ string, data string) error {
	if data == "[DONE]" {
		if err := s.flushCalls(); err != nil {
			return err
		}
		return io.EOF
	}

	var event streamResponse
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return types.NewTransientStreamError(s.provider, "malformed stream event").WithCause(err)
	}
	if event.Error != nil {
		return types.NewTransientStreamError(s.provider, event.Error.Message)
	}

	for _, choice := range event.Choices {
		if choice.Index != 0 {
			continue
		}
		if d := choice.Delta; d != nil {
			if d.Content != "" {
				if !llm.Send(s.ctx, s.out, llm.TextChunk(d.Content)) {
					return s.ctx.Err()
				}
			}
			for i, tc := range d.ToolCalls {
				idx := i
				if tc.Index != nil {
					idx = *tc.Index
				}
				if !s.acc.IsOpen(idx) && (tc.ID != "" || tc.Function.Name != "") {
					if err := s.acc.Open(idx, tc.ID, tc.Function.Name); err != nil {
						return err
					}
				}
				if tc.Function.Arguments != "" {
					if err := s.acc.Append(idx, tc.Function.Arguments); err != nil {
						return err
					}
				}
			}
		}
		if choice.FinishReason != "" {
			if err := s.flushCalls(); err != nil {
				return err
			}
		}
	}
	return nil
}

// flushCalls emits every accumulated call at end-of-turn.
func (s *sseState) flushCalls() error {
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
