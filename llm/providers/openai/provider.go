package openai

import (
	"net/http"

	"github.com/BaSui01/streamrelay/llm/providers"
	"github.com/BaSui01/streamrelay/llm/providers/openaicompat"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "gpt-4o-mini"
)

// OpenAIProvider 实现 OpenAI LLM 提供者.
type OpenAIProvider struct {
	*openaicompat.Provider
}

// NewOpenAIProvider 创建新的 OpenAI 提供者实例.
func NewOpenAIProvider(cfg providers.OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAIProvider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName: "openai",
			APIKey:       cfg.APIKey,
			BaseURL:      baseURL,
			DefaultModel: providers.ChooseModel(cfg.Model, defaultModel),
			Timeout:      cfg.Timeout,
			BuildHeaders: func(req *http.Request, apiKey string) {
				providers.BearerTokenHeaders(req, apiKey)
				if cfg.Organization != "" {
					req.Header.Set("OpenAI-Organization", cfg.Organization)
				}
			},
		}, logger),
	}
}
