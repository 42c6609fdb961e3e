// Package factory provides a centralized factory for creating LLM Provider
// instances by name. It imports all provider sub-packages and maps string
// names to their constructors, breaking the import cycle that would occur
// if this logic lived in the llm package directly.
package factory

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/BaSui01/streamrelay/llm"
	"github.com/BaSui01/streamrelay/llm/providers"
	claude "github.com/BaSui01/streamrelay/llm/providers/anthropic"
	"github.com/BaSui01/streamrelay/llm/providers/gemini"
	"github.com/BaSui01/streamrelay/llm/providers/openai"
	"github.com/BaSui01/streamrelay/llm/providers/openaicompat"
	"go.uber.org/zap"
)

// ProviderConfig is the generic configuration accepted by the factory function.
// It uses a flat structure with an Extra map for provider-specific fields.
type ProviderConfig struct {
	APIKey  string         `json:"api_key" yaml:"api_key"`
	BaseURL string         `json:"base_url" yaml:"base_url"`
	Model   string         `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Extra   map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

func (c ProviderConfig) extraString(key string) string {
	if c.Extra == nil {
		return ""
	}
	v, _ := c.Extra[key].(string)
	return v
}

// compatVendor is an OpenAI-compatible backend with known defaults.
type compatVendor struct {
	baseURL      string
	endpointPath string
	model        string
}

var compatVendors = map[string]compatVendor{
	"deepseek": {baseURL: "https://api.deepseek.com", endpointPath: "/chat/completions", model: "deepseek-chat"},
	"qwen":     {baseURL: "https://dashscope.aliyuncs.com/compatible-mode", model: "qwen-plus"},
	"grok":     {baseURL: "https://api.x.ai", model: "grok-2-latest"},
	"mistral":  {baseURL: "https://api.mistral.ai", model: "mistral-large-latest"},
	"groq":     {baseURL: "https://api.groq.com/openai", model: "llama-3.3-70b-versatile"},
}

// apiKeyEnv names the environment variable consulted when no key is configured.
var apiKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"claude":    "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"deepseek":  "DEEPSEEK_API_KEY",
	"qwen":      "DASHSCOPE_API_KEY",
	"grok":      "XAI_API_KEY",
	"mistral":   "MISTRAL_API_KEY",
	"groq":      "GROQ_API_KEY",
}

// NewProviderFromConfig creates a Provider instance based on the provider name
// and a generic ProviderConfig. It maps the name to the appropriate constructor.
//
// A missing API key is not an error here: the adapter reports a
// configuration error when a generation is first requested.
func NewProviderFromConfig(name string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIKey == "" {
		if env, ok := apiKeyEnv[name]; ok {
			cfg.APIKey = os.Getenv(env)
		}
	}

	base := providers.BaseProviderConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}

	switch name {
	case "openai":
		return openai.NewOpenAIProvider(providers.OpenAIConfig{
			BaseProviderConfig: base,
			Organization:       cfg.extraString("organization"),
		}, logger), nil

	case "anthropic", "claude":
		return claude.NewClaudeProvider(providers.ClaudeConfig{
			BaseProviderConfig: base,
			AnthropicVersion:   cfg.extraString("anthropic_version"),
		}, logger), nil

	case "gemini":
		return gemini.NewGeminiProvider(providers.GeminiConfig{BaseProviderConfig: base}, logger), nil
	}

	oc := openaicompat.Config{
		ProviderName: name,
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
		EndpointPath: cfg.extraString("endpoint_path"),
	}
	if v, ok := compatVendors[name]; ok {
		if oc.BaseURL == "" {
			oc.BaseURL = v.baseURL
		}
		if oc.EndpointPath == "" {
			oc.EndpointPath = v.endpointPath
		}
		oc.DefaultModel = providers.ChooseModel(oc.DefaultModel, v.model)
		return openaicompat.New(oc, logger), nil
	}

	// 通用 OpenAI 兼容提供商：任意名称 + base_url 即可接入
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("unknown provider %q: built-in provider not found, and base_url is required for generic OpenAI-compatible provider", name)
	}
	logger.Info("creating generic OpenAI-compatible provider",
		zap.String("provider", name),
		zap.String("base_url", cfg.BaseURL))
	return openaicompat.New(oc, logger), nil
}

// SupportedProviders returns the list of built-in provider names.
// Any name not in this list will be treated as a generic OpenAI-compatible
// provider, requiring base_url in the configuration.
func SupportedProviders() []string {
	names := []string{"openai", "anthropic", "claude", "gemini"}
	vendors := make([]string, 0, len(compatVendors))
	for name := range compatVendors {
		vendors = append(vendors, name)
	}
	sort.Strings(vendors)
	return append(names, vendors...)
}

// RegistryConfig describes multiple providers and which one is the default.
// Use this with NewRegistryFromConfig to build a ProviderRegistry in one call.
type RegistryConfig struct {
	// Default is the name of the default provider (must match a key in Providers).
	Default string `json:"default" yaml:"default"`
	// Providers maps provider names to their configurations.
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
}

// NewRegistryFromConfig creates a ProviderRegistry populated with all providers
// defined in the RegistryConfig. It sets the default provider if specified.
// Any provider that fails to initialize is logged as a warning and skipped.
func NewRegistryFromConfig(cfg RegistryConfig, logger *zap.Logger) (*llm.ProviderRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := llm.NewProviderRegistry()

	for name, pcfg := range cfg.Providers {
		p, err := NewProviderFromConfig(name, pcfg, logger)
		if err != nil {
			logger.Warn("skipping provider: initialization failed",
				zap.String("provider", name),
				zap.Error(err))
			continue
		}
		reg.Register(name, p)
		logger.Info("provider registered", zap.String("provider", name))
	}

	if cfg.Default != "" {
		if err := reg.SetDefault(cfg.Default); err != nil {
			return reg, fmt.Errorf("failed to set default provider %q: %w", cfg.Default, err)
		}
	}

	return reg, nil
}
