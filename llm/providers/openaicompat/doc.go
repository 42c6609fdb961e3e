// Package openaicompat implements the direct-mapping adapter shared by every
// OpenAI-compatible backend (OpenAI, DeepSeek, Qwen, Grok, Mistral, ...).
//
// Canonical messages already match the Chat Completions shape, so mapping is a
// field copy. Instructions lead as a system message. Tool call fragments are
// keyed by their delta index and released when a finish_reason arrives.
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "deepseek",
//	    APIKey:       cfg.APIKey,
//	    BaseURL:      "https://api.deepseek.com",
//	    DefaultModel: "deepseek-chat",
//	}, logger)
package openaicompat
