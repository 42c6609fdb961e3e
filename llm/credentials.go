package llm

import (
	"context"
	"strings"
)

type credentialOverrideKey struct{}

// CredentialOverride 用于在单次请求内覆盖 Provider 凭据。
// 仅通过 context 传递，不会从 API JSON 反序列化。
type CredentialOverride struct {
	APIKey string
}

func (c CredentialOverride) String() string {
	if c.APIKey == "" {
		return "CredentialOverride{}"
	}
	return "CredentialOverride{APIKey:***}"
}

// WithCredentialOverride 在 ctx 中写入凭据覆盖信息。空 APIKey 不会改变 ctx。
func WithCredentialOverride(ctx context.Context, c CredentialOverride) context.Context {
	if c.APIKey == "" {
		return ctx
	}
	return context.WithValue(ctx, credentialOverrideKey{}, c)
}

// CredentialOverrideFromContext 从 ctx 读取凭据覆盖信息。
func CredentialOverrideFromContext(ctx context.Context) (CredentialOverride, bool) {
	c, ok := ctx.Value(credentialOverrideKey{}).(CredentialOverride)
	return c, ok
}

// ResolveAPIKey picks the per-request override when present, else configured.
func ResolveAPIKey(ctx context.Context, configured string) string {
	if c, ok := CredentialOverrideFromContext(ctx); ok && strings.TrimSpace(c.APIKey) != "" {
		return strings.TrimSpace(c.APIKey)
	}
	return strings.TrimSpace(configured)
}
