package middleware

import (
	"context"
	"fmt"

	"github.com/BaSui01/streamrelay/llm"
)

// RequestRewriter 请求改写器接口
// 在请求交给 Provider 之前对规范化请求做清理和校验
type RequestRewriter interface {
	// Rewrite 改写请求，返回新的请求；不得修改入参
	Rewrite(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateRequest, error)

	// Name 返回改写器名称（用于日志和调试）
	Name() string
}

// RewriterChain 改写器链
// 按顺序执行多个改写器
type RewriterChain struct {
	rewriters []RequestRewriter
}

// NewRewriterChain 创建改写器链
func NewRewriterChain(rewriters ...RequestRewriter) *RewriterChain {
	return &RewriterChain{
		rewriters: rewriters,
	}
}

// DefaultRewriterChain 返回所有 Provider 共用的改写器链
func DefaultRewriterChain() *RewriterChain {
	return NewRewriterChain(NewEmptyToolsCleaner(), NewHistoryValidator())
}

// Execute 执行改写器链
// 任何一个失败则中断并返回 INVALID_REQUEST 错误
func (c *RewriterChain) Execute(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateRequest, error) {
	if c == nil || len(c.rewriters) == 0 {
		return req, nil
	}

	var err error
	for _, rewriter := range c.rewriters {
		req, err = rewriter.Rewrite(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("rewriter [%s] failed: %w", rewriter.Name(), err)
		}
	}

	return req, nil
}

// AddRewriter 动态添加改写器
func (c *RewriterChain) AddRewriter(rewriter RequestRewriter) {
	c.rewriters = append(c.rewriters, rewriter)
}
