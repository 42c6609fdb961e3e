package middleware

import (
	"context"

	"github.com/BaSui01/streamrelay/llm"
	"github.com/BaSui01/streamrelay/types"
)

// EmptyToolsCleaner 工具列表清理器
// 丢弃没有名称的工具与重名工具（同一请求内名称唯一），空列表归一为 nil，
// 使 Provider 在请求体中省略 tools 字段
type EmptyToolsCleaner struct{}

// NewEmptyToolsCleaner 创建工具清理器
func NewEmptyToolsCleaner() *EmptyToolsCleaner {
	return &EmptyToolsCleaner{}
}

// Name 返回改写器名称
func (r *EmptyToolsCleaner) Name() string {
	return "empty_tools_cleaner"
}

// Rewrite 执行改写
func (r *EmptyToolsCleaner) Rewrite(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateRequest, error) {
	if req == nil {
		return req, nil
	}
	out := req.Clone()
	if len(out.Tools) == 0 {
		out.Tools = nil
		return out, nil
	}

	seen := make(map[string]struct{}, len(out.Tools))
	tools := make([]types.ToolDefinition, 0, len(out.Tools))
	for _, t := range out.Tools {
		if t.Name == "" {
			continue
		}
		if _, dup := seen[t.Name]; dup {
			continue
		}
		seen[t.Name] = struct{}{}
		tools = append(tools, t)
	}
	if len(tools) == 0 {
		tools = nil
	}
	out.Tools = tools
	return out, nil
}
