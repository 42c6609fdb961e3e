// Package tools holds the explicit tool registry and the executor that runs
// the tool calls a model emits.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/streamrelay/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// InvokeFunc runs a tool with its JSON arguments and returns the result text.
type InvokeFunc func(ctx context.Context, args string) (string, error)

// RateLimitConfig defines rate limit configuration.
type RateLimitConfig struct {
	MaxCalls int           // Maximum calls
	Window   time.Duration // Time window
}

// Descriptor is everything the registry knows about one tool.
type Descriptor struct {
	Name        string
	Description string
	Parameters  []types.ToolParameter
	Invoke      InvokeFunc
	Timeout     time.Duration    // Execution timeout (default 30s)
	RateLimit   *RateLimitConfig // optional
}

// Definition returns the model-facing part of the descriptor.
func (d Descriptor) Definition() types.ToolDefinition {
	return types.ToolDefinition{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.Parameters,
	}
}

const defaultToolTimeout = 30 * time.Second

// Registry maps tool ids to descriptors. Tools are added by explicit Register
// calls at startup; nothing is discovered implicitly.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Descriptor
	limiters map[string]*rate.Limiter // 工具级别的速率限制器
	logger   *zap.Logger
}

// NewRegistry 创建工具注册中心。
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:    make(map[string]Descriptor),
		limiters: make(map[string]*rate.Limiter),
		logger:   logger.With(zap.String("component", "tool_registry")),
	}
}

// Register adds d. Names must be unique and Invoke must be set.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if d.Invoke == nil {
		return fmt.Errorf("tool %s has no invoke function", d.Name)
	}
	// 设置默认超时
	if d.Timeout <= 0 {
		d.Timeout = defaultToolTimeout
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("tool %s already registered", d.Name)
	}
	r.tools[d.Name] = d
	if rl := d.RateLimit; rl != nil && rl.MaxCalls > 0 && rl.Window > 0 {
		r.limiters[d.Name] = rate.NewLimiter(rate.Every(rl.Window/time.Duration(rl.MaxCalls)), rl.MaxCalls)
	}

	r.logger.Info("tool registered", zap.String("name", d.Name), zap.Duration("timeout", d.Timeout))
	return nil
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// Resolve turns tool ids into definitions, keeping the order given.
// Any unknown id fails the whole call with ToolNotFound.
func (r *Registry) Resolve(ids []string) ([]types.ToolDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.ToolDefinition, 0, len(ids))
	for _, id := range ids {
		d, ok := r.tools[id]
		if !ok {
			return nil, types.NewToolNotFoundError(id)
		}
		out = append(out, d.Definition())
	}
	return out, nil
}

// List returns all registered definitions sorted by name.
func (r *Registry) List() []types.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.ToolDefinition, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d.Definition())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// allow 检查是否触发速率限制
func (r *Registry) allow(name string) bool {
	r.mu.RLock()
	limiter, ok := r.limiters[name]
	r.mu.RUnlock()
	if !ok {
		return true // 没有速率限制
	}
	return limiter.Allow()
}
