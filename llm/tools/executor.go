package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/streamrelay/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ToolResult represents tool execution result.
type ToolResult struct {
	ToolCallID string        `json:"tool_call_id"`
	Name       string        `json:"name"`
	Result     string        `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Message converts the result into the tool message answering the call.
// Failures are reported to the model as {"error": "..."}.
func (r ToolResult) Message() types.Message {
	content := r.Result
	if r.Error != "" {
		b, _ := json.Marshal(map[string]string{"error": r.Error})
		content = string(b)
	}
	return types.NewToolMessage(r.ToolCallID, content)
}

// Executor runs emitted tool calls through a Registry.
type Executor struct {
	registry    *Registry
	concurrency int
	observe     func(ToolResult)
	logger      *zap.Logger
}

// NewExecutor 创建工具执行器。concurrency <= 0 表示不限制并发。
func NewExecutor(registry *Registry, concurrency int, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		registry:    registry,
		concurrency: concurrency,
		logger:      logger.With(zap.String("component", "tool_executor")),
	}
}

// WithObserver registers fn to receive every result, including failures.
func (e *Executor) WithObserver(fn func(ToolResult)) *Executor {
	e.observe = fn
	return e
}

// Execute runs every call concurrently and returns results in call order.
// A failing tool does not stop the others.
func (e *Executor) Execute(ctx context.Context, calls []types.ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))

	var g errgroup.Group
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.ExecuteOne(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ExecuteOne runs a single call with the tool's timeout.
func (e *Executor) ExecuteOne(ctx context.Context, call types.ToolCall) ToolResult {
	r := e.executeOne(ctx, call)
	if e.observe != nil {
		e.observe(r)
	}
	return r
}

func (e *Executor) executeOne(ctx context.Context, call types.ToolCall) ToolResult {
	start := time.Now()
	result := ToolResult{ToolCallID: call.ID, Name: call.Name}
	fail := func(msg string) ToolResult {
		result.Error = msg
		result.Duration = time.Since(start)
		return result
	}

	d, ok := e.registry.Get(call.Name)
	if !ok {
		e.logger.Error("tool not found", zap.String("name", call.Name))
		return fail(types.NewToolNotFoundError(call.Name).Message)
	}
	if !e.registry.allow(call.Name) {
		e.logger.Warn("rate limit exceeded", zap.String("name", call.Name))
		return fail("rate limit exceeded")
	}

	args := call.Arguments
	if args == "" {
		args = "{}"
	}
	if !json.Valid([]byte(args)) {
		e.logger.Error("invalid tool arguments", zap.String("name", call.Name))
		return fail("invalid arguments: not valid JSON")
	}

	execCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	// 带缓冲的 channel，超时后工具 goroutine 仍可退出
	type outcome struct {
		res string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := d.Invoke(execCtx, args)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		result.Duration = time.Since(start)
		if o.err != nil {
			result.Error = o.err.Error()
			e.logger.Error("tool execution failed",
				zap.String("name", call.Name),
				zap.Error(o.err),
				zap.Duration("duration", result.Duration))
			return result
		}
		result.Result = o.res
		e.logger.Info("tool executed successfully",
			zap.String("name", call.Name),
			zap.Duration("duration", result.Duration))
		return result

	case <-execCtx.Done():
		e.logger.Error("tool execution timeout",
			zap.String("name", call.Name),
			zap.Duration("timeout", d.Timeout))
		return fail(fmt.Sprintf("execution timeout after %s", d.Timeout))
	}
}

// Messages converts results to tool messages, preserving order.
func Messages(results []ToolResult) []types.Message {
	out := make([]types.Message, len(results))
	for i, r := range results {
		out[i] = r.Message()
	}
	return out
}
