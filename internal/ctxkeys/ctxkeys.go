// Package ctxkeys 定义跨包共享的 context 键
package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	threadIDKey  contextKey = "thread_id"
	taskKey      contextKey = "task"
)

// WithRequestID 设置 RequestID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID 获取 RequestID
func RequestID(ctx context.Context) (string, bool) {
	return get(ctx, requestIDKey)
}

// WithThreadID 设置会话线程 ID
func WithThreadID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, threadIDKey, id)
}

// ThreadID 获取会话线程 ID
func ThreadID(ctx context.Context) (string, bool) {
	return get(ctx, threadIDKey)
}

// WithTask 设置任务名
func WithTask(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, taskKey, name)
}

// Task 获取任务名
func Task(ctx context.Context) (string, bool) {
	return get(ctx, taskKey)
}

func get(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
