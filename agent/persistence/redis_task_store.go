package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/BaSui01/streamrelay/agent"
	"github.com/BaSui01/streamrelay/types"
)

// RedisTaskStore keeps task configurations in one Redis hash keyed by name.
type RedisTaskStore struct {
	client  redis.UniversalClient
	hashKey string
}

// NewRedisTaskStore creates a new Redis-based task store
func NewRedisTaskStore(config StoreConfig) (*RedisTaskStore, error) {
	client, prefix, err := dialRedis(config.Redis)
	if err != nil {
		return nil, err
	}
	return NewRedisTaskStoreWithClient(client, prefix), nil
}

// NewRedisTaskStoreWithClient wraps an existing client.
func NewRedisTaskStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisTaskStore {
	return &RedisTaskStore{
		client:  client,
		hashKey: keyPrefix + "tasks",
	}
}

// Close closes the store
func (s *RedisTaskStore) Close() error {
	return s.client.Close()
}

// Ping checks if the store is healthy
func (s *RedisTaskStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SaveTask creates or replaces a task.
func (s *RedisTaskStore) SaveTask(ctx context.Context, task *agent.TaskConfig) error {
	if task == nil || task.Name == "" {
		return ErrInvalidInput
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := s.client.HSet(ctx, s.hashKey, task.Name, data).Err(); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// ResolveTask returns the named task or a TASK_NOT_FOUND error.
func (s *RedisTaskStore) ResolveTask(ctx context.Context, name string) (*agent.TaskConfig, error) {
	data, err := s.client.HGet(ctx, s.hashKey, name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, types.NewTaskNotFoundError(name)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task agent.TaskConfig
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// ListTasks returns every task sorted by name.
func (s *RedisTaskStore) ListTasks(ctx context.Context) ([]*agent.TaskConfig, error) {
	all, err := s.client.HGetAll(ctx, s.hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	out := make([]*agent.TaskConfig, 0, len(all))
	for name, data := range all {
		var task agent.TaskConfig
		if err := json.Unmarshal([]byte(data), &task); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task %s: %w", name, err)
		}
		out = append(out, &task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
