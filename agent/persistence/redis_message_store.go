package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BaSui01/streamrelay/types"
)

// RedisMessageStore keeps each thread as a Redis list of JSON entries.
// Suitable for distributed production deployments.
type RedisMessageStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisMessageStore creates a new Redis-based message store
func NewRedisMessageStore(config StoreConfig) (*RedisMessageStore, error) {
	client, prefix, err := dialRedis(config.Redis)
	if err != nil {
		return nil, err
	}
	return NewRedisMessageStoreWithClient(client, prefix), nil
}

// NewRedisMessageStoreWithClient wraps an existing client. The store owns
// the client and closes it on Close.
func NewRedisMessageStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisMessageStore {
	return &RedisMessageStore{
		client:    client,
		keyPrefix: keyPrefix + "thread:",
	}
}

func dialRedis(cfg RedisStoreConfig) (*redis.Client, string, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, "", fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "streamrelay:"
	}
	return client, keyPrefix, nil
}

// Close closes the store
func (s *RedisMessageStore) Close() error {
	return s.client.Close()
}

// Ping checks if the store is healthy
func (s *RedisMessageStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisMessageStore) threadKey(threadID string) string {
	return s.keyPrefix + threadID
}

// AppendMessages pushes messages onto the thread list.
func (s *RedisMessageStore) AppendMessages(ctx context.Context, threadID string, msgs ...types.Message) error {
	if err := validateAppend(threadID, msgs); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	now := time.Now()
	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(storedMessage{Message: m, CreatedAt: now})
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		values = append(values, data)
	}

	if err := s.client.RPush(ctx, s.threadKey(threadID), values...).Err(); err != nil {
		return fmt.Errorf("failed to append messages: %w", err)
	}
	return nil
}

// GetRecentMessages reads the head of the thread list.
func (s *RedisMessageStore) GetRecentMessages(ctx context.Context, threadID string, limit int) ([]types.Message, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	raw, err := s.client.LRange(ctx, s.threadKey(threadID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read thread: %w", err)
	}

	out := make([]types.Message, 0, len(raw))
	for _, item := range raw {
		var sm storedMessage
		if err := json.Unmarshal([]byte(item), &sm); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		out = append(out, sm.Message)
	}
	return out, nil
}
