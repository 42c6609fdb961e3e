package persistence

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// NewStores creates the message and task stores selected by config.
// db is required for the sql backend and ignored otherwise. When both stores
// use Redis they share one client, closed by the task store.
func NewStores(config StoreConfig, db *gorm.DB) (MessageStore, TaskStore, error) {
	for _, t := range []StoreType{config.Messages, config.Tasks} {
		switch t {
		case StoreTypeMemory, StoreTypeRedis, "":
		case StoreTypeSQL:
			if db == nil {
				return nil, nil, fmt.Errorf("sql store requires a database connection")
			}
		default:
			return nil, nil, fmt.Errorf("unsupported store type: %s", t)
		}
	}

	var (
		sqlStore    *SQLStore
		redisClient *redis.Client
		prefix      string
	)
	if config.Messages == StoreTypeSQL || config.Tasks == StoreTypeSQL {
		s, err := NewSQLStore(db, true)
		if err != nil {
			return nil, nil, err
		}
		sqlStore = s
	}
	if config.Messages == StoreTypeRedis || config.Tasks == StoreTypeRedis {
		client, p, err := dialRedis(config.Redis)
		if err != nil {
			return nil, nil, err
		}
		redisClient, prefix = client, p
	}

	var messages MessageStore
	switch config.Messages {
	case StoreTypeSQL:
		messages = sqlStore
	case StoreTypeRedis:
		rs := NewRedisMessageStoreWithClient(redisClient, prefix)
		if config.Tasks == StoreTypeRedis {
			messages = &sharedRedisMessageStore{rs}
		} else {
			messages = rs
		}
	default:
		messages = NewMemoryMessageStore()
	}

	var tasks TaskStore
	switch config.Tasks {
	case StoreTypeSQL:
		tasks = sqlStore
	case StoreTypeRedis:
		tasks = NewRedisTaskStoreWithClient(redisClient, prefix)
	default:
		tasks = NewMemoryTaskStore()
	}
	return messages, tasks, nil
}

type sharedRedisMessageStore struct {
	*RedisMessageStore
}

func (sharedRedisMessageStore) Close() error { return nil }
