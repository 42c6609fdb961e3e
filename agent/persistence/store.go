package persistence

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeSQL    StoreType = "sql"
	StoreTypeRedis  StoreType = "redis"
)

// StoreConfig selects and configures the backends.
type StoreConfig struct {
	// Messages is the backend for thread history
	Messages StoreType `json:"messages" yaml:"messages"`

	// Tasks is the backend for task configurations
	Tasks StoreType `json:"tasks" yaml:"tasks"`

	// Redis configuration (only used by "redis" backends)
	Redis RedisStoreConfig `json:"redis" yaml:"redis"`
}

// RedisStoreConfig contains Redis-specific configuration
type RedisStoreConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	PoolSize  int    `json:"pool_size" yaml:"pool_size"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Messages: StoreTypeMemory,
		Tasks:    StoreTypeMemory,
		Redis: RedisStoreConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "streamrelay:",
		},
	}
}

// Store is the base interface for all persistent stores
type Store interface {
	// Close closes the store and releases resources
	Close() error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}
