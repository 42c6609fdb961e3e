package persistence

import (
	"context"
	"sync"

	"github.com/BaSui01/streamrelay/types"
)

// MemoryMessageStore is an in-memory implementation of MessageStore.
// Suitable for development and testing. Data is lost on restart.
type MemoryMessageStore struct {
	threads map[string][]types.Message
	mu      sync.RWMutex
	closed  bool
}

// NewMemoryMessageStore creates a new in-memory message store
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{
		threads: make(map[string][]types.Message),
	}
}

// AppendMessages adds messages to the end of a thread.
func (s *MemoryMessageStore) AppendMessages(ctx context.Context, threadID string, msgs ...types.Message) error {
	if err := validateAppend(threadID, msgs); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	s.threads[threadID] = append(s.threads[threadID], msgs...)
	return nil
}

// GetRecentMessages returns the oldest limit messages of a thread.
func (s *MemoryMessageStore) GetRecentMessages(ctx context.Context, threadID string, limit int) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	all := s.threads[threadID]
	out := make([]types.Message, historyWindow(len(all), limit))
	copy(out, all)
	return out, nil
}

// Close closes the store
func (s *MemoryMessageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy
func (s *MemoryMessageStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}
