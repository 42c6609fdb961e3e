package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/BaSui01/streamrelay/agent"
	"github.com/BaSui01/streamrelay/types"
)

// MemoryTaskStore is an in-memory implementation of TaskStore.
type MemoryTaskStore struct {
	tasks  map[string]*agent.TaskConfig
	mu     sync.RWMutex
	closed bool
}

// NewMemoryTaskStore creates a new in-memory task store
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks: make(map[string]*agent.TaskConfig),
	}
}

// SaveTask creates or replaces a task.
func (s *MemoryTaskStore) SaveTask(ctx context.Context, task *agent.TaskConfig) error {
	if task == nil || task.Name == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	s.tasks[task.Name] = cloneTask(task)
	return nil
}

// ResolveTask returns the named task or a TASK_NOT_FOUND error.
func (s *MemoryTaskStore) ResolveTask(ctx context.Context, name string) (*agent.TaskConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	t, ok := s.tasks[name]
	if !ok {
		return nil, types.NewTaskNotFoundError(name)
	}
	return cloneTask(t), nil
}

// ListTasks returns every task sorted by name.
func (s *MemoryTaskStore) ListTasks(ctx context.Context) ([]*agent.TaskConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]*agent.TaskConfig, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, cloneTask(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Close closes the store
func (s *MemoryTaskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy
func (s *MemoryTaskStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}
