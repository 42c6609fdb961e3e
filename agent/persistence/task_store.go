package persistence

import (
	"context"

	"github.com/BaSui01/streamrelay/agent"
)

// TaskStore is a task configuration backend.
type TaskStore interface {
	Store
	agent.TaskStore

	// SaveTask creates or replaces a task by name.
	SaveTask(ctx context.Context, task *agent.TaskConfig) error

	// ListTasks returns every task sorted by name.
	ListTasks(ctx context.Context) ([]*agent.TaskConfig, error)
}

// SeedTasks saves each task in order.
func SeedTasks(ctx context.Context, store TaskStore, tasks []agent.TaskConfig) error {
	for i := range tasks {
		if err := store.SaveTask(ctx, &tasks[i]); err != nil {
			return err
		}
	}
	return nil
}

func cloneTask(t *agent.TaskConfig) *agent.TaskConfig {
	cp := *t
	cp.ToolIDs = append([]string(nil), t.ToolIDs...)
	return &cp
}
