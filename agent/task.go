package agent

import (
	"context"

	"github.com/BaSui01/streamrelay/types"
)

// Well-known task names.
const (
	GlobalTaskName  = "global"
	DefaultTaskName = "home"

	// UseGlobalModel as a task's ModelID defers model choice to the global task.
	UseGlobalModel = "global"
)

// TaskConfig is the stored configuration of one task.
type TaskConfig struct {
	Name         string                   `json:"name" yaml:"name"`
	Instructions string                   `json:"instructions" yaml:"instructions"`
	ToolIDs      []string                 `json:"tools,omitempty" yaml:"tools"`
	ModelID      string                   `json:"model,omitempty" yaml:"model"`
	ModelConfig  types.ModelConfiguration `json:"model_config" yaml:"model_config"`
}

// UsesGlobalModel reports whether the task inherits the global model.
func (t *TaskConfig) UsesGlobalModel() bool {
	return t.ModelID == "" || t.ModelID == UseGlobalModel
}

// MessageStore reads conversation history.
type MessageStore interface {
	// GetRecentMessages returns the first limit messages of a thread in
	// chronological order. limit <= 0 returns the whole thread.
	GetRecentMessages(ctx context.Context, threadID string, limit int) ([]types.Message, error)
}

// TaskStore reads task configuration. Missing tasks are reported with
// types.ErrTaskNotFound.
type TaskStore interface {
	ResolveTask(ctx context.Context, name string) (*TaskConfig, error)
}

// ToolResolver turns tool ids into definitions.
type ToolResolver interface {
	Resolve(ids []string) ([]types.ToolDefinition, error)
}

// DefaultTasks returns the tasks used when none are configured: a global
// task offering the demo tools on the default provider's model, and a plain
// home task that inherits it.
func DefaultTasks() []TaskConfig {
	return []TaskConfig{
		{
			Name:         GlobalTaskName,
			Instructions: "Keep answers short. Use the available tools when they can answer the question.",
			ToolIDs:      []string{"getWeather", "getMovies"},
		},
		{
			Name:         DefaultTaskName,
			Instructions: "You are a helpful assistant.",
			ModelID:      UseGlobalModel,
		},
	}
}
