package agent

import (
	"context"
	"fmt"

	"github.com/BaSui01/streamrelay/llm"
	"github.com/BaSui01/streamrelay/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AssemblerConfig tunes the Assembler.
type AssemblerConfig struct {
	GlobalTask   string `json:"global_task" yaml:"global_task"`
	DefaultTask  string `json:"default_task" yaml:"default_task"`
	HistoryLimit int    `json:"history_limit" yaml:"history_limit"`
}

// DefaultAssemblerConfig returns the standard task names and a 20 message
// history window.
func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		GlobalTask:   GlobalTaskName,
		DefaultTask:  DefaultTaskName,
		HistoryLimit: 20,
	}
}

// Payload is everything needed to start one generation.
type Payload struct {
	Task        string
	ThreadID    string
	Messages    []types.Message
	Tools       []types.ToolDefinition
	ModelID     string
	ModelConfig types.ModelConfiguration
}

// Request converts the payload to a provider request. Model is left as the
// raw ModelID; routing strips any provider prefix.
func (p *Payload) Request() *llm.GenerateRequest {
	return &llm.GenerateRequest{
		Model:    p.ModelID,
		Messages: append([]types.Message(nil), p.Messages...),
		Tools:    append([]types.ToolDefinition(nil), p.Tools...),
		Config:   p.ModelConfig,
	}
}

// Assembler builds Payloads from stored configuration and history.
type Assembler struct {
	tasks   TaskStore
	history MessageStore
	tools   ToolResolver
	config  AssemblerConfig
	logger  *zap.Logger
}

// NewAssembler creates an Assembler. Zero config fields take their defaults.
func NewAssembler(tasks TaskStore, history MessageStore, tools ToolResolver, config AssemblerConfig, logger *zap.Logger) *Assembler {
	def := DefaultAssemblerConfig()
	if config.GlobalTask == "" {
		config.GlobalTask = def.GlobalTask
	}
	if config.DefaultTask == "" {
		config.DefaultTask = def.DefaultTask
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = def.HistoryLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		tasks:   tasks,
		history: history,
		tools:   tools,
		config:  config,
		logger:  logger.With(zap.String("component", "assembler")),
	}
}

// Assemble resolves taskName and the global task, loads the thread's recent
// history and merges their tools and model settings.
func (a *Assembler) Assemble(ctx context.Context, taskName, threadID string) (*Payload, error) {
	var (
		task, global *TaskConfig
		history      []types.Message
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		task, err = a.resolveTask(gctx, taskName)
		return err
	})
	g.Go(func() error {
		var err error
		global, err = a.tasks.ResolveTask(gctx, a.config.GlobalTask)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = a.history.GetRecentMessages(gctx, threadID, a.config.HistoryLimit)
		if err != nil {
			return fmt.Errorf("load history for thread %s: %w", threadID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	defs, err := a.tools.Resolve(unionToolIDs(global.ToolIDs, task.ToolIDs))
	if err != nil {
		return nil, err
	}

	p := &Payload{
		Task:        task.Name,
		ThreadID:    threadID,
		Tools:       defs,
		ModelID:     task.ModelID,
		ModelConfig: task.ModelConfig,
	}
	if task.UsesGlobalModel() {
		p.ModelID = global.ModelID
		p.ModelConfig = global.ModelConfig
	}

	history = llm.TrimToFirstUser(history)
	p.Messages = make([]types.Message, 0, len(history)+2)
	for _, inst := range []string{global.Instructions, task.Instructions} {
		if inst != "" {
			p.Messages = append(p.Messages, types.NewSystemMessage(inst))
		}
	}
	p.Messages = append(p.Messages, history...)

	a.logger.Debug("payload assembled",
		zap.String("task", p.Task),
		zap.String("thread_id", threadID),
		zap.Int("history", len(history)),
		zap.Int("tools", len(defs)),
		zap.String("model", p.ModelID))
	return p, nil
}

// resolveTask looks up name, falling back to the default task.
func (a *Assembler) resolveTask(ctx context.Context, name string) (*TaskConfig, error) {
	if name == "" {
		name = a.config.DefaultTask
	}
	task, err := a.tasks.ResolveTask(ctx, name)
	if err == nil || !types.IsCode(err, types.ErrTaskNotFound) || name == a.config.DefaultTask {
		return task, err
	}
	a.logger.Info("task not found, using default",
		zap.String("task", name),
		zap.String("default", a.config.DefaultTask))
	return a.tasks.ResolveTask(ctx, a.config.DefaultTask)
}

// unionToolIDs merges id lists, keeping first-seen order.
func unionToolIDs(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ids := range lists {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
