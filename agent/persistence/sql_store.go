package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/BaSui01/streamrelay/agent"
	"github.com/BaSui01/streamrelay/types"
)

// messageRow is one history entry in the chat_messages table.
type messageRow struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	ThreadID   string `gorm:"size:128;index;not null"`
	Role       string `gorm:"size:16;not null"`
	Content    string `gorm:"type:text"`
	ToolCalls  string `gorm:"type:text"`
	ToolCallID string `gorm:"size:128"`
	CreatedAt  time.Time
}

func (messageRow) TableName() string { return "chat_messages" }

// taskRow is one task configuration in the tasks table.
type taskRow struct {
	Name         string `gorm:"primaryKey;size:128"`
	Instructions string `gorm:"type:text"`
	ToolIDs      string `gorm:"type:text"`
	ModelID      string `gorm:"size:256"`
	ModelConfig  string `gorm:"type:text"`
	UpdatedAt    time.Time
}

func (taskRow) TableName() string { return "tasks" }

// SQLStore implements both MessageStore and TaskStore on a GORM database.
// The caller owns the *gorm.DB; Close does not close it.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore wraps db, optionally creating or updating the tables.
func NewSQLStore(db *gorm.DB, autoMigrate bool) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if autoMigrate {
		if err := db.AutoMigrate(&messageRow{}, &taskRow{}); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return &SQLStore{db: db}, nil
}

// Close is a no-op.
func (s *SQLStore) Close() error { return nil }

// Ping checks if the store is healthy
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AppendMessages inserts messages in order.
func (s *SQLStore) AppendMessages(ctx context.Context, threadID string, msgs ...types.Message) error {
	if err := validateAppend(threadID, msgs); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	rows := make([]messageRow, 0, len(msgs))
	for _, m := range msgs {
		row := messageRow{
			ThreadID:   threadID,
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if len(m.ToolCalls) > 0 {
			data, err := json.Marshal(m.ToolCalls)
			if err != nil {
				return fmt.Errorf("failed to marshal tool calls: %w", err)
			}
			row.ToolCalls = string(data)
		}
		rows = append(rows, row)
	}

	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to append messages: %w", err)
	}
	return nil
}

// GetRecentMessages returns the oldest limit messages of a thread.
func (s *SQLStore) GetRecentMessages(ctx context.Context, threadID string, limit int) ([]types.Message, error) {
	q := s.db.WithContext(ctx).Where("thread_id = ?", threadID).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []messageRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read thread: %w", err)
	}

	out := make([]types.Message, len(rows))
	for i, row := range rows {
		m := types.Message{
			Role:       types.Role(row.Role),
			Content:    row.Content,
			ToolCallID: row.ToolCallID,
		}
		if row.ToolCalls != "" {
			if err := json.Unmarshal([]byte(row.ToolCalls), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool calls: %w", err)
			}
		}
		out[i] = m
	}
	return out, nil
}

// SaveTask creates or replaces a task.
func (s *SQLStore) SaveTask(ctx context.Context, task *agent.TaskConfig) error {
	if task == nil || task.Name == "" {
		return ErrInvalidInput
	}

	tools, err := json.Marshal(task.ToolIDs)
	if err != nil {
		return err
	}
	mc, err := json.Marshal(task.ModelConfig)
	if err != nil {
		return err
	}

	row := taskRow{
		Name:         task.Name,
		Instructions: task.Instructions,
		ToolIDs:      string(tools),
		ModelID:      task.ModelID,
		ModelConfig:  string(mc),
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// ResolveTask returns the named task or a TASK_NOT_FOUND error.
func (s *SQLStore) ResolveTask(ctx context.Context, name string) (*agent.TaskConfig, error) {
	var row taskRow
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewTaskNotFoundError(name)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return row.toTask()
}

// ListTasks returns every task sorted by name.
func (s *SQLStore) ListTasks(ctx context.Context) ([]*agent.TaskConfig, error) {
	var rows []taskRow
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	out := make([]*agent.TaskConfig, 0, len(rows))
	for _, row := range rows {
		t, err := row.toTask()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r taskRow) toTask() (*agent.TaskConfig, error) {
	t := &agent.TaskConfig{
		Name:         r.Name,
		Instructions: r.Instructions,
		ModelID:      r.ModelID,
	}
	if r.ToolIDs != "" {
		if err := json.Unmarshal([]byte(r.ToolIDs), &t.ToolIDs); err != nil {
			return nil, fmt.Errorf("task %s: bad tools: %w", r.Name, err)
		}
	}
	if r.ModelConfig != "" {
		if err := json.Unmarshal([]byte(r.ModelConfig), &t.ModelConfig); err != nil {
			return nil, fmt.Errorf("task %s: bad model config: %w", r.Name, err)
		}
	}
	return t, nil
}
