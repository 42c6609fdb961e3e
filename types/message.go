package types

import (
	"encoding/json"
	"fmt"
)

// Role represents the role of a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall represents a tool invocation requested by the model.
// Arguments is raw text while a call is being streamed and valid JSON once sealed.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// toolCallJSON is the external shape of a ToolCall, shared by the caller-facing
// chunk records and stored history.
type toolCallJSON struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function toolCallFunction `json:"function"`
}

type toolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// MarshalJSON renders {"id","type":"function","function":{"name","arguments"}}.
func (c ToolCall) MarshalJSON() ([]byte, error) {
	return json.Marshal(toolCallJSON{
		ID:       c.ID,
		Type:     "function",
		Function: toolCallFunction{Name: c.Name, Arguments: c.Arguments},
	})
}

// UnmarshalJSON parses the shape produced by MarshalJSON.
func (c *ToolCall) UnmarshalJSON(data []byte) error {
	var raw toolCallJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.ID = raw.ID
	c.Name = raw.Function.Name
	c.Arguments = raw.Function.Arguments
	return nil
}

// Message represents a conversation message.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolMessage creates a tool result message answering the call with callID.
func NewToolMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// Validate checks the per-message shape rules.
func (m Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser:
		if len(m.ToolCalls) > 0 || m.ToolCallID != "" {
			return fmt.Errorf("%s message must not carry tool fields", m.Role)
		}
	case RoleAssistant:
		if m.ToolCallID != "" {
			return fmt.Errorf("assistant message must not carry tool_call_id")
		}
		if m.Content == "" && len(m.ToolCalls) == 0 {
			return fmt.Errorf("assistant message needs content or tool_calls")
		}
	case RoleTool:
		if m.ToolCallID == "" {
			return fmt.Errorf("tool message requires tool_call_id")
		}
		if len(m.ToolCalls) > 0 {
			return fmt.Errorf("tool message must not carry tool_calls")
		}
	default:
		return fmt.Errorf("unknown role %q", m.Role)
	}
	return nil
}

// ValidateHistory checks every message and that each tool message answers a
// ToolCall emitted earlier in the same history.
func ValidateHistory(messages []Message) error {
	seen := make(map[string]struct{})
	for i, m := range messages {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		for _, c := range m.ToolCalls {
			seen[c.ID] = struct{}{}
		}
		if m.Role == RoleTool {
			if _, ok := seen[m.ToolCallID]; !ok {
				return fmt.Errorf("message %d: tool_call_id %q has no earlier tool call", i, m.ToolCallID)
			}
		}
	}
	return nil
}
