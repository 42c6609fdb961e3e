package openaicompat

import (
	"github.com/BaSui01/streamrelay/llm"
	"github.com/BaSui01/streamrelay/types"
)

// Message is an OpenAI chat message on the wire.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is an OpenAI tool call on the wire. Arguments stay a JSON string.
type ToolCall struct {
	Index    *int         `json:"index,omitempty"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall holds a tool call's name and argument text.
type FunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// Tool is an OpenAI function tool declaration.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition declares a function's name, description and schema.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is the chat completions request body.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

// ToWireMessages maps canonical history to OpenAI messages. System messages
// are folded into instructions, the history is trimmed to start on a user
// turn and the instructions lead as a single system message.
func ToWireMessages(instructions string, messages []types.Message) []Message {
	inst, turns := llm.PrepareHistory(instructions, messages)
	out := make([]Message, 0, len(turns)+1)
	if inst != "" {
		out = append(out, Message{Role: string(types.RoleSystem), Content: inst})
	}
	for _, m := range turns {
		out = append(out, ToWireMessage(m))
	}
	return out
}

// ToWireMessage maps one canonical message. The shapes already line up.
func ToWireMessage(m types.Message) Message {
	wm := Message{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, c := range m.ToolCalls {
		wm.ToolCalls = append(wm.ToolCalls, ToolCall{
			ID:   c.ID,
			Type: "function",
			Function: FunctionCall{
				Name:      c.Name,
				Arguments: c.Arguments,
			},
		})
	}
	return wm
}

// FromWireMessage reverses ToWireMessage.
func FromWireMessage(wm Message) types.Message {
	m := types.Message{
		Role:       types.Role(wm.Role),
		Content:    wm.Content,
		ToolCallID: wm.ToolCallID,
	}
	for _, c := range wm.ToolCalls {
		m.ToolCalls = append(m.ToolCalls, types.ToolCall{
			ID:        c.ID,
			Name:      c.Function.Name,
			Arguments: c.Function.Arguments,
		})
	}
	return m
}

// ToWireTools maps tool definitions to function tools.
func ToWireTools(defs []types.ToolDefinition) []Tool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, Tool{
			Type: "function",
			Function: FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.JSONSchema(),
			},
		})
	}
	return out
}
