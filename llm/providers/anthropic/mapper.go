package claude

import (
	"encoding/json"
	"strings"

	"github.com/BaSui01/streamrelay/llm"
	"github.com/BaSui01/streamrelay/types"
)

// Claude 的消息结构与 OpenAI 不同
type claudeMessage struct {
	Role    string          `json:"role"` // user 或 assistant
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type      string          `json:"type"` // text, tool_use, tool_result
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"` // for tool_result
}

type claudeTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// toClaudeMessages maps canonical history to content-block messages.
// The instruction block becomes the first user message. Consecutive turns of
// the same wire role are merged, so parallel tool results share one user turn.
func toClaudeMessages(instructions string, messages []types.Message) []claudeMessage {
	inst, turns := llm.PrepareHistory(instructions, messages)
	out := make([]claudeMessage, 0, len(turns)+1)
	if inst != "" {
		out = append(out, claudeMessage{
			Role:    "user",
			Content: []claudeContent{{Type: "text", Text: inst}},
		})
	}
	for _, m := range turns {
		cm := toClaudeMessage(m)
		if len(cm.Content) == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == cm.Role {
			out[n-1].Content = append(out[n-1].Content, cm.Content...)
			continue
		}
		out = append(out, cm)
	}
	return out
}

// toClaudeMessage maps a single canonical message.
func toClaudeMessage(m types.Message) claudeMessage {
	if m.Role == types.RoleTool {
		return claudeMessage{
			Role: "user",
			Content: []claudeContent{{
				Type:      "tool_result",
				ToolUseID: m.ToolCallID,
				Content:   m.Content,
			}},
		}
	}

	role := "user"
	if m.Role == types.RoleAssistant {
		role = "assistant"
	}
	cm := claudeMessage{Role: role}
	if m.Content != "" {
		cm.Content = append(cm.Content, claudeContent{Type: "text", Text: m.Content})
	}
	for _, tc := range m.ToolCalls {
		cm.Content = append(cm.Content, claudeContent{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Name,
			Input: toolInput(tc.Arguments),
		})
	}
	return cm
}

// toolInput converts an arguments string into the object tool_use expects.
// Anything other than a JSON object becomes {}.
func toolInput(arguments string) json.RawMessage {
	s := strings.TrimSpace(arguments)
	if strings.HasPrefix(s, "{") && json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return json.RawMessage("{}")
}

// fromClaudeMessage reverses toClaudeMessage. A user turn carrying several
// tool_result blocks yields one tool message per block.
func fromClaudeMessage(cm claudeMessage) []types.Message {
	if cm.Role == "assistant" {
		m := types.Message{Role: types.RoleAssistant}
		var text []string
		for _, c := range cm.Content {
			switch c.Type {
			case "text":
				text = append(text, c.Text)
			case "tool_use":
				m.ToolCalls = append(m.ToolCalls, types.ToolCall{ID: c.ID, Name: c.Name, Arguments: string(c.Input)})
			}
		}
		m.Content = strings.Join(text, "")
		return []types.Message{m}
	}

	var out []types.Message
	var text []string
	for _, c := range cm.Content {
		switch c.Type {
		case "text":
			text = append(text, c.Text)
		case "tool_result":
			out = append(out, types.NewToolMessage(c.ToolUseID, c.Content))
		}
	}
	if len(text) > 0 {
		out = append(out, types.NewUserMessage(strings.Join(text, "")))
	}
	return out
}

func toClaudeTools(tools []types.ToolDefinition) []claudeTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]claudeTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, claudeTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.JSONSchema(),
		})
	}
	return out
}
