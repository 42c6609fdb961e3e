package gemini

import (
	"encoding/json"
	"strings"

	"github.com/BaSui01/streamrelay/llm"
	"github.com/BaSui01/streamrelay/types"
)

// Gemini wire roles.
const (
	roleUser     = "user"
	roleModel    = "model"
	roleFunction = "function"
)

// Gemini 消息结构
type geminiContent struct {
	Role  string       `json:"role,omitempty"` // user, model, function
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type geminiFunctionResponse struct {
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type geminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// isCall reports whether c is a model turn carrying function calls.
func (c geminiContent) isCall() bool {
	if c.Role != roleModel {
		return false
	}
	for _, p := range c.Parts {
		if p.FunctionCall != nil {
			return true
		}
	}
	return false
}

// convertToGeminiContents 将统一格式转换为 Gemini 格式。
// The returned history has already been through MergeFunctionResponses.
func convertToGeminiContents(instructions string, msgs []types.Message) (*geminiContent, []geminiContent) {
	inst, turns := llm.PrepareHistory(instructions, msgs)

	var systemInstruction *geminiContent
	if inst != "" {
		systemInstruction = &geminiContent{Parts: []geminiPart{{Text: inst}}}
	}

	// 函数响应需要携带函数名，按 ToolCall id 建立索引
	names := make(map[string]string)
	for _, m := range turns {
		for _, tc := range m.ToolCalls {
			names[tc.ID] = tc.Name
		}
	}

	contents := make([]geminiContent, 0, len(turns))
	for _, m := range turns {
		c := convertToGeminiContent(m, names)
		if len(c.Parts) > 0 {
			contents = append(contents, c)
		}
	}
	return systemInstruction, MergeFunctionResponses(contents)
}

func convertToGeminiContent(m types.Message, names map[string]string) geminiContent {
	switch m.Role {
	case types.RoleTool:
		return geminiContent{
			Role: roleFunction,
			Parts: []geminiPart{{
				FunctionResponse: &geminiFunctionResponse{
					ID:       m.ToolCallID,
					Name:     names[m.ToolCallID],
					Response: responseObject(m.Content),
				},
			}},
		}

	case types.RoleAssistant:
		c := geminiContent{Role: roleModel}
		if m.Content != "" {
			c.Parts = append(c.Parts, geminiPart{Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			c.Parts = append(c.Parts, geminiPart{
				FunctionCall: &geminiFunctionCall{ID: tc.ID, Name: tc.Name, Args: argsObject(tc.Arguments)},
			})
		}
		return c

	default:
		return geminiContent{Role: roleUser, Parts: []geminiPart{{Text: m.Content}}}
	}
}

// argsObject returns arguments as a JSON object, or {} when they are not one.
func argsObject(arguments string) json.RawMessage {
	s := strings.TrimSpace(arguments)
	if strings.HasPrefix(s, "{") && json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return json.RawMessage("{}")
}

// responseObject wraps tool output so the response field is always an object.
func responseObject(content string) json.RawMessage {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "{") && json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	var value any = content
	if s != "" && json.Valid([]byte(s)) {
		value = json.RawMessage(s)
	}
	wrapped, _ := json.Marshal(map[string]any{"result": value})
	return wrapped
}

// convertFromGeminiContent maps a wire turn back to canonical messages. A
// function turn yields one tool message per response part.
func convertFromGeminiContent(c geminiContent) []types.Message {
	switch c.Role {
	case roleFunction:
		out := make([]types.Message, 0, len(c.Parts))
		for _, p := range c.Parts {
			if fr := p.FunctionResponse; fr != nil {
				out = append(out, types.NewToolMessage(fr.ID, unwrapResponse(fr.Response)))
			}
		}
		return out

	case roleModel:
		m := types.Message{Role: types.RoleAssistant}
		var text strings.Builder
		for _, p := range c.Parts {
			text.WriteString(p.Text)
			if fc := p.FunctionCall; fc != nil {
				m.ToolCalls = append(m.ToolCalls, types.ToolCall{ID: fc.ID, Name: fc.Name, Arguments: string(fc.Args)})
			}
		}
		m.Content = text.String()
		return []types.Message{m}

	default:
		var text strings.Builder
		for _, p := range c.Parts {
			text.WriteString(p.Text)
		}
		return []types.Message{types.NewUserMessage(text.String())}
	}
}

func unwrapResponse(raw json.RawMessage) string {
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped) == 1 {
		if inner, ok := wrapped["result"]; ok {
			var s string
			if json.Unmarshal(inner, &s) == nil {
				return s
			}
			return string(inner)
		}
	}
	return string(raw)
}

func convertToGeminiTools(tools []types.ToolDefinition) []geminiTool {
	if len(tools) == 0 {
		return nil
	}
	declarations := make([]geminiFunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		d := geminiFunctionDeclaration{Name: t.Name, Description: t.Description}
		// Gemini 拒绝空的 parameters 对象
		if t.HasParameters() {
			d.Parameters = t.JSONSchema()
		}
		declarations = append(declarations, d)
	}
	return []geminiTool{{FunctionDeclarations: declarations}}
}
