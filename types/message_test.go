package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_JSONRoundTrip(t *testing.T) {
	msg := NewAssistantMessage("", ToolCall{ID: "c1", Name: "getMovies", Arguments: `{"location":"Paris"}`})

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"assistant","tool_calls":[{"id":"c1","type":"function","function":{"name":"getMovies","arguments":"{\"location\":\"Paris\"}"}}]}`, string(data))

	var back Message
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, msg, back)
}

func TestMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"user", NewUserMessage("hi"), false},
		{"assistant text", NewAssistantMessage("hello"), false},
		{"assistant empty", Message{Role: RoleAssistant}, true},
		{"tool without id", Message{Role: RoleTool, Content: "x"}, true},
		{"user with tool id", Message{Role: RoleUser, Content: "x", ToolCallID: "c"}, true},
		{"unknown role", Message{Role: "robot", Content: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateHistory(t *testing.T) {
	call := ToolCall{ID: "c1", Name: "getWeather", Arguments: "{}"}

	ok := []Message{
		NewUserMessage("weather?"),
		NewAssistantMessage("", call),
		NewToolMessage("c1", `{"temp":60}`),
	}
	assert.NoError(t, ValidateHistory(ok))

	orphan := []Message{
		NewUserMessage("weather?"),
		NewToolMessage("c1", `{"temp":60}`),
		NewAssistantMessage("", call),
	}
	assert.Error(t, ValidateHistory(orphan))
}

func TestToolDefinition_JSONSchema(t *testing.T) {
	def := ToolDefinition{
		Name:        "getWeather",
		Description: "Current weather",
		Parameters: []ToolParameter{
			{Name: "location", Type: "string", Required: true},
			{Name: "unit", Type: "string", Enum: []string{"Celsius", "Fahrenheit"}},
		},
	}

	schema := def.JSONSchema()
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"location"}, schema["required"])
	props := schema["properties"].(map[string]any)
	assert.Len(t, props, 2)
	assert.Equal(t, []string{"Celsius", "Fahrenheit"}, props["unit"].(map[string]any)["enum"])
	assert.True(t, def.HasParameters())

	empty := ToolDefinition{Name: "ping"}
	assert.False(t, empty.HasParameters())
	_, hasRequired := empty.JSONSchema()["required"]
	assert.False(t, hasRequired)
}

func TestModelConfiguration_Defaults(t *testing.T) {
	var cfg ModelConfiguration
	assert.Equal(t, 0.7, cfg.TemperatureOr(0.7))
	assert.Equal(t, 4096, cfg.MaxTokensOr(4096))

	cfg = ModelConfiguration{Temperature: Float64(0.1), MaxTokens: Int(256)}
	assert.Equal(t, 0.1, cfg.TemperatureOr(0.7))
	assert.Equal(t, 256, cfg.MaxTokensOr(4096))
}
