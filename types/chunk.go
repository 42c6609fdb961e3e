package types

import (
	"encoding/json"
	"errors"
)

// Chunk is one canonical stream event: either a text fragment or a sealed
// tool call, never both.
type Chunk struct {
	Text     string
	ToolCall *ToolCall
}

// TextChunk builds a text chunk.
func TextChunk(text string) Chunk { return Chunk{Text: text} }

// ToolCallChunk builds a tool call chunk.
func ToolCallChunk(call ToolCall) Chunk { return Chunk{ToolCall: &call} }

// IsToolCall reports whether the chunk carries a tool call.
func (c Chunk) IsToolCall() bool { return c.ToolCall != nil }

// Validate enforces the exactly-one rule.
func (c Chunk) Validate() error {
	if c.ToolCall != nil && c.Text != "" {
		return errors.New("chunk carries both text and a tool call")
	}
	return nil
}

type chunkJSON struct {
	Text     *string   `json:"text,omitempty"`
	ToolCall *ToolCall `json:"toolCall,omitempty"`
}

// MarshalJSON renders the caller-facing record {"text":...} or {"toolCall":{...}}.
func (c Chunk) MarshalJSON() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.ToolCall != nil {
		return json.Marshal(chunkJSON{ToolCall: c.ToolCall})
	}
	text := c.Text
	return json.Marshal(chunkJSON{Text: &text})
}

// UnmarshalJSON parses a caller-facing record.
func (c *Chunk) UnmarshalJSON(data []byte) error {
	var raw chunkJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Text != nil && raw.ToolCall != nil {
		return errors.New("chunk record carries both text and toolCall")
	}
	c.ToolCall = raw.ToolCall
	c.Text = ""
	if raw.Text != nil {
		c.Text = *raw.Text
	}
	return nil
}

// ErrorRecord is the distinguished record the hosting boundary emits before
// ending a failed stream.
type ErrorRecord struct {
	Error ErrorInfo `json:"error"`
}

// ErrorInfo is the body of an ErrorRecord.
type ErrorInfo struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// NewErrorRecord converts err into an ErrorRecord.
func NewErrorRecord(err error) ErrorRecord {
	if e, ok := AsError(err); ok {
		return ErrorRecord{Error: ErrorInfo{Code: e.Code, Message: e.Message}}
	}
	return ErrorRecord{Error: ErrorInfo{Code: ErrInternalError, Message: err.Error()}}
}
