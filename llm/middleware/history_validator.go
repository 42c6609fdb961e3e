package middleware

import (
	"context"

	"github.com/BaSui01/streamrelay/llm"
	"github.com/BaSui01/streamrelay/types"
)

// HistoryValidator rejects histories where a tool result does not answer an
// earlier tool call. Mappers rely on that pairing to name function responses.
type HistoryValidator struct{}

// NewHistoryValidator creates a HistoryValidator.
func NewHistoryValidator() *HistoryValidator {
	return &HistoryValidator{}
}

// Name 返回改写器名称
func (v *HistoryValidator) Name() string {
	return "history_validator"
}

// Rewrite validates req and returns it unchanged.
func (v *HistoryValidator) Rewrite(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateRequest, error) {
	if req == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "nil request")
	}
	if err := types.ValidateHistory(req.Messages); err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithCause(err)
	}
	return req, nil
}
