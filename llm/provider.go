package llm

import (
	"context"

	"github.com/BaSui01/streamrelay/types"
)

// GenerateRequest is the canonical request every adapter accepts.
type GenerateRequest struct {
	Model        string                   `json:"model"`
	Instructions string                   `json:"instructions,omitempty"`
	Messages     []types.Message          `json:"messages"`
	Tools        []types.ToolDefinition   `json:"tools,omitempty"`
	Config       types.ModelConfiguration `json:"config"`
}

// Clone returns a shallow copy with its own slices, so rewriters never mutate
// the caller's request.
func (r *GenerateRequest) Clone() *GenerateRequest {
	out := *r
	out.Messages = append([]types.Message(nil), r.Messages...)
	out.Tools = append([]types.ToolDefinition(nil), r.Tools...)
	return &out
}

// StreamChunk is one element of a generation's output channel.
// A non-nil Err is terminal: the producer closes the channel right after it.
type StreamChunk struct {
	types.Chunk
	Err *types.Error
}

// TextChunk wraps a text fragment.
func TextChunk(text string) StreamChunk {
	return StreamChunk{Chunk: types.TextChunk(text)}
}

// ToolCallChunk wraps a sealed tool call.
func ToolCallChunk(call types.ToolCall) StreamChunk {
	return StreamChunk{Chunk: types.ToolCallChunk(call)}
}

// ErrorChunk wraps a terminal error.
func ErrorChunk(err *types.Error) StreamChunk {
	return StreamChunk{Err: err}
}

// Provider is the canonical adapter contract.
//
// GenerateResponse returns a strictly ordered chunk channel. Text chunks appear
// in the order the backend produced them. Tool call chunks are emitted only
// after the backend signals end-of-turn. A missing credential is returned
// synchronously as a configuration error; every other failure arrives as a
// terminal chunk. Cancelling ctx aborts the network call and closes the channel.
type Provider interface {
	Name() string
	GenerateResponse(ctx context.Context, req *GenerateRequest) (<-chan StreamChunk, error)
}

// Send delivers chunk unless ctx is done first.
func Send(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// Collect drains a stream into its chunks, stopping at the first error.
func Collect(ch <-chan StreamChunk) ([]types.Chunk, error) {
	var out []types.Chunk
	for c := range ch {
		if c.Err != nil {
			for range ch {
			}
			return out, c.Err
		}
		out = append(out, c.Chunk)
	}
	return out, nil
}
