package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BaSui01/streamrelay/types"
	"github.com/google/uuid"
)

type callState int

const (
	callOpen callState = iota + 1
	callClosed
)

type pendingCall struct {
	id    string
	name  string
	args  strings.Builder
	state callState
}

// ToolCallAccumulator rebuilds complete tool calls from streamed fragments.
// One instance belongs to exactly one generation and is not safe for
// concurrent use.
//
// Calls are keyed by the provider's position index. Each index moves
// IDLE → OPEN → CLOSED; argument fragments are buffered verbatim while OPEN
// and only validated at Complete.
type ToolCallAccumulator struct {
	provider   string
	generation string
	ordinal    int
	calls      map[int]*pendingCall
	order      []int
}

// NewToolCallAccumulator creates an accumulator scoped to a single generation.
func NewToolCallAccumulator(provider string) *ToolCallAccumulator {
	return &ToolCallAccumulator{
		provider:   provider,
		generation: strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		calls:      make(map[int]*pendingCall),
	}
}

// Open starts a call at index. An empty id is replaced by one unique within
// this generation.
func (a *ToolCallAccumulator) Open(index int, id, name string) error {
	if _, exists := a.calls[index]; exists {
		return types.NewInvariantViolation(fmt.Sprintf("tool call at index %d opened twice", index)).
			WithProvider(a.provider)
	}
	a.ordinal++
	if id == "" {
		id = fmt.Sprintf("call_%s_%d", a.generation, a.ordinal)
	}
	a.calls[index] = &pendingCall{id: id, name: name, state: callOpen}
	a.order = append(a.order, index)
	return nil
}

// IsOpen reports whether index holds a call still receiving fragments.
func (a *ToolCallAccumulator) IsOpen(index int) bool {
	c, ok := a.calls[index]
	return ok && c.state == callOpen
}

// Append adds a raw argument fragment to the call at index.
func (a *ToolCallAccumulator) Append(index int, fragment string) error {
	c, ok := a.calls[index]
	if !ok {
		return types.NewInvariantViolation(fmt.Sprintf("argument fragment for tool call index %d that was never opened", index)).
			WithProvider(a.provider)
	}
	if c.state != callOpen {
		return types.NewInvariantViolation(fmt.Sprintf("argument fragment for closed tool call %s", c.id)).
			WithProvider(a.provider)
	}
	c.args.WriteString(fragment)
	return nil
}

// Close seals the call at index.
func (a *ToolCallAccumulator) Close(index int) error {
	c, ok := a.calls[index]
	if !ok {
		return types.NewInvariantViolation(fmt.Sprintf("close for tool call index %d that was never opened", index)).
			WithProvider(a.provider)
	}
	c.state = callClosed
	return nil
}

// Atomic records a call that arrives whole in a single wire event.
func (a *ToolCallAccumulator) Atomic(index int, id, name, arguments string) error {
	if err := a.Open(index, id, name); err != nil {
		return err
	}
	if err := a.Append(index, arguments); err != nil {
		return err
	}
	return a.Close(index)
}

// Len returns the number of calls seen since the last Complete.
func (a *ToolCallAccumulator) Len() int { return len(a.order) }

// Complete handles end-of-turn: it seals every call, checks that each
// argument string is JSON and returns the calls in the order they were
// opened. The accumulator is empty afterwards.
func (a *ToolCallAccumulator) Complete() ([]types.ToolCall, error) {
	if len(a.order) == 0 {
		return nil, nil
	}
	out := make([]types.ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		c := a.calls[idx]
		c.state = callClosed
		args := strings.TrimSpace(c.args.String())
		if args == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			a.reset()
			return nil, types.NewTransientStreamError(a.provider,
				fmt.Sprintf("tool call %s (%s) finished with malformed arguments", c.id, c.name))
		}
		out = append(out, types.ToolCall{ID: c.id, Name: c.name, Arguments: args})
	}
	a.reset()
	return out, nil
}

func (a *ToolCallAccumulator) reset() {
	a.calls = make(map[int]*pendingCall)
	a.order = a.order[:0]
}
