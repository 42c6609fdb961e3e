package persistence

import (
	"context"
	"time"

	"github.com/BaSui01/streamrelay/agent"
	"github.com/BaSui01/streamrelay/types"
)

// MessageStore is a thread history backend.
type MessageStore interface {
	Store
	agent.MessageStore

	// AppendMessages adds msgs to the end of a thread. It exists for
	// seeding and tests; generations never write history.
	AppendMessages(ctx context.Context, threadID string, msgs ...types.Message) error
}

// storedMessage is the serialized form of a history entry.
type storedMessage struct {
	types.Message
	CreatedAt time.Time `json:"created_at"`
}

func validateAppend(threadID string, msgs []types.Message) error {
	if threadID == "" {
		return ErrInvalidInput
	}
	for _, m := range msgs {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// historyWindow returns how many of n entries a limit admits, counted from
// the start of the thread.
func historyWindow(n, limit int) int {
	if limit <= 0 || limit > n {
		return n
	}
	return limit
}
