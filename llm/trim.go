package llm

import (
	"strings"

	"github.com/BaSui01/streamrelay/types"
)

// TrimToFirstUser drops leading messages until the first user message.
// The result is empty when no user message exists.
func TrimToFirstUser(messages []types.Message) []types.Message {
	for i, m := range messages {
		if m.Role == types.RoleUser {
			return messages[i:]
		}
	}
	return nil
}

// SplitInstructions folds every system message into the instruction block and
// returns the remaining conversation turns.
func SplitInstructions(instructions string, messages []types.Message) (string, []types.Message) {
	parts := make([]string, 0, 1)
	if s := strings.TrimSpace(instructions); s != "" {
		parts = append(parts, s)
	}
	turns := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			if s := strings.TrimSpace(m.Content); s != "" {
				parts = append(parts, s)
			}
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(parts, "\n\n"), turns
}

// PrepareHistory splits out instructions and trims the remaining turns so
// they start with a user message.
func PrepareHistory(instructions string, messages []types.Message) (string, []types.Message) {
	inst, turns := SplitInstructions(instructions, messages)
	return inst, TrimToFirstUser(turns)
}
