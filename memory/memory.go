// Package memory stores per-user conversational state in two durable logs:
// a short-term chat history replayed as model context, and an append-only
// long-term record of completed exchanges.
package memory

import (
	"errors"
)

const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
)

// ErrEmptyHistory reports that a user has no recorded exchanges to export.
var ErrEmptyHistory = errors.New("no conversation history for user")

// ChatMessage is one turn of the short-term session history.
type ChatMessage struct {
	Role    string
	Content string
}

// ConversationEntry is one completed question/answer exchange. Entries are
// never mutated after creation.
type ConversationEntry struct {
	Question   string
	Answer     string
	Timestamp  string
	Source     string
	SourceType string
}
