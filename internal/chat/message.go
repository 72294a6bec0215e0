// Package chat defines the conversational message model shared by the
// session controller, the completion client and the history stores.
package chat

import (
	"slices"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single entry of the conversation history.
// ID is an in-process identity only; it is never sent over the wire or stored.
type Message struct {
	ID      string `json:"-"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a Message with a fresh identity.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Role:    role,
		Content: content,
	}
}

// Clone returns a copy of msgs that does not share its backing array.
func Clone(msgs []Message) []Message {
	if msgs == nil {
		return []Message{}
	}
	return slices.Clone(msgs)
}

// IndexByID returns the position of the message with the given id, or -1.
func IndexByID(msgs []Message, id string) int {
	return slices.IndexFunc(msgs, func(m Message) bool { return m.ID == id })
}
