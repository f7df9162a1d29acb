// ABOUTME: Conversation and message data model for the chat store
// ABOUTME: Records serialize as JSON documents in the key-value substrate

package chat

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one the store accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single utterance in a conversation. Content is immutable
// once appended; edits are not supported.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is one chat thread between a technician and the assistant.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Messages     []Message `json:"messages"`
	DateCreated  time.Time `json:"dateCreated"`
	DateModified time.Time `json:"dateModified"`
	Starred      bool      `json:"starred"`
	Archived     bool      `json:"archived"`
	SystemType   string    `json:"systemType,omitempty"`   // equipment discriminator: "furnace", "heat_pump", "ac", ...
	DiagnosticID string    `json:"diagnosticId,omitempty"` // optional link to a diagnostic session
}

// Clone returns a deep copy so callers never share message slices with
// repository state.
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return &out
}

// Clock supplies timestamps. Injected so tests control time.
type Clock func() time.Time

// IDFunc generates opaque unique identifiers.
type IDFunc func() string
