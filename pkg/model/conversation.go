package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrConversationNotFound = goerr.New("conversation not found")
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the full transcript of one journaling session. Messages are
// in chronological turn order and the first message is the system instruction.
// CreatedAt is set once at the first user turn and never changes afterwards.
type Conversation struct {
	SessionID SessionID
	Messages  []Message
	CreatedAt time.Time
}

// NewConversation creates an empty conversation seeded with the system
// instruction as its first message.
func NewConversation(id SessionID, instruction string) *Conversation {
	return &Conversation{
		SessionID: id,
		Messages: []Message{
			{Role: RoleSystem, Content: instruction},
		},
	}
}

// Transcript returns the messages presented to topic classification: every
// turn except the leading system instruction.
func (c *Conversation) Transcript() []Message {
	if len(c.Messages) > 0 && c.Messages[0].Role == RoleSystem {
		return c.Messages[1:]
	}
	return c.Messages
}
