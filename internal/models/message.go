package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MaxMessageLength   = 2000
	DefaultMessagePage = 50
	MaxMessagePage     = 200
)

type Conversation struct {
	ID            uuid.UUID  `json:"id"`
	ParticipantA  uuid.UUID  `json:"participant_a"`
	ParticipantB  uuid.UUID  `json:"participant_b"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Includes reports whether userID takes part in the conversation.
func (c Conversation) Includes(userID uuid.UUID) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

type ConversationSummary struct {
	ID            uuid.UUID      `json:"id"`
	Other         ProfileSummary `json:"other"`
	LastMessageAt *time.Time     `json:"last_message_at,omitempty"`
	UnreadCount   int            `json:"unread_count"`
}

type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	Content        string     `json:"content"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
