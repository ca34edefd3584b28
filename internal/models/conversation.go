package models

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	ChatbotID   uuid.UUID `json:"chatbotId" db:"chatbot_id"`
	Title       string    `json:"title" db:"title"`
	LastUpdated time.Time `json:"lastUpdated" db:"last_updated"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Message is one turn of a conversation. Sources is only populated on
// assistant turns.
type Message struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ConversationID uuid.UUID `json:"conversationId" db:"conversation_id"`
	Role           string    `json:"role" db:"role"`
	Content        string    `json:"content" db:"content"`
	Sources        []string  `json:"sources,omitempty" db:"sources"`
	CreatedAt      time.Time `json:"timestamp" db:"created_at"`
}

const (
	RoleUser = "user"
	RoleAI   = "ai"
)

const DefaultConversationTitle = "New Conversation"
