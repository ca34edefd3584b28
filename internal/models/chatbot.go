package models

import (
	"time"

	"github.com/google/uuid"
)

type Chatbot struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	URL       string    `json:"url" db:"url"`
	Name      string    `json:"name" db:"name"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

const (
	ChatbotStatusProcessing = "processing"
	ChatbotStatusReady      = "ready"
	ChatbotStatusError      = "error"
)

const DefaultChatbotName = "New Assistant"
