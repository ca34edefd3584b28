package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TypeChatbotIngest = "chatbot:ingest"

type ChatbotIngestPayload struct {
	ChatbotID string `json:"chatbot_id"`
}

// NewChatbotIngestTask builds the task that crawls and indexes one chatbot.
func NewChatbotIngestTask(chatbotID uuid.UUID) (*asynq.Task, error) {
	data, err := json.Marshal(ChatbotIngestPayload{ChatbotID: chatbotID.String()})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeChatbotIngest, data), nil
}

// ParseChatbotIngest decodes the payload of a chatbot:ingest task.
func ParseChatbotIngest(t *asynq.Task) (uuid.UUID, error) {
	var p ChatbotIngestPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return uuid.Nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	id, err := uuid.Parse(p.ChatbotID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse chatbot id: %w", err)
	}
	return id, nil
}
