package dto

import (
	"time"

	"github.com/noah-isme/notehub-api/internal/models"
)

// ChatSendRequest carries the text part of a chat message.
type ChatSendRequest struct {
	Message string `json:"message" form:"message" validate:"max=4000"`
}

// ChatMessageResponse is the serialized representation of a chat message.
type ChatMessageResponse struct {
	ID          uint      `json:"id"`
	RequestID   uint      `json:"request_id"`
	SenderID    uint      `json:"sender_id"`
	ReceiverID  uint      `json:"receiver_id"`
	SenderName  string    `json:"sender_name"`
	Message     string    `json:"message"`
	MessageType string    `json:"message_type"`
	FilePath    *string   `json:"file_path"`
	Timestamp   time.Time `json:"timestamp"`
	IsRead      bool      `json:"is_read"`
}

// NewChatMessageResponse converts a model into a DTO.
func NewChatMessageResponse(message models.Message) ChatMessageResponse {
	return ChatMessageResponse{
		ID:          message.ID,
		RequestID:   message.RequestID,
		SenderID:    message.SenderID,
		ReceiverID:  message.ReceiverID,
		SenderName:  message.Sender.Username,
		Message:     message.Body,
		MessageType: message.MessageType,
		FilePath:    message.FilePath,
		Timestamp:   message.Timestamp,
		IsRead:      message.IsRead,
	}
}

// NewChatMessageResponseSlice converts a slice of models into DTOs.
func NewChatMessageResponseSlice(messages []models.Message) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewChatMessageResponse(message))
	}
	return out
}
