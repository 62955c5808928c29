package models

import "time"

// Message types.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// Message is an append-only chat entry between the two participants of a request.
// Only IsRead ever changes after creation.
type Message struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RequestID   uint      `gorm:"not null;index" json:"request_id"`
	SenderID    uint      `gorm:"not null;index" json:"sender_id"`
	ReceiverID  uint      `gorm:"not null;index" json:"receiver_id"`
	Body        string    `gorm:"column:message;type:text;not null" json:"message"`
	MessageType string    `gorm:"size:8;not null;default:text" json:"message_type"`
	FilePath    *string   `gorm:"size:512" json:"file_path"`
	Timestamp   time.Time `gorm:"not null;index" json:"timestamp"`
	IsRead      bool      `gorm:"not null;default:false" json:"is_read"`
	Sender      User      `gorm:"foreignKey:SenderID" json:"-"`
}
