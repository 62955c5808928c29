package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/notehub-api/internal/models"
)

// MessageRepository persists the append-only chat log of each request.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListByRequest(ctx context.Context, requestID uint) ([]models.Message, error)
	MarkRead(ctx context.Context, requestID, receiverID uint) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit("Sender").Create(message).Error; err != nil {
		return err
	}
	return db.Preload("Sender").First(message, message.ID).Error
}

func (r *messageRepository) ListByRequest(ctx context.Context, requestID uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("request_id = ?", requestID).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead flags every unread message addressed to receiverID. Re-marking is a no-op.
func (r *messageRepository) MarkRead(ctx context.Context, requestID, receiverID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("request_id = ? AND receiver_id = ? AND is_read = ?", requestID, receiverID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}
