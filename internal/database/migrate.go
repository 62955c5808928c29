package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/notehub-api/internal/models"
)

// Migrate creates or updates the schema for every persisted model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.NoteRequest{},
		&models.Message{},
		&models.Rating{},
		&models.ActivityLog{},
		&models.UploadRecord{},
	)
}
