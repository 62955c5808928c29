package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/notehub-api/internal/database"
	"github.com/noah-isme/notehub-api/internal/models"
)

func setupRepositoryDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username, role string) models.User {
	t.Helper()

	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Role:         role,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createRequest(t *testing.T, repo RequestRepository, studentID uint) models.NoteRequest {
	t.Helper()

	request := models.NoteRequest{
		StudentID:        studentID,
		Subject:          "Physics",
		Topic:            "Thermodynamics",
		NoteType:         models.NoteTypeHandwritten,
		Pages:            4,
		Deadline:         time.Now().Add(72 * time.Hour),
		Language:         "English",
		DeliveryLocation: "Library",
		PaymentType:      models.PaymentFree,
		Status:           models.StatusOpen,
	}
	require.NoError(t, repo.Create(context.Background(), &request))
	return request
}
