package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/notehub-api/internal/models"
)

// Participant selectors for TransitionGuard.
const (
	ParticipantAny     = "any"
	ParticipantWriter  = "writer"
	ParticipantStudent = "student"
)

// TransitionGuard is the predicate a status update must satisfy to apply.
type TransitionGuard struct {
	ActorID     uint
	Participant string
	AllowedFrom []string
}

// RequestRepository persists note requests. Accept and UpdateStatus are single
// conditional updates whose affected-row count signals success.
type RequestRepository interface {
	Create(ctx context.Context, request *models.NoteRequest) error
	GetByID(ctx context.Context, id uint) (models.NoteRequest, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.NoteRequest, error)
	ListForWriter(ctx context.Context, writerID uint) ([]models.NoteRequest, error)
	Accept(ctx context.Context, id, writerID uint, at time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id uint, target string, guard TransitionGuard, at time.Time) (bool, error)
}

type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository constructs a request repository backed by GORM.
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, request *models.NoteRequest) error {
	return r.db.WithContext(ctx).Omit("Student", "Writer").Create(request).Error
}

func (r *requestRepository) GetByID(ctx context.Context, id uint) (models.NoteRequest, error) {
	var request models.NoteRequest
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Writer").
		First(&request, id).Error
	if err != nil {
		return models.NoteRequest{}, err
	}
	return request, nil
}

func (r *requestRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.NoteRequest, error) {
	var requests []models.NoteRequest
	err := r.db.WithContext(ctx).
		Preload("Writer").
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *requestRepository) ListForWriter(ctx context.Context, writerID uint) ([]models.NoteRequest, error) {
	var requests []models.NoteRequest
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("status = ? OR writer_id = ?", models.StatusOpen, writerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *requestRepository) Accept(ctx context.Context, id, writerID uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.NoteRequest{}).
		Where("id = ? AND status = ? AND writer_id IS NULL", id, models.StatusOpen).
		Updates(map[string]interface{}{
			"writer_id":  writerID,
			"status":     models.StatusAccepted,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *requestRepository) UpdateStatus(ctx context.Context, id uint, target string, guard TransitionGuard, at time.Time) (bool, error) {
	if len(guard.AllowedFrom) == 0 {
		return false, nil
	}

	query := r.db.WithContext(ctx).
		Model(&models.NoteRequest{}).
		Where("id = ?", id).
		Where("status IN ?", guard.AllowedFrom)

	switch guard.Participant {
	case ParticipantWriter:
		query = query.Where("writer_id = ?", guard.ActorID)
	case ParticipantStudent:
		query = query.Where("student_id = ?", guard.ActorID)
	default:
		query = query.Where("writer_id = ? OR student_id = ?", guard.ActorID, guard.ActorID)
	}

	result := query.Updates(map[string]interface{}{
		"status":     target,
		"updated_at": at,
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
