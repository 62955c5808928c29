package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/notehub-api/internal/dto"
	"github.com/noah-isme/notehub-api/internal/models"
	"github.com/noah-isme/notehub-api/internal/repository"
)

// Activity actions recorded on the lifecycle audit trail.
const (
	ActionRequestCreated  = "request.created"
	ActionRequestAccepted = "request.accepted"
	ActionStatusChanged   = "request.status_changed"
	ActionRequestRated    = "request.rated"
)

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	RequestID  uint
	ActorID    uint
	ActorRole  string
	Action     string
	FromStatus string
	ToStatus   string
	Metadata   map[string]interface{}
}

// ActivityRecorder defines behaviour for recording activity logs.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) error
}

// ActivityService exposes methods to query and persist the request audit trail.
type ActivityService interface {
	ActivityRecorder
	ListForRequest(ctx context.Context, actor Actor, requestID uint) ([]dto.ActivityResponse, error)
}

type activityService struct {
	repo     repository.ActivityLogRepository
	requests repository.RequestRepository
	logger   zerolog.Logger
}

// NewActivityService constructs the activity log service.
func NewActivityService(repo repository.ActivityLogRepository, requests repository.RequestRepository, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:     repo,
		requests: requests,
		logger:   logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) error {
	if entry.RequestID == 0 {
		return fmt.Errorf("request id is required")
	}
	if strings.TrimSpace(entry.Action) == "" {
		return fmt.Errorf("action is required")
	}

	model := models.ActivityLog{
		RequestID:  entry.RequestID,
		ActorID:    entry.ActorID,
		ActorRole:  normalizeRole(entry.ActorRole),
		Action:     strings.ToLower(strings.TrimSpace(entry.Action)),
		FromStatus: entry.FromStatus,
		ToStatus:   entry.ToStatus,
		Metadata:   sanitizeMetadata(entry.Metadata),
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Uint("request_id", entry.RequestID).Msg("failed to persist activity log")
		return err
	}
	return nil
}

func (s *activityService) ListForRequest(ctx context.Context, actor Actor, requestID uint) ([]dto.ActivityResponse, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !request.IsParticipant(actor.ID) {
		return nil, ErrNotFound
	}

	entries, err := s.repo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, dto.NewActivityResponse(entry))
	}
	return responses, nil
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	if metadata == nil {
		return datatypes.JSONMap{}
	}

	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") || strings.Contains(lower, "phone") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}
