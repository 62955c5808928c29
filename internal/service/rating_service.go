package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/notehub-api/internal/dto"
	"github.com/noah-isme/notehub-api/internal/models"
	"github.com/noah-isme/notehub-api/internal/observability"
	"github.com/noah-isme/notehub-api/internal/repository"
)

// RatingService is the reputation aggregator: it stores a student's rating of a
// completed request and refreshes the writer's average and order count.
type RatingService interface {
	Rate(ctx context.Context, actor Actor, requestID uint, payload dto.RatingCreateRequest) (dto.RatingResponse, error)
}

type ratingService struct {
	repo      repository.RatingRepository
	profiles  ProfileService
	activity  ActivityRecorder
	events    EventPublisher
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewRatingService constructs the reputation aggregator.
func NewRatingService(repo repository.RatingRepository, profiles ProfileService, activity ActivityRecorder, events EventPublisher, validate *validator.Validate, logger zerolog.Logger) RatingService {
	return &ratingService{
		repo:      repo,
		profiles:  profiles,
		activity:  activity,
		events:    events,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "rating_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/notehub-api/internal/service/rating"),
	}
}

func (s *ratingService) Rate(ctx context.Context, actor Actor, requestID uint, payload dto.RatingCreateRequest) (dto.RatingResponse, error) {
	ctx, span := s.tracer.Start(ctx, "ratings.rate", trace.WithAttributes(
		attribute.Int("rating.request_id", int(requestID)),
		attribute.Int("rating.student_id", int(actor.ID)),
		attribute.Float64("rating.score", float64(payload.Rating)),
	))
	defer span.End()

	payload.Review = cleanText(s.sanitizer, payload.Review)
	if err := s.validator.Struct(payload); err != nil {
		return dto.RatingResponse{}, err
	}

	rating, writer, err := s.repo.Rate(ctx, requestID, func(request models.NoteRequest) (models.Rating, error) {
		if request.StudentID != actor.ID {
			return models.Rating{}, fmt.Errorf("only the requesting student can rate: %w", ErrForbidden)
		}
		if request.Status != models.StatusCompleted || request.WriterID == nil {
			return models.Rating{}, fmt.Errorf("request is %s, not completed: %w", request.Status, ErrInvalidState)
		}
		score, ok := payload.Rating.Int()
		if !ok || score < models.MinScore || score > models.MaxScore {
			return models.Rating{}, ErrInvalidScore
		}
		return models.Rating{
			RequestID: request.ID,
			StudentID: actor.ID,
			WriterID:  *request.WriterID,
			Score:     score,
			Review:    payload.Review,
		}, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return dto.RatingResponse{}, ErrNotFound
		case errors.Is(err, repository.ErrRatingExists):
			return dto.RatingResponse{}, ErrAlreadyRated
		}
		if ErrorKind(err) == KindInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, "persistence failed")
		}
		return dto.RatingResponse{}, err
	}

	observability.RatingsSubmitted().Inc()
	if s.profiles != nil {
		s.profiles.Invalidate(ctx, writer.ID)
	}
	if s.activity != nil {
		if err := s.activity.Record(ctx, ActivityEntry{
			RequestID: requestID,
			ActorID:   actor.ID,
			ActorRole: models.RoleStudent,
			Action:    ActionRequestRated,
			Metadata:  map[string]interface{}{"score": rating.Score},
		}); err != nil {
			s.logger.Warn().Err(err).Uint("request_id", requestID).Msg("failed to record rating activity")
		}
	}
	s.events.Publish(ctx, dto.EventRequestRated, dto.RequestRatedEvent{
		RequestID:         requestID,
		WriterID:          writer.ID,
		Score:             rating.Score,
		WriterRating:      writer.Rating,
		WriterTotalOrders: writer.TotalOrders,
	}, RequestTopic(requestID))

	return dto.NewRatingResponse(rating, writer), nil
}
