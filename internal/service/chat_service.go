package service

import (
	"context"
	"errors"
	"fmt"
	"time"

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

// ChatService manages the per-request conversation between student and writer.
type ChatService interface {
	Send(ctx context.Context, actor Actor, requestID uint, payload dto.ChatSendRequest, file *dto.FileUpload) (dto.ChatMessageResponse, error)
	List(ctx context.Context, actor Actor, requestID uint) ([]dto.ChatMessageResponse, error)
}

type chatService struct {
	requests  repository.RequestRepository
	messages  repository.MessageRepository
	uploads   UploadService
	events    EventPublisher
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewChatService creates the chat subsystem.
func NewChatService(requests repository.RequestRepository, messages repository.MessageRepository, uploads UploadService, events EventPublisher, validate *validator.Validate, logger zerolog.Logger) ChatService {
	return &chatService{
		requests:  requests,
		messages:  messages,
		uploads:   uploads,
		events:    events,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "chat_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/notehub-api/internal/service/chat"),
		now:       time.Now,
	}
}

func (s *chatService) Send(ctx context.Context, actor Actor, requestID uint, payload dto.ChatSendRequest, file *dto.FileUpload) (dto.ChatMessageResponse, error) {
	ctx, span := s.tracer.Start(ctx, "chat.send", trace.WithAttributes(
		attribute.Int("chat.request_id", int(requestID)),
		attribute.Int("chat.sender_id", int(actor.ID)),
		attribute.Bool("chat.has_file", file != nil),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.ChatMessageResponse{}, err
	}

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChatMessageResponse{}, ErrNotFound
		}
		return dto.ChatMessageResponse{}, err
	}
	if !request.IsParticipant(actor.ID) {
		return dto.ChatMessageResponse{}, fmt.Errorf("not a participant of this request: %w", ErrForbidden)
	}

	text := cleanText(s.sanitizer, payload.Message)
	if text == "" && file == nil {
		return dto.ChatMessageResponse{}, ErrInvalidMessage
	}
	receiverID, ok := request.Counterpart(actor.ID)
	if !ok {
		return dto.ChatMessageResponse{}, fmt.Errorf("request has no writer yet: %w", ErrInvalidState)
	}

	model := models.Message{
		RequestID:   requestID,
		SenderID:    actor.ID,
		ReceiverID:  receiverID,
		Body:        text,
		MessageType: models.MessageTypeText,
	}

	if file != nil {
		if s.uploads == nil {
			return dto.ChatMessageResponse{}, errors.New("file uploads are not configured")
		}
		stored, err := s.uploads.Store(ctx, actor.ID, UploadPurposeChat, *file)
		if err != nil {
			span.RecordError(err)
			return dto.ChatMessageResponse{}, err
		}
		model.MessageType = MessageTypeFor(stored.MimeType)
		model.FilePath = &stored.URL
	}
	model.Timestamp = s.now().UTC()

	if err := s.messages.Create(ctx, &model); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		if model.FilePath != nil {
			s.logger.Error().Err(err).
				Uint("request_id", requestID).
				Str("orphaned_file", *model.FilePath).
				Msg("message not saved, stored attachment is orphaned")
		}
		return dto.ChatMessageResponse{}, err
	}

	response := dto.NewChatMessageResponse(model)
	observability.ChatMessagesSent().WithLabelValues(model.MessageType).Inc()
	s.events.Publish(ctx, dto.EventNewMessage, response, RequestTopic(requestID))

	return response, nil
}

func (s *chatService) List(ctx context.Context, actor Actor, requestID uint) ([]dto.ChatMessageResponse, error) {
	ctx, span := s.tracer.Start(ctx, "chat.list", trace.WithAttributes(
		attribute.Int("chat.request_id", int(requestID)),
		attribute.Int("chat.reader_id", int(actor.ID)),
	))
	defer span.End()

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !request.IsParticipant(actor.ID) {
		return nil, fmt.Errorf("not a participant of this request: %w", ErrForbidden)
	}

	messages, err := s.messages.ListByRequest(ctx, requestID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	marked, err := s.messages.MarkRead(ctx, requestID, actor.ID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("chat.marked_read", marked))

	return dto.NewChatMessageResponseSlice(messages), nil
}
