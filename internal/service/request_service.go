package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/notehub-api/internal/dto"
	"github.com/noah-isme/notehub-api/internal/models"
	"github.com/noah-isme/notehub-api/internal/observability"
	"github.com/noah-isme/notehub-api/internal/repository"
)

const defaultMaxReferenceFiles = 5

// RequestServiceConfig tunes the lifecycle engine.
type RequestServiceConfig struct {
	// StrictTransitions only admits the adjacent forward step and pins each
	// step to the participant that owns it.
	StrictTransitions bool
	MaxReferenceFiles int
}

// RequestService owns the note request state machine.
type RequestService interface {
	Create(ctx context.Context, actor Actor, payload dto.RequestCreateRequest, files []dto.FileUpload) (dto.RequestCreatedResponse, error)
	Accept(ctx context.Context, actor Actor, requestID uint) (dto.RequestResponse, error)
	Transition(ctx context.Context, actor Actor, requestID uint, target string) (dto.RequestResponse, error)
	ListFor(ctx context.Context, actor Actor) ([]dto.RequestResponse, error)
	Get(ctx context.Context, actor Actor, requestID uint) (dto.RequestResponse, error)
}

type requestService struct {
	repo      repository.RequestRepository
	users     repository.UserRepository
	uploads   UploadService
	activity  ActivityRecorder
	events    EventPublisher
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	cfg       RequestServiceConfig
	now       func() time.Time
}

// NewRequestService constructs the lifecycle engine.
func NewRequestService(repo repository.RequestRepository, users repository.UserRepository, uploads UploadService, activity ActivityRecorder, events EventPublisher, cfg RequestServiceConfig, validate *validator.Validate, logger zerolog.Logger) RequestService {
	if cfg.MaxReferenceFiles <= 0 {
		cfg.MaxReferenceFiles = defaultMaxReferenceFiles
	}
	return &requestService{
		repo:      repo,
		users:     users,
		uploads:   uploads,
		activity:  activity,
		events:    events,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "request_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/notehub-api/internal/service/request"),
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *requestService) Create(ctx context.Context, actor Actor, payload dto.RequestCreateRequest, files []dto.FileUpload) (dto.RequestCreatedResponse, error) {
	ctx, span := s.tracer.Start(ctx, "requests.create", trace.WithAttributes(
		attribute.Int("request.student_id", int(actor.ID)),
		attribute.Int("request.files", len(files)),
	))
	defer span.End()

	student, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RequestCreatedResponse{}, ErrUnauthenticated
		}
		return dto.RequestCreatedResponse{}, err
	}
	if !student.IsStudent() {
		return dto.RequestCreatedResponse{}, fmt.Errorf("only students can post requests: %w", ErrForbidden)
	}

	payload.Subject = cleanText(s.sanitizer, payload.Subject)
	payload.Topic = cleanText(s.sanitizer, payload.Topic)
	payload.DeliveryLocation = cleanText(s.sanitizer, payload.DeliveryLocation)
	payload.SpecialInstructions = cleanText(s.sanitizer, payload.SpecialInstructions)
	payload.Language = strings.TrimSpace(payload.Language)
	if err := s.validator.Struct(payload); err != nil {
		return dto.RequestCreatedResponse{}, err
	}

	now := s.now()
	if !payload.Deadline.After(now) {
		return dto.RequestCreatedResponse{}, fmt.Errorf("deadline must be in the future: %w", ErrValidation)
	}
	if len(files) > s.cfg.MaxReferenceFiles {
		return dto.RequestCreatedResponse{}, fmt.Errorf("at most %d reference files allowed: %w", s.cfg.MaxReferenceFiles, ErrValidation)
	}

	references := make([]string, 0, len(files))
	for _, file := range files {
		if s.uploads == nil {
			return dto.RequestCreatedResponse{}, errors.New("file uploads are not configured")
		}
		stored, err := s.uploads.Store(ctx, actor.ID, UploadPurposeReference, file)
		if err != nil {
			span.RecordError(err)
			return dto.RequestCreatedResponse{}, err
		}
		references = append(references, stored.URL)
	}

	language := payload.Language
	if language == "" {
		language = "English"
	}
	paymentType := payload.PaymentType
	if paymentType == "" {
		paymentType = models.PaymentFree
	}

	model := models.NoteRequest{
		StudentID:           actor.ID,
		Subject:             payload.Subject,
		Topic:               payload.Topic,
		NoteType:            payload.NoteType,
		Pages:               payload.Pages,
		Deadline:            payload.Deadline.UTC(),
		Language:            language,
		DeliveryLocation:    payload.DeliveryLocation,
		Amount:              payload.Amount,
		PaymentType:         paymentType,
		Status:              models.StatusOpen,
		ReferenceFiles:      datatypes.JSONSlice[string](references),
		SpecialInstructions: payload.SpecialInstructions,
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		if len(references) > 0 {
			s.logger.Error().Err(err).
				Uint("student_id", actor.ID).
				Strs("orphaned_files", references).
				Msg("request not saved, stored reference files are orphaned")
		}
		return dto.RequestCreatedResponse{}, err
	}
	span.SetAttributes(attribute.Int("request.id", int(model.ID)))

	observability.RequestsCreated().Inc()
	s.record(ctx, ActivityEntry{
		RequestID: model.ID,
		ActorID:   actor.ID,
		ActorRole: models.RoleStudent,
		Action:    ActionRequestCreated,
		ToStatus:  models.StatusOpen,
		Metadata:  map[string]interface{}{"reference_files": len(references)},
	})
	s.events.Publish(ctx, dto.EventRequestCreated, dto.NewRequestResponse(model, ""), PoolTopic)

	return dto.RequestCreatedResponse{
		ID:      model.ID,
		Status:  model.Status,
		Message: "Request created successfully",
	}, nil
}

func (s *requestService) Accept(ctx context.Context, actor Actor, requestID uint) (dto.RequestResponse, error) {
	ctx, span := s.tracer.Start(ctx, "requests.accept", trace.WithAttributes(
		attribute.Int("request.id", int(requestID)),
		attribute.Int("request.writer_id", int(actor.ID)),
	))
	defer span.End()

	if !actor.IsWriter() {
		return dto.RequestResponse{}, fmt.Errorf("only writers can accept requests: %w", ErrForbidden)
	}
	writer, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RequestResponse{}, ErrUnauthenticated
		}
		return dto.RequestResponse{}, err
	}
	if !writer.IsWriter() {
		return dto.RequestResponse{}, fmt.Errorf("only writers can accept requests: %w", ErrForbidden)
	}

	accepted, err := s.repo.Accept(ctx, requestID, actor.ID, s.now())
	if err != nil {
		span.RecordError(err)
		return dto.RequestResponse{}, err
	}
	if !accepted {
		if _, err := s.load(ctx, requestID); err != nil {
			return dto.RequestResponse{}, err
		}
		observability.AcceptConflicts().Inc()
		span.SetStatus(codes.Error, "conflict")
		return dto.RequestResponse{}, fmt.Errorf("request not available: %w", ErrConflict)
	}

	request, err := s.load(ctx, requestID)
	if err != nil {
		return dto.RequestResponse{}, err
	}

	observability.LifecycleTransitions().WithLabelValues(models.StatusAccepted).Inc()
	s.record(ctx, ActivityEntry{
		RequestID:  requestID,
		ActorID:    actor.ID,
		ActorRole:  models.RoleWriter,
		Action:     ActionRequestAccepted,
		FromStatus: models.StatusOpen,
		ToStatus:   models.StatusAccepted,
	})
	s.events.Publish(ctx, dto.EventRequestAccepted, dto.RequestAcceptedEvent{
		RequestID:  requestID,
		StudentID:  request.StudentID,
		WriterID:   actor.ID,
		WriterName: writer.Username,
	}, PoolTopic, RequestTopic(requestID))

	return dto.NewRequestResponse(request, models.RoleWriter), nil
}

func (s *requestService) Transition(ctx context.Context, actor Actor, requestID uint, target string) (dto.RequestResponse, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	ctx, span := s.tracer.Start(ctx, "requests.transition", trace.WithAttributes(
		attribute.Int("request.id", int(requestID)),
		attribute.Int("request.actor_id", int(actor.ID)),
		attribute.String("request.target_status", target),
	))
	defer span.End()

	if !models.IsTransitionTarget(target) {
		return dto.RequestResponse{}, fmt.Errorf("unsupported status %q: %w", target, ErrValidation)
	}

	guard := repository.TransitionGuard{
		ActorID:     actor.ID,
		Participant: repository.ParticipantAny,
		AllowedFrom: models.AllowedSources(target, s.cfg.StrictTransitions),
	}
	if s.cfg.StrictTransitions {
		switch models.TargetRole(target) {
		case models.RoleWriter:
			guard.Participant = repository.ParticipantWriter
		case models.RoleStudent:
			guard.Participant = repository.ParticipantStudent
		}
	}

	current, err := s.load(ctx, requestID)
	if err != nil {
		return dto.RequestResponse{}, err
	}
	if err := checkTransition(current, actor, target, guard); err != nil {
		span.SetStatus(codes.Error, ErrorKind(err))
		return dto.RequestResponse{}, err
	}

	updated, err := s.repo.UpdateStatus(ctx, requestID, target, guard, s.now())
	if err != nil {
		span.RecordError(err)
		return dto.RequestResponse{}, err
	}
	if !updated {
		latest, err := s.load(ctx, requestID)
		if err != nil {
			return dto.RequestResponse{}, err
		}
		if err := checkTransition(latest, actor, target, guard); err != nil {
			span.SetStatus(codes.Error, ErrorKind(err))
			return dto.RequestResponse{}, err
		}
		return dto.RequestResponse{}, fmt.Errorf("request changed concurrently: %w", ErrConflict)
	}

	request, err := s.load(ctx, requestID)
	if err != nil {
		return dto.RequestResponse{}, err
	}

	role := viewerRole(request, actor.ID)
	observability.LifecycleTransitions().WithLabelValues(target).Inc()
	s.record(ctx, ActivityEntry{
		RequestID:  requestID,
		ActorID:    actor.ID,
		ActorRole:  role,
		Action:     ActionStatusChanged,
		FromStatus: current.Status,
		ToStatus:   target,
	})
	s.events.Publish(ctx, dto.EventStatusUpdated, dto.StatusUpdatedEvent{
		RequestID: requestID,
		Status:    target,
		UpdatedBy: actor.ID,
	}, PoolTopic, RequestTopic(requestID))

	return dto.NewRequestResponse(request, role), nil
}

func (s *requestService) ListFor(ctx context.Context, actor Actor) ([]dto.RequestResponse, error) {
	switch {
	case actor.IsStudent():
		requests, err := s.repo.ListByStudent(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		return dto.NewRequestResponseSlice(requests, models.RoleStudent), nil
	case actor.IsWriter():
		requests, err := s.repo.ListForWriter(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		return dto.NewRequestResponseSlice(requests, models.RoleWriter), nil
	default:
		return nil, ErrForbidden
	}
}

func (s *requestService) Get(ctx context.Context, actor Actor, requestID uint) (dto.RequestResponse, error) {
	request, err := s.load(ctx, requestID)
	if err != nil {
		return dto.RequestResponse{}, err
	}

	if request.IsParticipant(actor.ID) {
		return dto.NewRequestResponse(request, viewerRole(request, actor.ID)), nil
	}
	if request.Status == models.StatusOpen && actor.IsWriter() {
		return dto.NewRequestResponse(request, models.RoleWriter), nil
	}
	return dto.RequestResponse{}, ErrNotFound
}

func (s *requestService) load(ctx context.Context, requestID uint) (models.NoteRequest, error) {
	request, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NoteRequest{}, ErrNotFound
		}
		return models.NoteRequest{}, err
	}
	return request, nil
}

func (s *requestService) record(ctx context.Context, entry ActivityEntry) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Uint("request_id", entry.RequestID).Str("action", entry.Action).Msg("failed to record activity")
	}
}

// checkTransition explains why guard rejects the request in its current state.
// Non-participants get NotFound so the request's existence is not leaked.
func checkTransition(request models.NoteRequest, actor Actor, target string, guard repository.TransitionGuard) error {
	if !request.IsParticipant(actor.ID) {
		return ErrNotFound
	}
	if request.IsTerminal() {
		return fmt.Errorf("request is already %s: %w", request.Status, ErrInvalidState)
	}

	switch guard.Participant {
	case repository.ParticipantWriter:
		if !request.IsWriter(actor.ID) {
			return fmt.Errorf("only the writer may set %s: %w", target, ErrForbidden)
		}
	case repository.ParticipantStudent:
		if request.StudentID != actor.ID {
			return fmt.Errorf("only the student may set %s: %w", target, ErrForbidden)
		}
	}

	for _, allowed := range guard.AllowedFrom {
		if allowed == request.Status {
			return nil
		}
	}
	return fmt.Errorf("cannot move request from %s to %s: %w", request.Status, target, ErrInvalidState)
}

func viewerRole(request models.NoteRequest, userID uint) string {
	if request.IsWriter(userID) {
		return models.RoleWriter
	}
	return models.RoleStudent
}
