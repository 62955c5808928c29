package dto

import (
	"time"

	"github.com/noah-isme/notehub-api/internal/models"
)

// RequestCreateRequest carries the student-supplied fields of a new note request.
type RequestCreateRequest struct {
	Subject             string    `json:"subject" validate:"required,max=100"`
	Topic               string    `json:"topic" validate:"required,max=5000"`
	NoteType            string    `json:"note_type" validate:"required,oneof=handwritten printed"`
	Pages               int       `json:"pages" validate:"required,gt=0,lte=1000"`
	Deadline            time.Time `json:"deadline" validate:"required"`
	Language            string    `json:"language" validate:"omitempty,max=20"`
	DeliveryLocation    string    `json:"delivery_location" validate:"required,max=200"`
	Amount              float64   `json:"amount" validate:"gte=0"`
	PaymentType         string    `json:"payment_type" validate:"omitempty,oneof=free paid cod"`
	SpecialInstructions string    `json:"special_instructions" validate:"omitempty,max=5000"`
}

// StatusUpdateRequest asks for a lifecycle transition.
type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=in_progress ready delivered completed cancelled"`
}

// RequestCreatedResponse is returned after a request is stored.
type RequestCreatedResponse struct {
	ID      uint   `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// RequestResponse is the serialized view of a note request, enriched with the
// counterpart's contact details depending on who is looking.
type RequestResponse struct {
	ID                  uint      `json:"id"`
	StudentID           uint      `json:"student_id"`
	WriterID            *uint     `json:"writer_id"`
	Subject             string    `json:"subject"`
	Topic               string    `json:"topic"`
	NoteType            string    `json:"note_type"`
	Pages               int       `json:"pages"`
	Deadline            time.Time `json:"deadline"`
	Language            string    `json:"language"`
	DeliveryLocation    string    `json:"delivery_location"`
	Amount              float64   `json:"amount"`
	PaymentType         string    `json:"payment_type"`
	Status              string    `json:"status"`
	ReferenceFiles      []string  `json:"reference_files"`
	SpecialInstructions string    `json:"special_instructions"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	WriterName          string    `json:"writer_name,omitempty"`
	WriterPhone         string    `json:"writer_phone,omitempty"`
	StudentName         string    `json:"student_name,omitempty"`
	StudentPhone        string    `json:"student_phone,omitempty"`
}

// NewRequestResponse converts a request model into a DTO. Students see writer
// details, writers see student details.
func NewRequestResponse(request models.NoteRequest, viewerRole string) RequestResponse {
	files := []string(request.ReferenceFiles)
	if files == nil {
		files = []string{}
	}

	response := RequestResponse{
		ID:                  request.ID,
		StudentID:           request.StudentID,
		WriterID:            request.WriterID,
		Subject:             request.Subject,
		Topic:               request.Topic,
		NoteType:            request.NoteType,
		Pages:               request.Pages,
		Deadline:            request.Deadline,
		Language:            request.Language,
		DeliveryLocation:    request.DeliveryLocation,
		Amount:              request.Amount,
		PaymentType:         request.PaymentType,
		Status:              request.Status,
		ReferenceFiles:      files,
		SpecialInstructions: request.SpecialInstructions,
		CreatedAt:           request.CreatedAt,
		UpdatedAt:           request.UpdatedAt,
	}

	switch viewerRole {
	case models.RoleStudent:
		if request.Writer != nil {
			response.WriterName = request.Writer.Username
			response.WriterPhone = request.Writer.Phone
		}
	case models.RoleWriter:
		if request.Student.ID != 0 {
			response.StudentName = request.Student.Username
			response.StudentPhone = request.Student.Phone
		}
	}

	return response
}

// NewRequestResponseSlice converts a slice of models into DTOs.
func NewRequestResponseSlice(requests []models.NoteRequest, viewerRole string) []RequestResponse {
	out := make([]RequestResponse, 0, len(requests))
	for _, request := range requests {
		out = append(out, NewRequestResponse(request, viewerRole))
	}
	return out
}

// ActivityResponse is one audit trail entry.
type ActivityResponse struct {
	ID         uint                   `json:"id"`
	RequestID  uint                   `json:"request_id"`
	ActorID    uint                   `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	Action     string                 `json:"action"`
	FromStatus string                 `json:"from_status,omitempty"`
	ToStatus   string                 `json:"to_status,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// NewActivityResponse converts an activity log model to DTO.
func NewActivityResponse(model models.ActivityLog) ActivityResponse {
	var metadata map[string]interface{}
	if len(model.Metadata) > 0 {
		metadata = map[string]interface{}(model.Metadata)
	}
	return ActivityResponse{
		ID:         model.ID,
		RequestID:  model.RequestID,
		ActorID:    model.ActorID,
		ActorRole:  model.ActorRole,
		Action:     model.Action,
		FromStatus: model.FromStatus,
		ToStatus:   model.ToStatus,
		Metadata:   metadata,
		CreatedAt:  model.CreatedAt,
	}
}
