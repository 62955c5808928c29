package models

import (
	"time"

	"gorm.io/datatypes"
)

// Request statuses.
const (
	StatusOpen       = "open"
	StatusAccepted   = "accepted"
	StatusInProgress = "in_progress"
	StatusReady      = "ready"
	StatusDelivered  = "delivered"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Note types.
const (
	NoteTypeHandwritten = "handwritten"
	NoteTypePrinted     = "printed"
)

// Payment types. Amount and payment type are stored metadata only.
const (
	PaymentFree = "free"
	PaymentPaid = "paid"
	PaymentCOD  = "cod"
)

// NoteRequest is a unit of work posted by a student and claimed by at most one writer.
type NoteRequest struct {
	ID                  uint                        `gorm:"primaryKey" json:"id"`
	StudentID           uint                        `gorm:"not null;index" json:"student_id"`
	WriterID            *uint                       `gorm:"index" json:"writer_id"`
	Subject             string                      `gorm:"size:100;not null" json:"subject"`
	Topic               string                      `gorm:"type:text;not null" json:"topic"`
	NoteType            string                      `gorm:"size:16;not null" json:"note_type"`
	Pages               int                         `gorm:"not null" json:"pages"`
	Deadline            time.Time                   `gorm:"not null" json:"deadline"`
	Language            string                      `gorm:"size:20;not null;default:English" json:"language"`
	DeliveryLocation    string                      `gorm:"size:200;not null" json:"delivery_location"`
	Amount              float64                     `gorm:"type:decimal(10,2);not null;default:0" json:"amount"`
	PaymentType         string                      `gorm:"size:8;not null;default:free" json:"payment_type"`
	Status              string                      `gorm:"size:16;not null;default:open;index" json:"status"`
	ReferenceFiles      datatypes.JSONSlice[string] `gorm:"type:json" json:"reference_files"`
	SpecialInstructions string                      `gorm:"type:text" json:"special_instructions"`
	CreatedAt           time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time                   `json:"updated_at"`
	Student             User                        `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Writer              *User                       `gorm:"foreignKey:WriterID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}

// TableName keeps the historical table name.
func (NoteRequest) TableName() string {
	return "note_requests"
}

// IsParticipant reports whether the user is the request's student or assigned writer.
func (r NoteRequest) IsParticipant(userID uint) bool {
	return r.StudentID == userID || r.IsWriter(userID)
}

// IsWriter reports whether userID is the assigned writer.
func (r NoteRequest) IsWriter(userID uint) bool {
	return r.WriterID != nil && *r.WriterID == userID
}

// Counterpart returns the other participant of the conversation, if assigned.
func (r NoteRequest) Counterpart(userID uint) (uint, bool) {
	if r.WriterID == nil {
		return 0, false
	}
	switch userID {
	case r.StudentID:
		return *r.WriterID, true
	case *r.WriterID:
		return r.StudentID, true
	default:
		return 0, false
	}
}

// IsTerminal reports whether no further transition is possible.
func (r NoteRequest) IsTerminal() bool {
	return IsTerminalStatus(r.Status)
}
