package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is the audit trail of lifecycle actions taken on a request.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	RequestID  uint              `gorm:"not null;index" json:"request_id"`
	ActorID    uint              `gorm:"not null" json:"actor_id"`
	ActorRole  string            `gorm:"size:16;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null" json:"action"`
	FromStatus string            `gorm:"size:16" json:"from_status,omitempty"`
	ToStatus   string            `gorm:"size:16" json:"to_status,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}
