package models

import "time"

// Rating bounds.
const (
	MinScore = 1
	MaxScore = 5
)

// Rating is the single immutable review a student leaves on a completed request.
type Rating struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RequestID uint      `gorm:"not null;uniqueIndex" json:"request_id"`
	StudentID uint      `gorm:"not null;index" json:"student_id"`
	WriterID  uint      `gorm:"not null;index" json:"writer_id"`
	Score     int       `gorm:"column:rating;not null" json:"rating"`
	Review    string    `gorm:"type:text" json:"review"`
	CreatedAt time.Time `json:"created_at"`
}
