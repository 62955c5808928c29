package models

import "time"

// User roles.
const (
	RoleStudent = "student"
	RoleWriter  = "writer"
)

// User is a registered student or writer. Rating and TotalOrders are only
// written by the reputation aggregator.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:16;not null" json:"role"`
	Phone        string    `gorm:"size:20" json:"phone"`
	Location     string    `gorm:"size:100" json:"location"`
	Rating       float64   `gorm:"type:decimal(3,2);not null;default:0" json:"rating"`
	TotalOrders  int       `gorm:"not null;default:0" json:"total_orders"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsWriter reports whether the user fulfils requests.
func (u User) IsWriter() bool {
	return u.Role == RoleWriter
}

// IsStudent reports whether the user posts requests.
func (u User) IsStudent() bool {
	return u.Role == RoleStudent
}
