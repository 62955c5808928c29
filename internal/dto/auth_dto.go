package dto

import (
	"time"

	"github.com/noah-isme/notehub-api/internal/models"
)

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	Username string `json:"username" form:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" form:"email" validate:"required,email,max=100"`
	Password string `json:"password" form:"password" validate:"required,min=6,max=72"`
	Role     string `json:"user_type" form:"user_type" validate:"required,oneof=student writer"`
	Phone    string `json:"phone" form:"phone" validate:"omitempty,max=20"`
	Location string `json:"location" form:"location" validate:"omitempty,max=100"`
}

// LoginRequest is the payload for exchanging credentials for a token.
type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          uint      `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Role        string    `json:"user_type"`
	Phone       string    `json:"phone"`
	Location    string    `json:"location"`
	Rating      float64   `json:"rating"`
	TotalOrders int       `json:"total_orders"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuthResponse pairs an identity with its bearer token.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// NewUserResponse converts a user model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Role:        user.Role,
		Phone:       user.Phone,
		Location:    user.Location,
		Rating:      user.Rating,
		TotalOrders: user.TotalOrders,
		CreatedAt:   user.CreatedAt,
	}
}

// WriterProfileResponse is the reputation view of a writer visible to any authenticated user.
type WriterProfileResponse struct {
	ID          uint    `json:"id"`
	Username    string  `json:"username"`
	Location    string  `json:"location"`
	Rating      float64 `json:"rating"`
	TotalOrders int     `json:"total_orders"`
}

// NewWriterProfileResponse converts a writer model into its public profile.
func NewWriterProfileResponse(user models.User) WriterProfileResponse {
	return WriterProfileResponse{
		ID:          user.ID,
		Username:    user.Username,
		Location:    user.Location,
		Rating:      user.Rating,
		TotalOrders: user.TotalOrders,
	}
}
