package service

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrValidation indicates malformed, missing or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthenticated indicates a missing or invalid credential.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates the caller has the wrong role or is not a participant.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates the caller lost a race for the same resource.
	ErrConflict = errors.New("conflict")
	// ErrUserExists indicates the email or username is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrNotFound indicates the entity is absent or not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates a lifecycle precondition was violated.
	ErrInvalidState = errors.New("invalid state")
	// ErrAlreadyRated indicates the request already carries a rating.
	ErrAlreadyRated = errors.New("request already rated")
	// ErrInvalidScore indicates a rating outside 1..5.
	ErrInvalidScore = errors.New("score must be an integer between 1 and 5")
	// ErrInvalidMessage indicates a chat message without text or file.
	ErrInvalidMessage = errors.New("message requires text or a file")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the media type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

// Error kinds returned to clients.
const (
	KindValidation     = "validation_error"
	KindAuth           = "auth_error"
	KindForbidden      = "forbidden"
	KindConflict       = "conflict"
	KindNotFound       = "not_found"
	KindInvalidState   = "invalid_state"
	KindAlreadyRated   = "already_rated"
	KindInvalidScore   = "invalid_score"
	KindInvalidMessage = "invalid_message"
	KindInternal       = "internal_error"
)

// ErrorKind classifies err into the stable machine-readable taxonomy.
func ErrorKind(err error) string {
	var validationErrors validator.ValidationErrors
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErrors),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrUploadTooLarge),
		errors.Is(err, ErrUploadTypeNotAllowed):
		return KindValidation
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidCredentials):
		return KindAuth
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrConflict), errors.Is(err, ErrUserExists):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrAlreadyRated):
		return KindAlreadyRated
	case errors.Is(err, ErrInvalidScore):
		return KindInvalidScore
	case errors.Is(err, ErrInvalidMessage):
		return KindInvalidMessage
	default:
		return KindInternal
	}
}
