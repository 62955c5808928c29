package service

import "github.com/noah-isme/notehub-api/internal/models"

// Actor is the authenticated caller as asserted by the identity token. Role is
// advisory: data-scoped checks always compare against persisted ownership.
type Actor struct {
	ID       uint
	Role     string
	Username string
}

// IsWriter reports whether the token claims the writer role.
func (a Actor) IsWriter() bool {
	return a.Role == models.RoleWriter
}

// IsStudent reports whether the token claims the student role.
func (a Actor) IsStudent() bool {
	return a.Role == models.RoleStudent
}
