package common

import (
	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the role exempt from the ingestion access window.
const RoleAdmin = "admin"

// Claims represents the custom claims included in the JWT access token.
type Claims struct {
	UserID               string `json:"id"`    // User ID.
	Email                string `json:"email"` // User email.
	Role                 string `json:"role"`  // Role code, e.g. 'admin'.
	jwt.RegisteredClaims        // Embed standard claims (ExpiresAt, IssuedAt, Subject, etc.).
}

// IsAdmin reports whether the token carries the admin role.
func (c *Claims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// Response represents a generic API response for error messages.
type Response struct {
	OK      bool   `json:"ok"`                                         // Indicates if the operation was successful.
	Message string `json:"message,omitempty" example:"Upload stored"` // Optional success message.
	Error   string `json:"error,omitempty" example:"unknown table"`   // Optional error message.
}
