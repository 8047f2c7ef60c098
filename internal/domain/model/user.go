//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/tasknest/tasknest/internal/errors"
)

const (
	maxEmailLen    = 254
	minPasswordLen = 8
	maxPasswordLen = 512
)

// User is an account holder. IsAdmin is the global support-access flag; it
// is unrelated to any organization role.
type User struct {
	ID                string     `json:"id"                            db:"id"`
	Email             string     `json:"email"                         db:"email"`
	PasswordHash      string     `json:"-"                             db:"password_hash"`
	IsAdmin           bool       `json:"is_admin"                      db:"is_admin"`
	AvatarContentType *string    `json:"avatar_content_type,omitempty" db:"avatar_content_type"`
	CreatedAt         time.Time  `json:"created_at"                    db:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"          db:"updated_at"`
}

// SignupRequest represents parameters to create a user account.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks signup input. Email-domain checks beyond syntax live in
// the auth service.
func (r *SignupRequest) Validate() error {
	email := NormalizeEmail(r.Email)
	if email == "" {
		return apperrors.ValidationField("email", "Email is required.")
	}
	if utf8.RuneCountInString(email) > maxEmailLen {
		return apperrors.ValidationField("email", "Email is too long.")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperrors.ValidationField("email", "Email is not a valid address.")
	}
	if len(r.Password) < minPasswordLen {
		return apperrors.ValidationField("password", "Password must be at least 8 characters.")
	}
	if len(r.Password) > maxPasswordLen {
		return apperrors.ValidationField("password", "Password is too long.")
	}
	return nil
}

// NormalizeEmail lowercases and trims an email address for storage and
// comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
