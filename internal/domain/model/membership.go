package model

import (
	"time"

	"github.com/tasknest/tasknest/internal/domain/auth"
)

// Membership joins a user to an organization with a role. At most one
// membership exists per (user, organization) pair.
//
// Organization is populated when the membership is loaded with its parent
// record (the org-context middleware does this); it is nil otherwise.
type Membership struct {
	ID             string        `json:"id"              db:"id"`
	UserID         string        `json:"user_id"         db:"user_id"`
	OrganizationID string        `json:"organization_id" db:"organization_id"`
	Role           auth.Role     `json:"role"            db:"role"`
	CreatedAt      time.Time     `json:"created_at"      db:"created_at"`
	Organization   *Organization `json:"organization,omitempty" db:"-"`
}

// MemberView is the list-friendly projection of a membership joined with
// its user's email.
type MemberView struct {
	ID        string    `json:"id"         db:"id"`
	UserID    string    `json:"user_id"    db:"user_id"`
	Email     string    `json:"email"      db:"email"`
	Role      auth.Role `json:"role"       db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
