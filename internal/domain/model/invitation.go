package model

import (
	"net/mail"
	"time"

	"github.com/tasknest/tasknest/internal/domain/auth"
	apperrors "github.com/tasknest/tasknest/internal/errors"
)

// DefaultInvitationTTL is how long an invitation remains redeemable.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// Invitation is a pending offer of membership in an organization. TokenID
// ties the row to the signed acceptance token sent by email, so a token can
// be redeemed at most once.
type Invitation struct {
	ID             string     `json:"id"                    db:"id"`
	OrganizationID string     `json:"organization_id"       db:"organization_id"`
	Email          string     `json:"email"                 db:"email"`
	Role           auth.Role  `json:"role"                  db:"role"`
	TokenID        string     `json:"-"                     db:"token_id"`
	InvitedBy      string     `json:"invited_by"            db:"invited_by"`
	ExpiresAt      time.Time  `json:"expires_at"            db:"expires_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
	CreatedAt      time.Time  `json:"created_at"            db:"created_at"`
}

// Redeemable reports whether the invitation can still be accepted at the
// given instant.
func (i Invitation) Redeemable(now time.Time) bool {
	return i.AcceptedAt == nil && now.Before(i.ExpiresAt)
}

// InviteMemberRequest represents parameters to invite a user into an
// organization.
type InviteMemberRequest struct {
	Email string    `json:"email"`
	Role  auth.Role `json:"role"`
}

// Validate checks invitation input. Owner invitations are not allowed; an
// organization gains a new owner only through ownership transfer.
func (r *InviteMemberRequest) Validate() error {
	email := NormalizeEmail(r.Email)
	if email == "" {
		return apperrors.ValidationField("email", "Email is required.")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperrors.ValidationField("email", "Email is not a valid address.")
	}
	switch r.Role {
	case auth.RoleAdmin, auth.RoleMember:
		return nil
	case auth.RoleOwner:
		return apperrors.ValidationField("role", "Ownership is granted by transfer, not invitation.")
	default:
		return apperrors.ValidationField("role", "Role must be admin or member.")
	}
}
