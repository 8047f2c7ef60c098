package auth

// Package auth contains domain-level types for authentication, sessions,
// and tenant role authorization. It is pure and free of framework/adapter
// concerns.

import "time"

// Role represents a user's privilege level within an organization.
// Keep string form for easy persistence and cookies.
// Valid values are defined as constants below.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// roleRank maps each role to its position in the hierarchy.
// Lower rank means higher privilege: owner(0) > admin(1) > member(2).
var roleRank = map[Role]int{
	RoleOwner:  0,
	RoleAdmin:  1,
	RoleMember: 2,
}

// Valid reports whether the role is one of the supported values.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// HasMinimumRole reports whether actual satisfies the required minimum role.
// Unknown roles never satisfy anything.
func HasMinimumRole(actual, required Role) bool {
	actualRank, ok := roleRank[actual]
	if !ok {
		return false
	}
	requiredRank, ok := roleRank[required]
	if !ok {
		return false
	}
	return actualRank <= requiredRank
}

// Grant tags how an authorization decision was reached, so callers can log
// admin bypasses separately from ordinary role grants.
type Grant string

const (
	// GrantNone means the caller is not authorized.
	GrantNone Grant = ""
	// GrantRole means the caller's tenant role satisfied the requirement.
	GrantRole Grant = "role"
	// GrantAdminBypass means a global admin was allowed through without a
	// qualifying tenant role.
	GrantAdminBypass Grant = "admin_bypass"
)

// Authorized reports whether the grant permits the operation.
func (g Grant) Authorized() bool { return g != GrantNone }

// Authorize decides whether a caller holding the given tenant role (empty
// when acting without a membership) meets the required minimum. Global
// admins pass regardless of role; the returned grant records which path
// allowed them through.
func Authorize(held Role, isAdmin bool, required Role) Grant {
	if held != "" && HasMinimumRole(held, required) {
		return GrantRole
	}
	if isAdmin {
		return GrantAdminBypass
	}
	return GrantNone
}

// UserSnapshot is the denormalized view of the owning user carried inside a
// session. IsAdmin is the global support-access flag, independent of any
// tenant role.
type UserSnapshot struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// SessionData is the server-side record we persist for an authenticated
// user. ID is an opaque session identifier (e.g., random URL-safe string).
//
// CurrentOrgID is the active tenant selection; empty means no organization
// is selected, which is a valid state for global admins. A non-empty value
// does not by itself prove membership: the membership row can disappear
// between session creation and a later request, so it must be re-verified
// at the moment of use.
type SessionData struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	CurrentOrgID string       `json:"current_org_id,omitempty"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         UserSnapshot `json:"user"`
}

// Expired reports whether the session is past its expiry at the given instant.
func (s SessionData) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Identity represents the authenticated principal returned by an IdP when
// SSO sign-in is enabled. Adapters map provider-specific claims into this
// shape.
type Identity struct {
	Subject   string // stable provider-side identifier (sub)
	Email     string
	Name      string
	ExpiresAt time.Time // absolute expiry from IdP token
}
