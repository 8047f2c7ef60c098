package ports

// Package ports defines interfaces (hexagonal ports) for externally-backed
// behavior. Implementations live in internal/adapters; orchestration in
// internal/service.

import (
	"context"

	domainauth "github.com/tasknest/tasknest/internal/domain/auth"
)

// SessionStore persists and retrieves user sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.SessionData) error
	Get(ctx context.Context, id string) (domainauth.SessionData, error)
	Delete(ctx context.Context, id string) error
}

// BeginInput carries inputs for initiating an SSO auth flow.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for the SSO code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// AuthProvider initiates and completes an SSO authentication flow against an
// IdP. Only used when SSO sign-in mode is enabled; password sign-in needs no
// provider.
type AuthProvider interface {
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying state and nonce, and returns the authenticated identity.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.Identity, error)
}
