package config

import (
	"fmt"
	"strings"
	"time"
)

// SSOMode controls whether single sign-on is offered alongside password
// authentication.
type SSOMode string

const (
	// SSOModeDisabled offers password authentication only.
	SSOModeDisabled SSOMode = "disabled"
	// SSOModeOIDC enables OIDC single sign-on in addition to passwords.
	SSOModeOIDC SSOMode = "oidc"
)

// UnmarshalText implements encoding.TextUnmarshaler for SSOMode.
func (s *SSOMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "disabled", "oidc":
		*s = SSOMode(v)
		return nil
	default:
		return fmt.Errorf("invalid SSOMode: %q (valid options: disabled, oidc)", v)
	}
}

// OIDCConfig contains OIDC provider configuration (used when SSO=oidc).
type OIDCConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/api/auth/sso/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// SessionTTL bounds how long a session stays valid.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// BcryptCost for password hashing. Zero means the bcrypt default.
	BcryptCost int `env:"BCRYPT_COST" envDefault:"0"`

	// InviteTokenSecret signs invitation tokens. Required.
	InviteTokenSecret string `env:"INVITE_TOKEN_SECRET,required"`

	// InviteTTL bounds how long invitations stay redeemable.
	InviteTTL time.Duration `env:"INVITE_TTL" envDefault:"168h"`

	// SSO selects the single sign-on mode.
	SSO SSOMode `env:"SSO_MODE" envDefault:"disabled"`

	// OIDC configuration (used when SSO=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`
}

// Sanitize applies guardrails to authentication configuration values.
func (a *AuthConfig) Sanitize() {
	if a.SessionTTL < time.Minute {
		a.SessionTTL = time.Minute
	}
	if a.InviteTTL < time.Hour {
		a.InviteTTL = time.Hour
	}
	if a.BcryptCost < 0 {
		a.BcryptCost = 0
	}
}
