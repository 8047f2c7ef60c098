package bootstrap

import (
	"fmt"

	"github.com/tasknest/tasknest/config"
	"github.com/tasknest/tasknest/internal/adapters/oidc"
	"github.com/tasknest/tasknest/internal/ports"
)

// buildAuthProvider returns the SSO provider for the configured mode. A nil
// provider means password authentication only.
//
//nolint:ireturn // ports.AuthProvider lets the auth service stay provider-agnostic.
func buildAuthProvider(cfg config.AuthConfig) (ports.AuthProvider, error) {
	switch cfg.SSO {
	case config.SSOModeOIDC:
		provider, err := oidc.NewProvider(oidc.ProviderConfig{
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			RedirectURL:  cfg.OIDC.RedirectURL,
			Scope:        cfg.OIDC.Scope,
			DiscoveryURL: cfg.OIDC.DiscoveryURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create oidc provider: %w", err)
		}
		return provider, nil
	case config.SSOModeDisabled:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported SSO mode: %q", cfg.SSO)
	}
}
