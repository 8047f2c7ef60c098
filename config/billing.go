package config

import (
	"strings"
	"time"
)

// BillingConfig contains billing provider and webhook configuration.
type BillingConfig struct {
	// BaseURL is the provider's API endpoint. Empty disables checkout;
	// organizations stay on the free plan.
	BaseURL string `env:"BASE_URL"`

	// APIKey authenticates against the provider.
	APIKey string `env:"API_KEY"`

	// WebhookSecret authenticates inbound provider webhooks.
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	// SuccessURL and CancelURL are where the provider sends the user after
	// checkout. Empty values fall back to the app base URL.
	SuccessURL string `env:"SUCCESS_URL"`
	CancelURL  string `env:"CANCEL_URL"`

	// Timeout bounds each provider API call.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`

	// Webhook mapping expression overrides (JMESPath). Empty values use
	// the built-in defaults.
	Mapping BillingMappingConfig `envPrefix:"WEBHOOK_MAP_"`
}

// BillingMappingConfig overrides how webhook payload fields are extracted.
// Providers differ in payload shape; these expressions adapt without code
// changes.
type BillingMappingConfig struct {
	EventType      string `env:"EVENT_TYPE"`
	OrganizationID string `env:"ORGANIZATION_ID"`
	Plan           string `env:"PLAN"`
	Status         string `env:"STATUS"`
	CustomerID     string `env:"CUSTOMER_ID"`
	SubscriptionID string `env:"SUBSCRIPTION_ID"`
}

// IsZero reports whether no override expressions were configured.
func (m BillingMappingConfig) IsZero() bool {
	return m.EventType == "" && m.OrganizationID == "" && m.Plan == "" &&
		m.Status == "" && m.CustomerID == "" && m.SubscriptionID == ""
}

// Sanitize applies guardrails to billing configuration values.
func (b *BillingConfig) Sanitize() {
	b.BaseURL = strings.TrimSpace(b.BaseURL)
	b.WebhookSecret = strings.TrimSpace(b.WebhookSecret)
	if b.Timeout <= 0 {
		b.Timeout = 10 * time.Second
	}
}

// Enabled reports whether checkout is configured.
func (b *BillingConfig) Enabled() bool {
	return b.BaseURL != "" && b.APIKey != ""
}
