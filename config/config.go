package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Sessions, password hashing, invitations, SSO
//   - database.go: PostgreSQL and Redis configuration
//   - http.go: HTTP server configuration
//   - mail.go: Transactional email and outbox dispatch
//   - billing.go: Billing provider and webhook mapping
//   - services.go: Service mode configuration
type AppConfig struct {
	// IsDev controls development mode behavior (relaxed cookie flags etc.)
	IsDev bool `env:"DEV" envDefault:"false"`

	// Authentication configuration
	Auth AuthConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Transactional email configuration
	Mail MailConfig `envPrefix:"MAIL_"`

	// Billing provider configuration
	Billing BillingConfig `envPrefix:"BILLING_"`

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http,mail-dispatcher"`

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.HTTP.Sanitize()
	c.Mail.Sanitize()
	c.Billing.Sanitize()
	c.Observability.Sanitize()
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsMailDispatcherEnabled returns true if the mail dispatcher service is enabled.
func (c *AppConfig) IsMailDispatcherEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeMailDispatcher]
}
