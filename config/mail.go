package config

import "time"

// MailConfig contains transactional email provider and outbox dispatch
// configuration.
type MailConfig struct {
	// BaseURL is the mail provider's API endpoint. Empty disables delivery;
	// queued mail stays in the outbox.
	BaseURL string `env:"BASE_URL"`

	// APIKey authenticates against the provider.
	APIKey string `env:"API_KEY"`

	// From is the sender address for all outgoing mail.
	From string `env:"FROM" envDefault:"no-reply@tasknest.example"`

	// Timeout bounds each provider API call.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`

	// RetryLimit is the number of immediate retries per API call.
	RetryLimit int `env:"RETRY_LIMIT" envDefault:"2"`

	// Dispatch controls the background outbox sweeper.
	Dispatch MailDispatchConfig `envPrefix:"DISPATCH_"`
}

// MailDispatchConfig controls the outbox dispatcher service.
type MailDispatchConfig struct {
	// Interval between outbox sweeps.
	Interval time.Duration `env:"INTERVAL" envDefault:"15s"`

	// BatchSize is the maximum number of messages claimed per sweep.
	BatchSize int `env:"BATCH_SIZE" envDefault:"25"`

	// Concurrency bounds parallel deliveries within a batch.
	Concurrency int `env:"CONCURRENCY" envDefault:"4"`

	// PruneMaxAge is how long sent messages are retained before deletion.
	PruneMaxAge time.Duration `env:"PRUNE_MAX_AGE" envDefault:"720h"` // 30 days

	// PruneInterval is how often the prune pass runs.
	PruneInterval time.Duration `env:"PRUNE_INTERVAL" envDefault:"1h"`

	// PruneBatchSize is the maximum number of rows deleted per prune pass.
	PruneBatchSize int `env:"PRUNE_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to mail configuration values.
func (m *MailConfig) Sanitize() {
	if m.Timeout <= 0 {
		m.Timeout = 10 * time.Second
	}
	if m.RetryLimit < 0 {
		m.RetryLimit = 0
	}
	m.Dispatch.Sanitize()
}

// Sanitize applies guardrails to dispatcher configuration values.
func (d *MailDispatchConfig) Sanitize() {
	if d.Interval < time.Second {
		d.Interval = time.Second
	}
	if d.BatchSize < 1 {
		d.BatchSize = 1
	}
	if d.Concurrency < 1 {
		d.Concurrency = 1
	}
	if d.PruneMaxAge < time.Hour {
		d.PruneMaxAge = time.Hour
	}
	if d.PruneInterval < time.Minute {
		d.PruneInterval = time.Minute
	}
	if d.PruneBatchSize < 1 {
		d.PruneBatchSize = 1
	}
	if d.PruneBatchSize > 10000 {
		d.PruneBatchSize = 10000
	}
}
