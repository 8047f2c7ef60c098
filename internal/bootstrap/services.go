package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tasknest/tasknest/config"
	billingclient "github.com/tasknest/tasknest/internal/adapters/billing"
	mailerclient "github.com/tasknest/tasknest/internal/adapters/mailer"
	redisstore "github.com/tasknest/tasknest/internal/adapters/redis"
	"github.com/tasknest/tasknest/internal/data"
	"github.com/tasknest/tasknest/internal/observability/statsd"
	"github.com/tasknest/tasknest/internal/ports"
	"github.com/tasknest/tasknest/internal/procedure"
	"github.com/tasknest/tasknest/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth    *service.AuthService
	Orgs    *service.OrgService
	Members *service.MemberService
	Todos   *service.TodoService
	Billing *service.BillingService // nil when the provider is not configured
	Avatars *service.AvatarService
	Outbox  *service.OutboxService

	Resolver    *procedure.Resolver
	Memberships procedure.MembershipReader
	Mailer      ports.Mailer // nil when the provider is not configured

	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	Users         *data.UserRepo
	Orgs          *data.OrgRepo
	Memberships   *data.MembershipRepo
	Invitations   *data.InvitationRepo
	Subscriptions *data.SubscriptionRepo
	Todos         *data.TodoRepo
	Outbox        *data.OutboxRepo
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB) *serviceRepositories {
	return &serviceRepositories{
		Users:         data.NewUserRepo(db),
		Orgs:          data.NewOrgRepo(db),
		Memberships:   data.NewMembershipRepo(db),
		Invitations:   data.NewInvitationRepo(db),
		Subscriptions: data.NewSubscriptionRepo(db),
		Todos:         data.NewTodoRepo(db),
		Outbox:        data.NewOutboxRepo(db),
	}
}

// buildObservability configures the metrics sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var sink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "tasknest",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			sink = client
		}
	}

	return ObservabilityContainer{MetricsSink: sink, MetricsConfig: cfg.Metrics}
}

// BuildServices wires repositories, adapters, and services.
func BuildServices(deps ServiceDeps) (*ServiceContainer, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := deps.Config
	repos := buildRepositories(deps.DB)
	sessions := redisstore.NewSessionStore(deps.RedisClient)

	outboxSvc, err := service.NewOutboxService(service.OutboxServiceOptions{
		Repo:   repos.Outbox,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create outbox service: %w", err)
	}

	authProvider, err := buildAuthProvider(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("create auth provider: %w", err)
	}

	authSvc, err := service.NewAuthService(service.AuthServiceOptions{
		Users:       repos.Users,
		Memberships: repos.Memberships,
		Sessions:    sessions,
		Outbox:      outboxSvc,
		Provider:    authProvider,
		Logger:      logger,
		SessionTTL:  cfg.Auth.SessionTTL,
		BcryptCost:  cfg.Auth.BcryptCost,
	})
	if err != nil {
		return nil, fmt.Errorf("create auth service: %w", err)
	}

	orgSvc, err := service.NewOrgService(service.OrgServiceOptions{
		Orgs:        repos.Orgs,
		Memberships: repos.Memberships,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create org service: %w", err)
	}

	memberSvc, err := service.NewMemberService(service.MemberServiceOptions{
		Memberships:   repos.Memberships,
		Invitations:   repos.Invitations,
		Users:         repos.Users,
		Orgs:          repos.Orgs,
		Outbox:        outboxSvc,
		Logger:        logger,
		TokenSecret:   []byte(cfg.Auth.InviteTokenSecret),
		InviteTTL:     cfg.Auth.InviteTTL,
		AcceptBaseURL: cfg.HTTP.BaseURL + "/invitations/accept",
	})
	if err != nil {
		return nil, fmt.Errorf("create member service: %w", err)
	}

	todoSvc, err := service.NewTodoService(service.TodoServiceOptions{
		Todos:         repos.Todos,
		Subscriptions: repos.Subscriptions,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create todo service: %w", err)
	}

	avatarSvc, err := service.NewAvatarService(service.AvatarServiceOptions{
		Users:  repos.Users,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create avatar service: %w", err)
	}

	billingSvc, err := buildBillingService(cfg, repos, logger)
	if err != nil {
		return nil, err
	}

	mailClient, err := buildMailer(cfg.Mail, logger)
	if err != nil {
		return nil, err
	}

	return &ServiceContainer{
		Auth:          authSvc,
		Orgs:          orgSvc,
		Members:       memberSvc,
		Todos:         todoSvc,
		Billing:       billingSvc,
		Avatars:       avatarSvc,
		Outbox:        outboxSvc,
		Resolver:      procedure.NewResolver(sessions),
		Memberships:   repos.Memberships,
		Mailer:        mailClient,
		Observability: buildObservability(logger, cfg.Observability),
	}, nil
}

// buildBillingService constructs the billing service when the provider is
// configured; otherwise billing endpoints are not served and every
// organization stays on the free plan.
func buildBillingService(
	cfg *config.AppConfig,
	repos *serviceRepositories,
	logger *slog.Logger,
) (*service.BillingService, error) {
	if !cfg.Billing.Enabled() {
		logger.Info("billing provider not configured; checkout disabled")
		return nil, nil
	}

	provider, err := billingclient.NewClient(billingclient.Config{
		BaseURL: cfg.Billing.BaseURL,
		APIKey:  cfg.Billing.APIKey,
		Timeout: cfg.Billing.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create billing client: %w", err)
	}

	successURL := cfg.Billing.SuccessURL
	if successURL == "" {
		successURL = cfg.HTTP.BaseURL + "/billing/success"
	}
	cancelURL := cfg.Billing.CancelURL
	if cancelURL == "" {
		cancelURL = cfg.HTTP.BaseURL + "/billing/cancel"
	}

	svc, err := service.NewBillingService(service.BillingServiceOptions{
		Subscriptions: repos.Subscriptions,
		Orgs:          repos.Orgs,
		Provider:      provider,
		Logger:        logger,
		Mapping:       webhookMapping(cfg.Billing.Mapping),
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create billing service: %w", err)
	}
	return svc, nil
}

// webhookMapping merges configured expression overrides over the defaults.
func webhookMapping(overrides config.BillingMappingConfig) *service.WebhookMapping {
	mapping := service.DefaultWebhookMapping()
	if overrides.IsZero() {
		return &mapping
	}
	if overrides.EventType != "" {
		mapping.EventType = overrides.EventType
	}
	if overrides.OrganizationID != "" {
		mapping.OrganizationID = overrides.OrganizationID
	}
	if overrides.Plan != "" {
		mapping.Plan = overrides.Plan
	}
	if overrides.Status != "" {
		mapping.Status = overrides.Status
	}
	if overrides.CustomerID != "" {
		mapping.CustomerID = overrides.CustomerID
	}
	if overrides.SubscriptionID != "" {
		mapping.SubscriptionID = overrides.SubscriptionID
	}
	return &mapping
}

// buildMailer constructs the mail provider client when configured. Without
// it the dispatcher cannot run, but enqueueing still works: mail simply
// accumulates in the outbox.
//
//nolint:ireturn // ports.Mailer keeps the dispatcher decoupled from the provider client.
func buildMailer(cfg config.MailConfig, logger *slog.Logger) (ports.Mailer, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		logger.Info("mail provider not configured; outbox delivery disabled")
		return nil, nil
	}

	client, err := mailerclient.NewClient(mailerclient.Config{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		From:       cfg.From,
		Timeout:    cfg.Timeout,
		RetryLimit: cfg.RetryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("create mail client: %w", err)
	}
	return client, nil
}
