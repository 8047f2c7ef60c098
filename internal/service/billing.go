package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/tasknest/tasknest/internal/core"
	"github.com/tasknest/tasknest/internal/domain/model"
	apperrors "github.com/tasknest/tasknest/internal/errors"
	"github.com/tasknest/tasknest/internal/ports"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// WebhookMapping holds JMESPath expressions that pull the fields we care
// about out of the billing provider's webhook payload. The defaults match a
// generic provider shape; deployments override them per provider without a
// code change.
type WebhookMapping struct {
	EventType      string
	OrganizationID string
	Plan           string
	Status         string
	CustomerID     string
	SubscriptionID string
}

// DefaultWebhookMapping returns the generic payload mapping.
func DefaultWebhookMapping() WebhookMapping {
	return WebhookMapping{
		EventType:      "type",
		OrganizationID: "data.client_reference_id",
		Plan:           "data.plan",
		Status:         "data.status",
		CustomerID:     "data.customer_id",
		SubscriptionID: "data.subscription_id",
	}
}

// BillingServiceOptions groups dependencies for BillingService.
type BillingServiceOptions struct {
	Subscriptions core.SubscriptionRepository // Required: subscription repository
	Orgs          core.OrganizationRepository // Required: org existence checks
	Provider      ports.BillingProvider       // Required: checkout creation
	Logger        *slog.Logger                // Optional: structured logger

	// Mapping overrides the default webhook field extraction.
	Mapping *WebhookMapping
	// Evaluator overrides the JMESPath engine, mainly for tests.
	Evaluator JMESPathEvaluator
	// Plans overrides the built-in catalog.
	Plans map[string]model.Plan

	// SuccessURL and CancelURL are where the provider sends the user after
	// checkout.
	SuccessURL string
	CancelURL  string
}

// BillingService creates provider checkout sessions and ingests provider
// webhooks into subscription state. Provider API semantics stay opaque; the
// contract is checkout-session creation plus field-mapped webhooks.
type BillingService struct {
	subs     core.SubscriptionRepository
	orgs     core.OrganizationRepository
	provider ports.BillingProvider
	logger   *slog.Logger

	mapping    WebhookMapping
	jems       JMESPathEvaluator
	plans      map[string]model.Plan
	successURL string
	cancelURL  string
}

// NewBillingService constructs a new BillingService. Mapping expressions
// are validated up front so a bad deployment fails at startup, not on the
// first webhook.
func NewBillingService(opts BillingServiceOptions) (*BillingService, error) {
	if opts.Subscriptions == nil {
		return nil, errors.New("SubscriptionRepository is required")
	}
	if opts.Orgs == nil {
		return nil, errors.New("OrganizationRepository is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("BillingProvider is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}
	mapping := DefaultWebhookMapping()
	if opts.Mapping != nil {
		mapping = *opts.Mapping
	}
	for name, expr := range map[string]string{
		"event_type":      mapping.EventType,
		"organization_id": mapping.OrganizationID,
		"plan":            mapping.Plan,
		"status":          mapping.Status,
		"customer_id":     mapping.CustomerID,
		"subscription_id": mapping.SubscriptionID,
	} {
		if err := jems.Validate(expr); err != nil {
			return nil, fmt.Errorf("invalid webhook mapping for %s: %w", name, err)
		}
	}
	plans := opts.Plans
	if plans == nil {
		plans = model.DefaultPlans()
	}

	return &BillingService{
		subs:       opts.Subscriptions,
		orgs:       opts.Orgs,
		provider:   opts.Provider,
		logger:     logger.With("component", "billing_service"),
		mapping:    mapping,
		jems:       jems,
		plans:      plans,
		successURL: opts.SuccessURL,
		cancelURL:  opts.CancelURL,
	}, nil
}

// Plans returns the catalog ordered by price.
func (s *BillingService) Plans() []model.Plan {
	out := make([]model.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out
}

// CreateCheckout starts a hosted checkout session for upgrading the
// organization to the named paid plan.
func (s *BillingService) CreateCheckout(
	ctx context.Context,
	organizationID, customerEmail, planName string,
) (ports.CheckoutSession, error) {
	name, ok := model.ParsePlan(planName)
	if !ok {
		return ports.CheckoutSession{}, apperrors.ValidationField("plan", "Unknown plan.")
	}
	plan := s.plans[name]
	if plan.PriceCents == 0 {
		return ports.CheckoutSession{}, apperrors.ValidationField("plan", "The free plan needs no checkout.")
	}
	if _, err := s.orgs.GetByID(ctx, organizationID); err != nil {
		return ports.CheckoutSession{}, err
	}

	session, err := s.provider.CreateCheckout(ctx, ports.CheckoutInput{
		OrganizationID: organizationID,
		Plan:           plan.Name,
		PriceCents:     plan.PriceCents,
		CustomerEmail:  customerEmail,
		SuccessURL:     s.successURL,
		CancelURL:      s.cancelURL,
	})
	if err != nil {
		return ports.CheckoutSession{}, err
	}
	s.logger.InfoContext(ctx, "checkout session created",
		"organization_id", organizationID, "plan", plan.Name, "session_id", session.ID)
	return session, nil
}

// HandleWebhook ingests a provider webhook payload. Field extraction runs
// through the configured JMESPath mapping; events that do not resolve to an
// organization with plan or status information are acknowledged and
// ignored, so unrelated provider events never fail the endpoint.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte) error {
	var data any
	if err := json.Unmarshal(payload, &data); err != nil {
		return apperrors.Validation("Webhook payload is not valid JSON.")
	}

	eventType := s.extractString(data, s.mapping.EventType)
	organizationID := s.extractString(data, s.mapping.OrganizationID)
	if organizationID == "" {
		s.logger.InfoContext(ctx, "webhook ignored, no organization reference", "event_type", eventType)
		return nil
	}

	planName, planKnown := model.ParsePlan(s.extractString(data, s.mapping.Plan))
	status := normalizeSubscriptionStatus(s.extractString(data, s.mapping.Status))
	customerID := s.extractString(data, s.mapping.CustomerID)
	subscriptionID := s.extractString(data, s.mapping.SubscriptionID)

	switch {
	case planKnown:
		if status == "" {
			status = model.SubscriptionStatusActive
		}
		_, err := s.subs.Upsert(ctx, core.UpsertSubscriptionParams{
			OrganizationID:         organizationID,
			Plan:                   planName,
			Status:                 status,
			ProviderCustomerID:     optionalString(customerID),
			ProviderSubscriptionID: optionalString(subscriptionID),
		})
		if err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "subscription updated from webhook",
			"organization_id", organizationID, "plan", planName, "status", status, "event_type", eventType)
		return nil

	case status != "":
		_, err := s.subs.UpdateStatus(ctx, organizationID, status)
		if apperrors.IsNotFound(err) {
			s.logger.WarnContext(ctx, "webhook for unknown subscription ignored",
				"organization_id", organizationID, "event_type", eventType)
			return nil
		}
		if err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "subscription status updated from webhook",
			"organization_id", organizationID, "status", status, "event_type", eventType)
		return nil

	default:
		s.logger.InfoContext(ctx, "webhook ignored, no plan or status", "event_type", eventType)
		return nil
	}
}

func (s *BillingService) extractString(data any, expr string) string {
	if strings.TrimSpace(expr) == "" {
		return ""
	}
	v, err := s.jems.Evaluate(expr, data)
	if err != nil || v == nil {
		return ""
	}
	str, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(str)
}

// normalizeSubscriptionStatus maps provider status vocabulary onto ours.
// Unknown statuses map to empty, which leaves subscription state untouched.
func normalizeSubscriptionStatus(status string) string {
	switch strings.ToLower(status) {
	case "active", "trialing":
		return model.SubscriptionStatusActive
	case "past_due", "unpaid", "incomplete":
		return model.SubscriptionStatusPastDue
	case "canceled", "cancelled":
		return model.SubscriptionStatusCanceled
	default:
		return ""
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
