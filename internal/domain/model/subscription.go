package model

import (
	"strings"
	"time"
)

// Plan names. Every organization has a subscription row; new organizations
// start on the free plan.
const (
	PlanFree      = "free"
	PlanPro       = "pro"
	PlanUnlimited = "unlimited"
)

// Plan describes a subscription tier and its usage limits.
type Plan struct {
	Name string `json:"name"`
	// TodoLimit is the maximum number of todos an organization may hold.
	// Negative means unlimited.
	TodoLimit int `json:"todo_limit"`
	// PriceCents is the monthly price presented at checkout.
	PriceCents int `json:"price_cents"`
}

// Unlimited reports whether the plan imposes no todo limit.
func (p Plan) Unlimited() bool { return p.TodoLimit < 0 }

// DefaultPlans returns the built-in plan catalog keyed by name.
func DefaultPlans() map[string]Plan {
	return map[string]Plan{
		PlanFree:      {Name: PlanFree, TodoLimit: 25, PriceCents: 0},
		PlanPro:       {Name: PlanPro, TodoLimit: 500, PriceCents: 900},
		PlanUnlimited: {Name: PlanUnlimited, TodoLimit: -1, PriceCents: 2900},
	}
}

// ParsePlan normalizes a plan name and reports whether it is known.
func ParsePlan(value string) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(value))
	_, ok := DefaultPlans()[name]
	return name, ok
}

// Subscription statuses as normalized from billing provider webhooks.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// Subscription records an organization's current plan and the billing
// provider's identifiers for it. One row per organization.
type Subscription struct {
	OrganizationID         string     `json:"organization_id"                    db:"organization_id"`
	Plan                   string     `json:"plan"                               db:"plan"`
	Status                 string     `json:"status"                             db:"status"`
	ProviderCustomerID     *string    `json:"provider_customer_id,omitempty"     db:"provider_customer_id"`
	ProviderSubscriptionID *string    `json:"provider_subscription_id,omitempty" db:"provider_subscription_id"`
	UpdatedAt              *time.Time `json:"updated_at,omitempty"               db:"updated_at"`
}

// Active reports whether the subscription currently grants its plan's
// limits. Canceled and past-due subscriptions fall back to the free plan.
func (s Subscription) Active() bool {
	return s.Status == SubscriptionStatusActive
}
