package ports

import "context"

// CheckoutInput carries parameters for creating a provider checkout session.
type CheckoutInput struct {
	OrganizationID string
	Plan           string
	PriceCents     int
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
}

// CheckoutSession is the provider's hosted-checkout handle.
type CheckoutSession struct {
	ID  string
	URL string
}

// BillingProvider is the opaque contract with the payment provider. The
// provider's API semantics are out of scope; we only create checkout
// sessions and consume its webhooks.
type BillingProvider interface {
	CreateCheckout(ctx context.Context, in CheckoutInput) (CheckoutSession, error)
}
