// Package mocks provides hand-written test doubles for outbound ports.
// Doubles record calls and allow error injection so service tests can
// exercise failure paths without real providers.
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/tasknest/tasknest/internal/ports"
)

var (
	_ ports.BillingProvider = (*BillingProvider)(nil)
	_ ports.Mailer          = (*Mailer)(nil)
)

// BillingProvider is a recording double for ports.BillingProvider.
type BillingProvider struct {
	mu    sync.Mutex
	calls []ports.CheckoutInput

	// CreateCheckoutFunc overrides the default behavior when set.
	CreateCheckoutFunc func(ctx context.Context, in ports.CheckoutInput) (ports.CheckoutSession, error)
	// Err, when set, is returned from every call.
	Err error
}

func (b *BillingProvider) CreateCheckout(ctx context.Context, in ports.CheckoutInput) (ports.CheckoutSession, error) {
	b.mu.Lock()
	b.calls = append(b.calls, in)
	n := len(b.calls)
	b.mu.Unlock()

	if b.CreateCheckoutFunc != nil {
		return b.CreateCheckoutFunc(ctx, in)
	}
	if b.Err != nil {
		return ports.CheckoutSession{}, b.Err
	}
	return ports.CheckoutSession{
		ID:  fmt.Sprintf("cs_test_%d", n),
		URL: fmt.Sprintf("https://billing.example.com/checkout/cs_test_%d", n),
	}, nil
}

// Calls returns a copy of the recorded checkout inputs.
func (b *BillingProvider) Calls() []ports.CheckoutInput {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ports.CheckoutInput, len(b.calls))
	copy(out, b.calls)
	return out
}

// Mailer is a recording double for ports.Mailer.
type Mailer struct {
	mu   sync.Mutex
	sent []ports.MailMessage

	// SendFunc overrides the default behavior when set.
	SendFunc func(ctx context.Context, msg ports.MailMessage) error
	// Err, when set, is returned from every call.
	Err error
}

func (m *Mailer) Send(ctx context.Context, msg ports.MailMessage) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of successfully delivered messages.
func (m *Mailer) Sent() []ports.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.MailMessage, len(m.sent))
	copy(out, m.sent)
	return out
}
