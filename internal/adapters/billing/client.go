// Package billing provides the HTTP client for the hosted-checkout billing
// provider.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tasknest/tasknest/internal/ports"
)

// Config captures the subset of the provider API we need.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Client  *http.Client
}

// Client creates checkout sessions against the billing provider's API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient builds a billing client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("billing base url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("billing api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		client:  hc,
	}, nil
}

type checkoutRequest struct {
	ClientReferenceID string `json:"client_reference_id"`
	Plan              string `json:"plan"`
	AmountCents       int    `json:"amount_cents"`
	CustomerEmail     string `json:"customer_email"`
	SuccessURL        string `json:"success_url"`
	CancelURL         string `json:"cancel_url"`
}

type checkoutResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckout opens a hosted checkout session for an organization's plan
// upgrade and returns the URL the user must be redirected to.
func (c *Client) CreateCheckout(ctx context.Context, in ports.CheckoutInput) (ports.CheckoutSession, error) {
	if in.OrganizationID == "" {
		return ports.CheckoutSession{}, errors.New("organization ID is required")
	}
	if in.Plan == "" {
		return ports.CheckoutSession{}, errors.New("plan is required")
	}

	body, err := json.Marshal(checkoutRequest{
		ClientReferenceID: in.OrganizationID,
		Plan:              in.Plan,
		AmountCents:       in.PriceCents,
		CustomerEmail:     in.CustomerEmail,
		SuccessURL:        in.SuccessURL,
		CancelURL:         in.CancelURL,
	})
	if err != nil {
		return ports.CheckoutSession{}, fmt.Errorf("encode checkout payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return ports.CheckoutSession{}, fmt.Errorf("create checkout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return ports.CheckoutSession{}, fmt.Errorf("checkout request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ports.CheckoutSession{}, fmt.Errorf(
			"checkout request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out checkoutResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&out); decodeErr != nil {
		return ports.CheckoutSession{}, fmt.Errorf("decode checkout response: %w", decodeErr)
	}
	if out.ID == "" || out.URL == "" {
		return ports.CheckoutSession{}, errors.New("checkout response missing id or url")
	}

	return ports.CheckoutSession{ID: out.ID, URL: out.URL}, nil
}
