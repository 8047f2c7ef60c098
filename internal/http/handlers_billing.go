package httpx

import (
	"context"
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"

	"github.com/tasknest/tasknest/internal/domain/auth"
	apperrors "github.com/tasknest/tasknest/internal/errors"
	"github.com/tasknest/tasknest/internal/procedure"
	"github.com/tasknest/tasknest/internal/service"
)

// webhookBodyLimit caps provider webhook payloads.
const webhookBodyLimit = 1 << 20

// BillingHandlers serves plan, checkout, and webhook endpoints.
type BillingHandlers struct {
	Svc         *service.BillingService
	Resolver    *procedure.Resolver
	Memberships procedure.MembershipReader
	Logger      *slog.Logger

	// WebhookSecret guards the provider webhook endpoint. The provider
	// sends it back verbatim in the X-Webhook-Secret header.
	WebhookSecret string
}

// Plans handles GET /api/billing/plans. Public catalog, no session needed.
func (h *BillingHandlers) Plans(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Svc.Plans())
}

type checkoutRequest struct {
	Plan string `json:"plan"`
}

// CreateCheckout handles POST /api/billing/checkout. Owner only: plan
// changes are a tenant-wide commitment.
func (h *BillingHandlers) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	proc := procedure.New().
		Use(procedure.Auth(h.Resolver)).
		Use(procedure.OrgContext(h.Memberships)).
		Use(procedure.RequireRole(auth.RoleOwner)).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			return h.Svc.CreateCheckout(ctx, pc.OrganizationID, pc.Session.User.Email, req.Plan)
		})
	serveProc(w, r, proc, http.StatusCreated)
}

// Webhook handles POST /api/webhooks/billing. Authenticated by shared
// secret, not by session; billing providers do not hold cookies.
func (h *BillingHandlers) Webhook(w http.ResponseWriter, r *http.Request) {
	presented := r.Header.Get("X-Webhook-Secret")
	if h.WebhookSecret == "" ||
		subtle.ConstantTimeCompare([]byte(presented), []byte(h.WebhookSecret)) != 1 {
		WriteAppError(w, apperrors.Unauthorized("Invalid webhook credentials"))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		WriteAppError(w, apperrors.Validation("Failed to read webhook payload."))
		return
	}

	if err := h.Svc.HandleWebhook(r.Context(), payload); err != nil {
		if h.Logger != nil {
			h.Logger.Error("webhook processing failed", "error", err)
		}
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
