package httpx

import (
	"log/slog"
	"net/http"

	"github.com/tasknest/tasknest/internal/observability/statsd"
	"github.com/tasknest/tasknest/internal/procedure"
	"github.com/tasknest/tasknest/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth    *service.AuthService
	Orgs    *service.OrgService
	Members *service.MemberService
	Todos   *service.TodoService
	Billing *service.BillingService
	Avatars *service.AvatarService

	Resolver    *procedure.Resolver
	Memberships procedure.MembershipReader

	CookieDomain  string
	SecureCookies bool
	WebhookSecret string
	Logger        *slog.Logger
	Metrics       statsd.Sink
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Svc:           services.Auth,
		Resolver:      services.Resolver,
		CookieDomain:  services.CookieDomain,
		SecureCookies: services.SecureCookies,
		Logger:        services.Logger,
	}
	orgHandlers := &OrgHandlers{
		Svc:         services.Orgs,
		Resolver:    services.Resolver,
		Memberships: services.Memberships,
	}
	memberHandlers := &MemberHandlers{
		Svc:         services.Members,
		Resolver:    services.Resolver,
		Memberships: services.Memberships,
	}
	todoHandlers := &TodoHandlers{
		Svc:         services.Todos,
		Resolver:    services.Resolver,
		Memberships: services.Memberships,
	}
	var billingHandlers *BillingHandlers
	if services.Billing != nil {
		billingHandlers = &BillingHandlers{
			Svc:           services.Billing,
			Resolver:      services.Resolver,
			Memberships:   services.Memberships,
			Logger:        services.Logger,
			WebhookSecret: services.WebhookSecret,
		}
	}
	avatarHandlers := &AvatarHandlers{
		Svc:      services.Avatars,
		Resolver: services.Resolver,
		Logger:   services.Logger,
	}

	registerAuthRoutes(mux, authHandlers)
	registerOrgRoutes(mux, orgHandlers)
	registerMemberRoutes(mux, memberHandlers)
	registerTodoRoutes(mux, todoHandlers)
	if billingHandlers != nil {
		registerBillingRoutes(mux, billingHandlers)
	}
	registerAvatarRoutes(mux, avatarHandlers)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	handler := http.Handler(mux)
	handler = SessionToken()(handler)
	handler = Logging(services.Logger, services.Metrics)(handler)
	handler = Recover(services.Logger)(handler)
	return handler
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("POST /api/auth/signup", h.Signup)
	mux.HandleFunc("POST /api/auth/signin", h.Signin)
	mux.HandleFunc("POST /api/auth/signout", h.Signout)
	mux.HandleFunc("GET /api/auth/me", h.Me)
	mux.HandleFunc("POST /api/auth/switch-org", h.SwitchOrg)
	mux.HandleFunc("GET /api/auth/sso/begin", h.BeginSSO)
	mux.HandleFunc("GET /api/auth/sso/callback", h.CompleteSSO)
}

func registerOrgRoutes(mux *http.ServeMux, h *OrgHandlers) {
	mux.HandleFunc("POST /api/orgs", h.Create)
	mux.HandleFunc("GET /api/orgs", h.ListMine)
	mux.HandleFunc("GET /api/orgs/all", h.ListAll)
	mux.HandleFunc("GET /api/org", h.Get)
	mux.HandleFunc("PUT /api/org", h.Update)
	mux.HandleFunc("DELETE /api/org", h.Delete)
}

func registerMemberRoutes(mux *http.ServeMux, h *MemberHandlers) {
	mux.HandleFunc("GET /api/org/members", h.List)
	mux.HandleFunc("POST /api/org/members/invite", h.Invite)
	mux.HandleFunc("GET /api/org/invitations", h.ListInvitations)
	mux.HandleFunc("DELETE /api/org/invitations/{id}", h.RevokeInvitation)
	mux.HandleFunc("POST /api/invitations/accept", h.AcceptInvitation)
	mux.HandleFunc("PATCH /api/org/members/{userID}", h.ChangeRole)
	mux.HandleFunc("POST /api/org/transfer-ownership", h.TransferOwnership)
	mux.HandleFunc("DELETE /api/org/members/{userID}", h.Remove)
	mux.HandleFunc("POST /api/org/leave", h.Leave)
}

func registerTodoRoutes(mux *http.ServeMux, h *TodoHandlers) {
	mux.HandleFunc("POST /api/todos", h.Create)
	mux.HandleFunc("GET /api/todos", h.List)
	mux.HandleFunc("GET /api/todos/export", h.Export)
	mux.HandleFunc("GET /api/todos/{id}", h.Get)
	mux.HandleFunc("PUT /api/todos/{id}", h.Update)
	mux.HandleFunc("POST /api/todos/{id}/complete", h.Complete)
	mux.HandleFunc("POST /api/todos/{id}/reopen", h.Reopen)
	mux.HandleFunc("DELETE /api/todos/{id}", h.Delete)
}

func registerBillingRoutes(mux *http.ServeMux, h *BillingHandlers) {
	mux.HandleFunc("GET /api/billing/plans", h.Plans)
	mux.HandleFunc("POST /api/billing/checkout", h.CreateCheckout)
	mux.HandleFunc("POST /api/webhooks/billing", h.Webhook)
}

func registerAvatarRoutes(mux *http.ServeMux, h *AvatarHandlers) {
	mux.HandleFunc("PUT /api/me/avatar", h.Upload)
	mux.HandleFunc("GET /api/users/{id}/avatar", h.Get)
}
