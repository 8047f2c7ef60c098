package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tasknest/tasknest/internal/domain/auth"
	"github.com/tasknest/tasknest/internal/domain/model"
	"github.com/tasknest/tasknest/internal/ports"
	"github.com/tasknest/tasknest/internal/procedure"
	"github.com/tasknest/tasknest/internal/service"
)

const (
	ssoStateCookie = "sso_state"
	ssoNonceCookie = "sso_nonce"
	ssoCookieTTL   = 10 * time.Minute
)

var errInvalidSSOState = errors.New("sso state did not match the login flow")

// AuthHandlers serves signup, session, and SSO endpoints.
type AuthHandlers struct {
	Svc           *service.AuthService
	Resolver      *procedure.Resolver
	CookieDomain  string
	SecureCookies bool
	Logger        *slog.Logger
}

// sessionResponse is the client-facing session shape. The opaque session ID
// travels only in the cookie.
type sessionResponse struct {
	User         auth.UserSnapshot `json:"user"`
	CurrentOrgID string            `json:"current_org_id,omitempty"`
	ExpiresAt    time.Time         `json:"expires_at"`
}

func newSessionResponse(sess auth.SessionData) sessionResponse {
	return sessionResponse{
		User:         sess.User,
		CurrentOrgID: sess.CurrentOrgID,
		ExpiresAt:    sess.ExpiresAt,
	}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	user, err := h.Svc.Signup(r.Context(), &req)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, user)
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signin handles POST /api/auth/signin.
func (h *AuthHandlers) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	sess, err := h.Svc.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	h.setSessionCookie(w, sess)
	WriteJSON(w, http.StatusOK, newSessionResponse(sess))
}

// Signout handles POST /api/auth/signout. Always succeeds; a missing or
// stale cookie has nothing to revoke.
func (h *AuthHandlers) Signout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if delErr := h.Svc.Signout(r.Context(), cookie.Value); delErr != nil && h.Logger != nil {
			h.Logger.Warn("failed to delete session", "error", delErr)
		}
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	proc := procedure.New().
		Use(procedure.Auth(h.Resolver)).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			return h.Svc.Me(ctx, pc.Session.UserID)
		})
	serveProc(w, r, proc, http.StatusOK)
}

type switchOrgRequest struct {
	OrganizationID string `json:"organization_id"`
}

// SwitchOrg handles POST /api/auth/switch-org. The selection is persisted in
// the session and picked up by the org-context middleware on later requests.
func (h *AuthHandlers) SwitchOrg(w http.ResponseWriter, r *http.Request) {
	var req switchOrgRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	proc := procedure.New().
		Use(procedure.Auth(h.Resolver)).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			sess, err := h.Svc.SwitchOrganization(ctx, *pc.Session, req.OrganizationID)
			if err != nil {
				return nil, err
			}
			h.setSessionCookie(w, sess)
			return newSessionResponse(sess), nil
		})
	serveProc(w, r, proc, http.StatusOK)
}

// BeginSSO handles GET /api/auth/sso/begin. State and nonce round-trip
// through short-lived cookies to the callback.
func (h *AuthHandlers) BeginSSO(w http.ResponseWriter, r *http.Request) {
	authURL, state, nonce, err := h.Svc.BeginSSO(r.Context(), r.URL.Query().Get("redirect_url"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	h.setFlowCookie(w, ssoStateCookie, state)
	h.setFlowCookie(w, ssoNonceCookie, nonce)
	WriteJSON(w, http.StatusOK, map[string]string{"auth_url": authURL})
}

// CompleteSSO handles GET /api/auth/sso/callback.
func (h *AuthHandlers) CompleteSSO(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(ssoStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "invalid_state",
			Err:     errInvalidSSOState,
		})
		return
	}
	var nonce string
	if nonceCookie, cookieErr := r.Cookie(ssoNonceCookie); cookieErr == nil {
		nonce = nonceCookie.Value
	}

	sess, err := h.Svc.CompleteSSO(r.Context(), ports.ExchangeInput{
		Code:  r.URL.Query().Get("code"),
		State: stateCookie.Value,
		Nonce: nonce,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	h.clearFlowCookie(w, ssoStateCookie)
	h.clearFlowCookie(w, ssoNonceCookie)
	h.setSessionCookie(w, sess)
	WriteJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, sess auth.SessionData) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		Domain:   h.CookieDomain,
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandlers) setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   int(ssoCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandlers) clearFlowCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
