package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tasknest/tasknest/internal/core"
	"github.com/tasknest/tasknest/internal/domain/auth"
	"github.com/tasknest/tasknest/internal/domain/model"
	"github.com/tasknest/tasknest/internal/mocks"
	mockauth "github.com/tasknest/tasknest/internal/mocks/auth"
	"github.com/tasknest/tasknest/internal/procedure"
	"github.com/tasknest/tasknest/internal/service"
)

const testWebhookSecret = "whsec-test"

type testEnv struct {
	t        *testing.T
	store    *memStore
	sessions *mockauth.MemorySessionStore
	provider *mocks.BillingProvider
	router   http.Handler
}

type testEnvOptions struct {
	billing bool
	plans   map[string]model.Plan
}

func newTestEnv(t *testing.T, opts testEnvOptions) *testEnv {
	t.Helper()

	store := newMemStore()
	sessions := mockauth.NewMemorySessionStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	authSvc, err := service.NewAuthService(service.AuthServiceOptions{
		Users:       store.users,
		Memberships: store.memberships,
		Sessions:    sessions,
		Logger:      logger,
		BcryptCost:  bcrypt.MinCost,
	})
	require.NoError(t, err)

	orgSvc, err := service.NewOrgService(service.OrgServiceOptions{
		Orgs:        store.orgs,
		Memberships: store.memberships,
		Logger:      logger,
	})
	require.NoError(t, err)

	memberSvc, err := service.NewMemberService(service.MemberServiceOptions{
		Memberships: store.memberships,
		Invitations: store.invitations,
		Users:       store.users,
		Orgs:        store.orgs,
		Logger:      logger,
		TokenSecret: []byte("router-test-secret"),
	})
	require.NoError(t, err)

	todoSvc, err := service.NewTodoService(service.TodoServiceOptions{
		Todos:         store.todos,
		Subscriptions: store.subscriptions,
		Logger:        logger,
		Plans:         opts.plans,
	})
	require.NoError(t, err)

	avatarSvc, err := service.NewAvatarService(service.AvatarServiceOptions{
		Users:  store.users,
		Logger: logger,
	})
	require.NoError(t, err)

	env := &testEnv{t: t, store: store, sessions: sessions}

	var billingSvc *service.BillingService
	if opts.billing {
		env.provider = &mocks.BillingProvider{}
		billingSvc, err = service.NewBillingService(service.BillingServiceOptions{
			Subscriptions: store.subscriptions,
			Orgs:          store.orgs,
			Provider:      env.provider,
			Logger:        logger,
			SuccessURL:    "http://app.test/billing/success",
			CancelURL:     "http://app.test/billing/cancel",
		})
		require.NoError(t, err)
	}

	env.router = NewRouter(RouterServices{
		Auth:    authSvc,
		Orgs:    orgSvc,
		Members: memberSvc,
		Todos:   todoSvc,
		Billing: billingSvc,
		Avatars: avatarSvc,

		Resolver:    procedure.NewResolver(sessions),
		Memberships: store.memberships,

		WebhookSecret: testWebhookSecret,
		Logger:        logger,
	})
	return env
}

func (e *testEnv) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func memberParams(userID, orgID string, role auth.Role) core.CreateMembershipParams {
	return core.CreateMembershipParams{UserID: userID, OrganizationID: orgID, Role: role}
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

// signupAndSignin registers an account and returns its session cookie.
func (e *testEnv) signupAndSignin(email, password string) *http.Cookie {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/auth/signup", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(e.t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = e.do(http.MethodPost, "/api/auth/signin", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(e.t, http.StatusOK, rr.Code, rr.Body.String())
	return sessionCookie(e.t, rr)
}

// createOrg creates an organization and selects it in the session,
// returning the org ID and the refreshed session cookie.
func (e *testEnv) createOrg(cookie *http.Cookie, name, slug string) (string, *http.Cookie) {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/orgs", map[string]string{
		"name": name, "slug": slug,
	}, cookie)
	require.Equal(e.t, http.StatusCreated, rr.Code, rr.Body.String())
	org := decodeBody[model.Organization](e.t, rr)

	rr = e.do(http.MethodPost, "/api/auth/switch-org", map[string]string{
		"organization_id": org.ID,
	}, cookie)
	require.Equal(e.t, http.StatusOK, rr.Code, rr.Body.String())
	return org.ID, cookie
}

func TestSignupSigninSignout(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{})

	rr := env.do(http.MethodPost, "/api/auth/signup", map[string]string{
		"email": "owner@example.com", "password": "s3cret-password",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	user := decodeBody[model.User](t, rr)
	assert.Equal(t, "owner@example.com", user.Email)

	// Same address again conflicts.
	rr = env.do(http.MethodPost, "/api/auth/signup", map[string]string{
		"email": "owner@example.com", "password": "s3cret-password",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)

	// Wrong password is unauthorized, not a user-enumeration hint.
	rr = env.do(http.MethodPost, "/api/auth/signin", map[string]string{
		"email": "owner@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(http.MethodPost, "/api/auth/signin", map[string]string{
		"email": "owner@example.com", "password": "s3cret-password",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	cookie := sessionCookie(t, rr)
	assert.True(t, cookie.HttpOnly)

	rr = env.do(http.MethodGet, "/api/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decodeBody[model.User](t, rr)
	assert.Equal(t, user.ID, me.ID)

	// No cookie, no session.
	rr = env.do(http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(http.MethodPost, "/api/auth/signout", nil, cookie)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(http.MethodGet, "/api/auth/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTodoLifecycle(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{})
	cookie := env.signupAndSignin("owner@example.com", "s3cret-password")

	// Without a selected organization the todo routes refuse.
	rr := env.do(http.MethodPost, "/api/todos", map[string]string{"title": "first"}, cookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	_, cookie = env.createOrg(cookie, "Acme", "acme")

	rr = env.do(http.MethodPost, "/api/todos", map[string]string{
		"title": "write launch checklist", "body": "before friday",
	}, cookie)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	todo := decodeBody[model.Todo](t, rr)
	assert.False(t, todo.Done)

	rr = env.do(http.MethodGet, "/api/todos", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decodeBody[[]model.Todo](t, rr)
	require.Len(t, list, 1)

	rr = env.do(http.MethodPost, "/api/todos/"+todo.ID+"/complete", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeBody[model.Todo](t, rr).Done)

	// done filter
	rr = env.do(http.MethodGet, "/api/todos?done=false", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody[[]model.Todo](t, rr))

	rr = env.do(http.MethodPost, "/api/todos/"+todo.ID+"/reopen", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decodeBody[model.Todo](t, rr).Done)

	rr = env.do(http.MethodPut, "/api/todos/"+todo.ID, map[string]string{
		"title": "write launch checklist v2",
	}, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "write launch checklist v2", decodeBody[model.Todo](t, rr).Title)

	rr = env.do(http.MethodDelete, "/api/todos/"+todo.ID, nil, cookie)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(http.MethodGet, "/api/todos/"+todo.ID, nil, cookie)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTodoExportStreamsNDJSON(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{})
	cookie := env.signupAndSignin("owner@example.com", "s3cret-password")

	// The export route sits behind the same org-context chain.
	rr := env.do(http.MethodGet, "/api/todos/export", nil, cookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	_, cookie = env.createOrg(cookie, "Acme", "acme")
	titles := []string{"alpha", "beta", "gamma"}
	for _, title := range titles {
		rr = env.do(http.MethodPost, "/api/todos", map[string]string{"title": title}, cookie)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr = env.do(http.MethodGet, "/api/todos/export", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/x-ndjson", rr.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, len(titles))
	var got []string
	for _, line := range lines {
		var todo model.Todo
		require.NoError(t, json.Unmarshal([]byte(line), &todo))
		got = append(got, todo.Title)
	}
	assert.ElementsMatch(t, titles, got)

	rr = env.do(http.MethodGet, "/api/todos/export", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTodoPlanLimit(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{
		plans: map[string]model.Plan{
			model.PlanFree: {Name: model.PlanFree, TodoLimit: 2},
		},
	})
	cookie := env.signupAndSignin("owner@example.com", "s3cret-password")
	_, cookie = env.createOrg(cookie, "Acme", "acme")

	for _, title := range []string{"one", "two"} {
		rr := env.do(http.MethodPost, "/api/todos", map[string]string{"title": title}, cookie)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr := env.do(http.MethodPost, "/api/todos", map[string]string{"title": "three"}, cookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	body := decodeBody[map[string]string](t, rr)
	assert.Contains(t, body["message"], "limit")
}

func TestTenantIsolation(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{})

	aliceCookie := env.signupAndSignin("alice@example.com", "s3cret-password")
	_, aliceCookie = env.createOrg(aliceCookie, "Alpha", "alpha")
	rr := env.do(http.MethodPost, "/api/todos", map[string]string{"title": "alpha secret"}, aliceCookie)
	require.Equal(t, http.StatusCreated, rr.Code)
	alphaTodo := decodeBody[model.Todo](t, rr)

	bobCookie := env.signupAndSignin("bob@example.com", "s3cret-password")
	_, bobCookie = env.createOrg(bobCookie, "Beta", "beta")

	// Bob's org context never resolves Alice's rows.
	rr = env.do(http.MethodGet, "/api/todos/"+alphaTodo.ID, nil, bobCookie)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(http.MethodGet, "/api/todos", nil, bobCookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody[[]model.Todo](t, rr))

	// Bob cannot select Alice's organization either.
	rr = env.do(http.MethodPost, "/api/auth/switch-org", map[string]string{
		"organization_id": alphaTodo.OrganizationID,
	}, bobCookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestOrgRoleGating(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{})

	ownerCookie := env.signupAndSignin("owner@example.com", "s3cret-password")
	orgID, ownerCookie := env.createOrg(ownerCookie, "Acme", "acme")

	memberCookie := env.signupAndSignin("member@example.com", "s3cret-password")
	memberUser, err := env.store.users.GetByEmail(context.Background(), "member@example.com")
	require.NoError(t, err)
	_, err = env.store.memberships.Create(context.Background(), memberParams(memberUser.ID, orgID, auth.RoleMember))
	require.NoError(t, err)
	rr := env.do(http.MethodPost, "/api/auth/switch-org", map[string]string{
		"organization_id": orgID,
	}, memberCookie)
	require.Equal(t, http.StatusOK, rr.Code)

	// Members read but do not administer.
	rr = env.do(http.MethodGet, "/api/org", nil, memberCookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = env.do(http.MethodPut, "/api/org", map[string]string{"name": "Hostile"}, memberCookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = env.do(http.MethodDelete, "/api/org", nil, memberCookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = env.do(http.MethodPost, "/api/org/members/invite", map[string]string{
		"email": "friend@example.com", "role": "member",
	}, memberCookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// The owner passes the same gates.
	rr = env.do(http.MethodPut, "/api/org", map[string]string{"name": "Acme Renamed"}, ownerCookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Acme Renamed", decodeBody[model.Organization](t, rr).Name)

	rr = env.do(http.MethodPost, "/api/org/members/invite", map[string]string{
		"email": "friend@example.com", "role": "member",
	}, ownerCookie)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	// The signed token travels only by mail, never in the response.
	assert.NotContains(t, rr.Body.String(), "token")

	// Inviting an owner is never allowed.
	rr = env.do(http.MethodPost, "/api/org/members/invite", map[string]string{
		"email": "boss@example.com", "role": "owner",
	}, ownerCookie)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Global admin listing is closed to regular users.
	rr = env.do(http.MethodGet, "/api/orgs/all", nil, ownerCookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAdminListsAllOrganizations(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{})

	ownerCookie := env.signupAndSignin("owner@example.com", "s3cret-password")
	env.createOrg(ownerCookie, "Acme", "acme")

	staleCookie := env.signupAndSignin("root@example.com", "s3cret-password")
	adminUser, err := env.store.users.GetByEmail(context.Background(), "root@example.com")
	require.NoError(t, err)
	_, err = env.store.users.SetAdmin(context.Background(), adminUser.ID, true)
	require.NoError(t, err)

	// The admin flag lives in the session snapshot, so the pre-grant
	// session stays unprivileged until the user signs in again.
	rr := env.do(http.MethodGet, "/api/orgs/all", nil, staleCookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(http.MethodPost, "/api/auth/signin", map[string]string{
		"email": "root@example.com", "password": "s3cret-password",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	freshAdmin := sessionCookie(t, rr)

	rr = env.do(http.MethodGet, "/api/orgs/all", nil, freshAdmin)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	orgs := decodeBody[[]model.Organization](t, rr)
	require.Len(t, orgs, 1)
	assert.Equal(t, "acme", orgs[0].Slug)
}

func TestBillingCheckoutAndWebhook(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{billing: true})

	ownerCookie := env.signupAndSignin("owner@example.com", "s3cret-password")
	orgID, ownerCookie := env.createOrg(ownerCookie, "Acme", "acme")

	rr := env.do(http.MethodGet, "/api/billing/plans", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	plans := decodeBody[[]model.Plan](t, rr)
	require.Len(t, plans, 3)
	assert.Equal(t, model.PlanFree, plans[0].Name) // sorted by price

	// Free plan has no checkout.
	rr = env.do(http.MethodPost, "/api/billing/checkout", map[string]string{"plan": "free"}, ownerCookie)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(http.MethodPost, "/api/billing/checkout", map[string]string{"plan": "pro"}, ownerCookie)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	session := decodeBody[map[string]string](t, rr)
	assert.NotEmpty(t, session["URL"])
	calls := env.provider.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, orgID, calls[0].OrganizationID)

	// Only the owner starts checkout.
	memberCookie := env.signupAndSignin("member@example.com", "s3cret-password")
	memberUser, err := env.store.users.GetByEmail(context.Background(), "member@example.com")
	require.NoError(t, err)
	_, err = env.store.memberships.Create(context.Background(), memberParams(memberUser.ID, orgID, auth.RoleAdmin))
	require.NoError(t, err)
	rr = env.do(http.MethodPost, "/api/auth/switch-org", map[string]string{"organization_id": orgID}, memberCookie)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = env.do(http.MethodPost, "/api/billing/checkout", map[string]string{"plan": "pro"}, memberCookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Webhooks authenticate by shared secret, not by session.
	payload := map[string]any{
		"type": "checkout.session.completed",
		"data": map[string]any{
			"client_reference_id": orgID,
			"plan":                "pro",
			"status":              "active",
			"customer_id":         "cus_123",
			"subscription_id":     "sub_456",
		},
	}
	rr = env.do(http.MethodPost, "/api/webhooks/billing", payload)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	// A wrong secret of the right length is rejected too.
	wrong := strings.Repeat("x", len(testWebhookSecret))
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/billing", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Secret", wrong)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/webhooks/billing", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Secret", testWebhookSecret)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sub, err := env.store.subscriptions.GetByOrganization(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, sub.Plan)
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
}

func TestBillingRoutesAbsentWhenUnconfigured(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{})
	rr := env.do(http.MethodGet, "/api/billing/plans", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWebhookRejectsWhenNoSecretConfigured(t *testing.T) {
	h := &BillingHandlers{WebhookSecret: ""}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/billing", bytes.NewReader([]byte("{}")))
	req.Header.Set("X-Webhook-Secret", "")
	rr := httptest.NewRecorder()
	h.Webhook(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAvatarRoundtrip(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{})
	cookie := env.signupAndSignin("owner@example.com", "s3cret-password")
	user, err := env.store.users.GetByEmail(context.Background(), "owner@example.com")
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for x := 0; x < 10; x++ {
		img.Set(x, x, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	req := httptest.NewRequest(http.MethodPut, "/api/me/avatar", bytes.NewReader(buf.Bytes()))
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	// Any signed-in user may fetch it.
	otherCookie := env.signupAndSignin("viewer@example.com", "s3cret-password")
	getRR := env.do(http.MethodGet, "/api/users/"+user.ID+"/avatar", nil, otherCookie)
	require.Equal(t, http.StatusOK, getRR.Code)
	assert.Equal(t, "image/png", getRR.Result().Header.Get("Content-Type"))
	_, decodeErr := png.Decode(bytes.NewReader(getRR.Body.Bytes()))
	assert.NoError(t, decodeErr)

	// Anonymous requests never see avatars.
	rr2 := env.do(http.MethodGet, "/api/users/"+user.ID+"/avatar", nil)
	assert.Equal(t, http.StatusUnauthorized, rr2.Code)

	// A user without an avatar is a 404.
	viewer, err := env.store.users.GetByEmail(context.Background(), "viewer@example.com")
	require.NoError(t, err)
	rr3 := env.do(http.MethodGet, "/api/users/"+viewer.ID+"/avatar", nil, otherCookie)
	assert.Equal(t, http.StatusNotFound, rr3.Code)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{})
	rr := env.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
