package procedure

import (
	"context"
	"time"

	"github.com/tasknest/tasknest/internal/domain/auth"
	"github.com/tasknest/tasknest/internal/ports"
)

// sessionOverrideKey and sessionTokenKey are unexported context key types so
// no other package can collide with them.
type (
	sessionOverrideKey struct{}
	sessionTokenKey    struct{}
)

// sessionOverride wraps the overridden session so that "override established
// with a nil session" (an explicitly unauthenticated scope, used by tests)
// is distinguishable from "no override established" (production resolution).
type sessionOverride struct {
	session *auth.SessionData
}

// WithSessionOverride returns a context whose session is fixed to s for the
// duration of that context's lifetime. The override applies to everything
// the callee invokes, nests (an inner override shadows an outer one until
// its scope ends), and never leaks across concurrently-running contexts
// because context values are immutable.
func WithSessionOverride(ctx context.Context, s *auth.SessionData) context.Context {
	return context.WithValue(ctx, sessionOverrideKey{}, sessionOverride{session: s})
}

// overrideFrom reports the override and whether one is established at all.
func overrideFrom(ctx context.Context) (*auth.SessionData, bool) {
	if o, ok := ctx.Value(sessionOverrideKey{}).(sessionOverride); ok {
		return o.session, true
	}
	return nil, false
}

// WithSessionToken returns a context carrying the opaque session token read
// from the request cookie. The HTTP layer sets this before invoking any
// procedure.
func WithSessionToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionTokenKey{}, token)
}

// sessionTokenFrom returns the token placed by WithSessionToken, if any.
func sessionTokenFrom(ctx context.Context) string {
	if token, ok := ctx.Value(sessionTokenKey{}).(string); ok {
		return token
	}
	return ""
}

// Resolver produces the currently active session for an executing request.
//
// An explicitly established override scope wins; otherwise the production
// path looks up the cookie-borne token in the session store. Absent,
// invalid, or expired input degrades to nil rather than an error: "no
// session" is itself the signal the auth middlewares act on.
type Resolver struct {
	store ports.SessionStore
	now   func() time.Time
}

// NewResolver builds a resolver over the given session store.
func NewResolver(store ports.SessionStore) *Resolver {
	return &Resolver{store: store, now: time.Now}
}

// NewResolverWithClock builds a resolver with an injected clock for tests.
func NewResolverWithClock(store ports.SessionStore, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{store: store, now: now}
}

// Resolve returns the session for the current request scope, or nil when
// there is none.
func (r *Resolver) Resolve(ctx context.Context) *auth.SessionData {
	if s, ok := overrideFrom(ctx); ok {
		return s
	}

	token := sessionTokenFrom(ctx)
	if token == "" || r == nil || r.store == nil {
		return nil
	}

	sess, err := r.store.Get(ctx, token)
	if err != nil {
		return nil
	}
	if sess.Expired(r.now()) {
		return nil
	}
	return &sess
}
