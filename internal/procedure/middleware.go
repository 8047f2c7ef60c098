package procedure

import (
	"context"

	"github.com/tasknest/tasknest/internal/domain/auth"
	"github.com/tasknest/tasknest/internal/domain/model"
	apperrors "github.com/tasknest/tasknest/internal/errors"
)

// MembershipReader is the minimal read interface the org-context middleware
// needs: membership lookup by (user, organization), with the parent
// organization populated. Absence is reported as a not-found AppError.
type MembershipReader interface {
	GetWithOrganization(ctx context.Context, userID, organizationID string) (*model.Membership, error)
}

// Auth gates a procedure on the existence of a session. On success the
// context is extended with the session; otherwise the chain fails
// unauthorized and downstream steps never run.
func Auth(r *Resolver) Middleware {
	return func(ctx context.Context, pc Context, next Next) (any, error) {
		sess := r.Resolve(ctx)
		if sess == nil {
			return nil, apperrors.Unauthorized("Not authenticated")
		}
		return next(ctx, pc.WithSession(sess))
	}
}

// AdminOnly gates a procedure on global-admin status. It performs its own
// session resolution, so it does not require Auth to have run first.
func AdminOnly(r *Resolver) Middleware {
	return func(ctx context.Context, pc Context, next Next) (any, error) {
		sess := r.Resolve(ctx)
		if sess == nil {
			return nil, apperrors.Unauthorized("Not authenticated")
		}
		if !sess.User.IsAdmin {
			return nil, apperrors.Forbidden("Admin access required")
		}
		return next(ctx, pc.WithSession(sess))
	}
}

// OrgContext resolves and validates the active tenant for a procedure that
// operates on a single organization's data. It must run after a middleware
// that placed a session into the context (Auth or AdminOnly).
//
// Membership is verified at the moment of use: a stale or forged
// CurrentOrgID without a genuine membership row does not grant access. The
// one exception is the global-admin support bypass, which proceeds with a
// nil membership.
func OrgContext(memberships MembershipReader) Middleware {
	return func(ctx context.Context, pc Context, next Next) (any, error) {
		sess := pc.Session
		if sess == nil {
			return nil, apperrors.Unauthorized("Not authenticated")
		}
		if sess.CurrentOrgID == "" {
			return nil, apperrors.Forbidden("You must select an organization to access this resource")
		}

		membership, err := memberships.GetWithOrganization(ctx, sess.UserID, sess.CurrentOrgID)
		switch {
		case err == nil:
		case apperrors.IsNotFound(err):
			if !sess.User.IsAdmin {
				return nil, apperrors.Forbidden("You are not a member of this organization")
			}
			membership = nil
		default:
			return nil, err
		}

		return next(ctx, pc.WithOrg(sess.CurrentOrgID, membership))
	}
}

// RequireRole gates a procedure on a minimum tenant role. It must run after
// OrgContext. A nil membership holds no role, so only the global-admin
// bypass OrgContext already admitted can pass it.
func RequireRole(required auth.Role) Middleware {
	return func(ctx context.Context, pc Context, next Next) (any, error) {
		sess := pc.Session
		if sess == nil {
			return nil, apperrors.Unauthorized("Not authenticated")
		}
		var held auth.Role
		if pc.Membership != nil {
			held = pc.Membership.Role
		}
		if !auth.Authorize(held, sess.User.IsAdmin, required).Authorized() {
			return nil, apperrors.Forbidden("Insufficient role for this operation")
		}
		return next(ctx, pc)
	}
}
