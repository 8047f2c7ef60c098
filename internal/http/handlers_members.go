package httpx

import (
	"context"
	"net/http"

	"github.com/tasknest/tasknest/internal/domain/auth"
	"github.com/tasknest/tasknest/internal/domain/model"
	apperrors "github.com/tasknest/tasknest/internal/errors"
	"github.com/tasknest/tasknest/internal/procedure"
	"github.com/tasknest/tasknest/internal/service"
)

// MemberHandlers serves membership and invitation endpoints for the active
// organization.
type MemberHandlers struct {
	Svc         *service.MemberService
	Resolver    *procedure.Resolver
	Memberships procedure.MembershipReader
}

func (h *MemberHandlers) memberChain(required auth.Role) *procedure.Builder {
	b := procedure.New().
		Use(procedure.Auth(h.Resolver)).
		Use(procedure.OrgContext(h.Memberships))
	if required != "" {
		b = b.Use(procedure.RequireRole(required))
	}
	return b
}

// List handles GET /api/org/members.
func (h *MemberHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	proc := h.memberChain(auth.RoleMember).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			members, err := h.Svc.ListMembers(ctx, pc.OrganizationID, limit, offset)
			if err != nil {
				return nil, err
			}
			if members == nil {
				members = []*model.MemberView{}
			}
			return members, nil
		})
	serveProc(w, r, proc, http.StatusOK)
}

// inviteResponse pairs the invitation with nothing else; the signed token
// only travels by email.
type inviteResponse struct {
	Invitation *model.Invitation `json:"invitation"`
}

// Invite handles POST /api/org/members/invite. Admin or better.
func (h *MemberHandlers) Invite(w http.ResponseWriter, r *http.Request) {
	var req model.InviteMemberRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	proc := h.memberChain(auth.RoleAdmin).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			inv, _, err := h.Svc.Invite(ctx, pc.OrganizationID, pc.Session.UserID, &req)
			if err != nil {
				return nil, err
			}
			return inviteResponse{Invitation: inv}, nil
		})
	serveProc(w, r, proc, http.StatusCreated)
}

// ListInvitations handles GET /api/org/invitations. Admin or better.
func (h *MemberHandlers) ListInvitations(w http.ResponseWriter, r *http.Request) {
	proc := h.memberChain(auth.RoleAdmin).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			invs, err := h.Svc.ListInvitations(ctx, pc.OrganizationID)
			if err != nil {
				return nil, err
			}
			if invs == nil {
				invs = []*model.Invitation{}
			}
			return invs, nil
		})
	serveProc(w, r, proc, http.StatusOK)
}

// RevokeInvitation handles DELETE /api/org/invitations/{id}. Admin or better.
func (h *MemberHandlers) RevokeInvitation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	proc := h.memberChain(auth.RoleAdmin).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			return nil, h.Svc.RevokeInvitation(ctx, pc.OrganizationID, id)
		})
	serveProc(w, r, proc, http.StatusNoContent)
}

type acceptInvitationRequest struct {
	Token string `json:"token"`
}

// AcceptInvitation handles POST /api/invitations/accept. Needs a session
// but no org context; the token names the organization.
func (h *MemberHandlers) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req acceptInvitationRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		WriteAppError(w, apperrors.ValidationField("token", "Invitation token is required."))
		return
	}
	proc := procedure.New().
		Use(procedure.Auth(h.Resolver)).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			return h.Svc.Accept(ctx, pc.Session.UserID, pc.Session.User.Email, req.Token)
		})
	serveProc(w, r, proc, http.StatusCreated)
}

type changeRoleRequest struct {
	Role auth.Role `json:"role"`
}

// ChangeRole handles PATCH /api/org/members/{userID}. Admin or better.
func (h *MemberHandlers) ChangeRole(w http.ResponseWriter, r *http.Request) {
	targetUserID := r.PathValue("userID")
	var req changeRoleRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	proc := h.memberChain(auth.RoleAdmin).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			return h.Svc.ChangeRole(ctx, pc.OrganizationID, targetUserID, req.Role)
		})
	serveProc(w, r, proc, http.StatusOK)
}

type transferOwnershipRequest struct {
	ToUserID string `json:"to_user_id"`
}

// TransferOwnership handles POST /api/org/transfer-ownership. Owner only.
func (h *MemberHandlers) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req transferOwnershipRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	proc := h.memberChain(auth.RoleOwner).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			return nil, h.Svc.TransferOwnership(ctx, pc.OrganizationID, pc.Session.UserID, req.ToUserID)
		})
	serveProc(w, r, proc, http.StatusNoContent)
}

// Remove handles DELETE /api/org/members/{userID}. Admin or better.
func (h *MemberHandlers) Remove(w http.ResponseWriter, r *http.Request) {
	targetUserID := r.PathValue("userID")
	proc := h.memberChain(auth.RoleAdmin).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			return nil, h.Svc.Remove(ctx, pc.OrganizationID, targetUserID)
		})
	serveProc(w, r, proc, http.StatusNoContent)
}

// Leave handles POST /api/org/leave. Any member except the owner.
func (h *MemberHandlers) Leave(w http.ResponseWriter, r *http.Request) {
	proc := h.memberChain(auth.RoleMember).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			return nil, h.Svc.Leave(ctx, pc.OrganizationID, pc.Session.UserID)
		})
	serveProc(w, r, proc, http.StatusNoContent)
}
