package httpx

import (
	"context"
	"net/http"

	"github.com/tasknest/tasknest/internal/domain/auth"
	"github.com/tasknest/tasknest/internal/domain/model"
	"github.com/tasknest/tasknest/internal/procedure"
	"github.com/tasknest/tasknest/internal/service"
)

// OrgHandlers serves organization CRUD. Mutating routes run through the
// org-context chain; role requirements tighten per route.
type OrgHandlers struct {
	Svc         *service.OrgService
	Resolver    *procedure.Resolver
	Memberships procedure.MembershipReader
}

// Create handles POST /api/orgs. Any authenticated user may create an
// organization; they become its owner.
func (h *OrgHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOrganizationRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	proc := procedure.New().
		Use(procedure.Auth(h.Resolver)).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			return h.Svc.Create(ctx, pc.Session.UserID, &req)
		})
	serveProc(w, r, proc, http.StatusCreated)
}

// Get handles GET /api/org. Returns the active organization.
func (h *OrgHandlers) Get(w http.ResponseWriter, r *http.Request) {
	proc := procedure.New().
		Use(procedure.Auth(h.Resolver)).
		Use(procedure.OrgContext(h.Memberships)).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			return h.Svc.GetByID(ctx, pc.OrganizationID)
		})
	serveProc(w, r, proc, http.StatusOK)
}

// Update handles PUT /api/org. Requires admin or better.
func (h *OrgHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateOrganizationRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	proc := procedure.New().
		Use(procedure.Auth(h.Resolver)).
		Use(procedure.OrgContext(h.Memberships)).
		Use(procedure.RequireRole(auth.RoleAdmin)).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			return h.Svc.Update(ctx, pc.OrganizationID, req)
		})
	serveProc(w, r, proc, http.StatusOK)
}

// Delete handles DELETE /api/org. Owner only.
func (h *OrgHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	proc := procedure.New().
		Use(procedure.Auth(h.Resolver)).
		Use(procedure.OrgContext(h.Memberships)).
		Use(procedure.RequireRole(auth.RoleOwner)).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			if _, err := h.Svc.Delete(ctx, pc.OrganizationID); err != nil {
				return nil, err
			}
			return nil, nil
		})
	serveProc(w, r, proc, http.StatusNoContent)
}

// ListMine handles GET /api/orgs. Returns the caller's memberships with
// organizations attached.
func (h *OrgHandlers) ListMine(w http.ResponseWriter, r *http.Request) {
	proc := procedure.New().
		Use(procedure.Auth(h.Resolver)).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			memberships, err := h.Svc.ListMine(ctx, pc.Session.UserID)
			if err != nil {
				return nil, err
			}
			if memberships == nil {
				memberships = []*model.Membership{}
			}
			return memberships, nil
		})
	serveProc(w, r, proc, http.StatusOK)
}

// ListAll handles GET /api/orgs/all. Global admins only.
func (h *OrgHandlers) ListAll(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	proc := procedure.New().
		Use(procedure.AdminOnly(h.Resolver)).
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			orgs, err := h.Svc.List(ctx, limit, offset)
			if err != nil {
				return nil, err
			}
			if orgs == nil {
				orgs = []*model.Organization{}
			}
			return orgs, nil
		})
	serveProc(w, r, proc, http.StatusOK)
}
