package httpx

// In-memory repository fakes backing the router tests. They implement the
// same conflict/not-found semantics as the Postgres repositories so the
// full request chain can run against them.

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tasknest/tasknest/internal/core"
	"github.com/tasknest/tasknest/internal/domain/auth"
	"github.com/tasknest/tasknest/internal/domain/model"
	apperrors "github.com/tasknest/tasknest/internal/errors"
)

type memStore struct {
	users         *memUserRepo
	orgs          *memOrgRepo
	memberships   *memMembershipRepo
	todos         *memTodoRepo
	subscriptions *memSubscriptionRepo
	invitations   *memInvitationRepo
}

func newMemStore() *memStore {
	st := &memStore{
		users:         &memUserRepo{byID: map[string]*model.User{}},
		memberships:   &memMembershipRepo{rows: map[string]*model.Membership{}},
		todos:         &memTodoRepo{byID: map[string]*model.Todo{}},
		subscriptions: &memSubscriptionRepo{byOrg: map[string]*model.Subscription{}},
	}
	st.invitations = &memInvitationRepo{
		byID:        map[string]*model.Invitation{},
		memberships: st.memberships,
	}
	st.orgs = &memOrgRepo{
		byID:          map[string]*model.Organization{},
		memberships:   st.memberships,
		subscriptions: st.subscriptions,
	}
	return st
}

func memID(prefix string, n int) string { return fmt.Sprintf("%s-%d", prefix, n) }

type memUserRepo struct {
	byID    map[string]*model.User
	avatars map[string][]byte
	ctypes  map[string]string
	nextID  int
}

func (f *memUserRepo) Create(_ context.Context, params core.CreateUserParams) (*model.User, error) {
	for _, u := range f.byID {
		if u.Email == params.Email {
			return nil, apperrors.Conflict("An account with this email already exists.")
		}
	}
	f.nextID++
	u := &model.User{
		ID:           memID("user", f.nextID),
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		CreatedAt:    time.Now(),
	}
	f.byID[u.ID] = u
	return u, nil
}

func (f *memUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, apperrors.NotFound("user not found")
}

func (f *memUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func (f *memUserRepo) SetAdmin(_ context.Context, id string, isAdmin bool) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	u.IsAdmin = isAdmin
	return u, nil
}

func (f *memUserRepo) UpdateAvatar(_ context.Context, params core.UpdateAvatarParams) error {
	if _, ok := f.byID[params.UserID]; !ok {
		return apperrors.NotFound("user not found")
	}
	if f.avatars == nil {
		f.avatars = map[string][]byte{}
		f.ctypes = map[string]string{}
	}
	f.avatars[params.UserID] = params.Data
	f.ctypes[params.UserID] = params.ContentType
	return nil
}

func (f *memUserRepo) GetAvatar(_ context.Context, id string) ([]byte, string, error) {
	data, ok := f.avatars[id]
	if !ok {
		return nil, "", apperrors.NotFound("avatar not found")
	}
	return data, f.ctypes[id], nil
}

type memOrgRepo struct {
	byID          map[string]*model.Organization
	memberships   *memMembershipRepo
	subscriptions *memSubscriptionRepo
	nextID        int
}

func (f *memOrgRepo) CreateWithOwner(
	ctx context.Context,
	req *model.CreateOrganizationRequest,
	ownerID string,
) (*model.Organization, error) {
	for _, o := range f.byID {
		if o.Slug == req.Slug {
			return nil, apperrors.Conflict("An organization with this slug already exists.")
		}
	}
	f.nextID++
	org := &model.Organization{
		ID:        memID("org", f.nextID),
		Name:      req.Name,
		Slug:      req.Slug,
		CreatedAt: time.Now(),
	}
	f.byID[org.ID] = org
	if _, err := f.memberships.Create(ctx, core.CreateMembershipParams{
		UserID:         ownerID,
		OrganizationID: org.ID,
		Role:           auth.RoleOwner,
	}); err != nil {
		return nil, err
	}
	if _, err := f.subscriptions.Upsert(ctx, core.UpsertSubscriptionParams{
		OrganizationID: org.ID,
		Plan:           model.PlanFree,
		Status:         model.SubscriptionStatusActive,
	}); err != nil {
		return nil, err
	}
	return org, nil
}

func (f *memOrgRepo) GetByID(_ context.Context, id string) (*model.Organization, error) {
	if o, ok := f.byID[id]; ok {
		return o, nil
	}
	return nil, apperrors.NotFound("organization not found")
}

func (f *memOrgRepo) GetBySlug(_ context.Context, slug string) (*model.Organization, error) {
	for _, o := range f.byID {
		if o.Slug == slug {
			return o, nil
		}
	}
	return nil, apperrors.NotFound("organization not found")
}

func (f *memOrgRepo) Update(
	_ context.Context,
	id string,
	req model.UpdateOrganizationRequest,
) (*model.Organization, error) {
	o, ok := f.byID[id]
	if !ok {
		return nil, apperrors.NotFound("organization not found")
	}
	o.Name = req.Name
	now := time.Now()
	o.UpdatedAt = &now
	return o, nil
}

func (f *memOrgRepo) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := f.byID[id]; !ok {
		return false, nil
	}
	delete(f.byID, id)
	return true, nil
}

func (f *memOrgRepo) List(_ context.Context, limit, offset int) ([]*model.Organization, error) {
	var out []*model.Organization
	for _, o := range f.byID {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memMembershipRepo struct {
	rows   map[string]*model.Membership
	nextID int
}

func memKey(userID, orgID string) string { return userID + "/" + orgID }

func (f *memMembershipRepo) Create(_ context.Context, params core.CreateMembershipParams) (*model.Membership, error) {
	key := memKey(params.UserID, params.OrganizationID)
	if _, ok := f.rows[key]; ok {
		return nil, apperrors.Conflict("membership already exists")
	}
	f.nextID++
	m := &model.Membership{
		ID:             memID("mem", f.nextID),
		UserID:         params.UserID,
		OrganizationID: params.OrganizationID,
		Role:           params.Role,
		CreatedAt:      time.Now(),
	}
	f.rows[key] = m
	return m, nil
}

func (f *memMembershipRepo) GetWithOrganization(_ context.Context, userID, organizationID string) (*model.Membership, error) {
	if m, ok := f.rows[memKey(userID, organizationID)]; ok {
		return m, nil
	}
	return nil, apperrors.NotFound("membership not found")
}

func (f *memMembershipRepo) ListByUser(_ context.Context, userID string) ([]*model.Membership, error) {
	var out []*model.Membership
	for _, m := range f.rows {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *memMembershipRepo) ListMembers(_ context.Context, organizationID string, limit, offset int) ([]*model.MemberView, error) {
	var out []*model.MemberView
	for _, m := range f.rows {
		if m.OrganizationID == organizationID {
			out = append(out, &model.MemberView{
				ID:        m.ID,
				UserID:    m.UserID,
				Role:      m.Role,
				CreatedAt: m.CreatedAt,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *memMembershipRepo) UpdateRole(_ context.Context, params core.UpdateMembershipRoleParams) (*model.Membership, error) {
	m, ok := f.rows[memKey(params.UserID, params.OrganizationID)]
	if !ok {
		return nil, apperrors.NotFound("membership not found")
	}
	m.Role = params.Role
	return m, nil
}

func (f *memMembershipRepo) Delete(_ context.Context, userID, organizationID string) (bool, error) {
	key := memKey(userID, organizationID)
	if _, ok := f.rows[key]; !ok {
		return false, nil
	}
	delete(f.rows, key)
	return true, nil
}

func (f *memMembershipRepo) CountByRole(_ context.Context, organizationID string, role auth.Role) (int, error) {
	n := 0
	for _, m := range f.rows {
		if m.OrganizationID == organizationID && m.Role == role {
			n++
		}
	}
	return n, nil
}

func (f *memMembershipRepo) TransferOwnership(_ context.Context, params core.TransferOwnershipParams) error {
	from, ok := f.rows[memKey(params.FromUserID, params.OrganizationID)]
	if !ok || from.Role != auth.RoleOwner {
		return apperrors.NotFound("current owner membership not found")
	}
	to, ok := f.rows[memKey(params.ToUserID, params.OrganizationID)]
	if !ok {
		return apperrors.NotFound("target membership not found")
	}
	from.Role = auth.RoleAdmin
	to.Role = auth.RoleOwner
	return nil
}

type memTodoRepo struct {
	byID   map[string]*model.Todo
	nextID int
}

func (f *memTodoRepo) Create(_ context.Context, organizationID, authorID string, req *model.CreateTodoRequest) (*model.Todo, error) {
	f.nextID++
	t := &model.Todo{
		ID:             memID("todo", f.nextID),
		OrganizationID: organizationID,
		AuthorID:       authorID,
		Title:          req.Title,
		Body:           req.Body,
		CreatedAt:      time.Now(),
	}
	f.byID[t.ID] = t
	return t, nil
}

func (f *memTodoRepo) GetByID(_ context.Context, organizationID, id string) (*model.Todo, error) {
	t, ok := f.byID[id]
	if !ok || t.OrganizationID != organizationID {
		return nil, apperrors.NotFound("todo not found")
	}
	return t, nil
}

func (f *memTodoRepo) List(_ context.Context, organizationID string, opts model.TodosListOptions) ([]*model.Todo, error) {
	var out []*model.Todo
	for _, t := range f.byID {
		if t.OrganizationID != organizationID {
			continue
		}
		if opts.Done != nil && t.Done != *opts.Done {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *memTodoRepo) Count(_ context.Context, organizationID string) (int, error) {
	n := 0
	for _, t := range f.byID {
		if t.OrganizationID == organizationID {
			n++
		}
	}
	return n, nil
}

func (f *memTodoRepo) Update(_ context.Context, organizationID, id string, req model.UpdateTodoRequest) (*model.Todo, error) {
	t, ok := f.byID[id]
	if !ok || t.OrganizationID != organizationID {
		return nil, apperrors.NotFound("todo not found")
	}
	t.Title = req.Title
	t.Body = req.Body
	if req.Done != nil {
		t.Done = *req.Done
	}
	now := time.Now()
	t.UpdatedAt = &now
	return t, nil
}

func (f *memTodoRepo) Delete(_ context.Context, organizationID, id string) (bool, error) {
	t, ok := f.byID[id]
	if !ok || t.OrganizationID != organizationID {
		return false, nil
	}
	delete(f.byID, id)
	return true, nil
}

type memSubscriptionRepo struct {
	byOrg map[string]*model.Subscription
}

func (f *memSubscriptionRepo) GetByOrganization(_ context.Context, organizationID string) (*model.Subscription, error) {
	if s, ok := f.byOrg[organizationID]; ok {
		return s, nil
	}
	return nil, apperrors.NotFound("subscription not found")
}

func (f *memSubscriptionRepo) Upsert(_ context.Context, params core.UpsertSubscriptionParams) (*model.Subscription, error) {
	now := time.Now()
	s := &model.Subscription{
		OrganizationID:         params.OrganizationID,
		Plan:                   params.Plan,
		Status:                 params.Status,
		ProviderCustomerID:     params.ProviderCustomerID,
		ProviderSubscriptionID: params.ProviderSubscriptionID,
		UpdatedAt:              &now,
	}
	f.byOrg[params.OrganizationID] = s
	return s, nil
}

func (f *memSubscriptionRepo) UpdateStatus(_ context.Context, organizationID, status string) (*model.Subscription, error) {
	s, ok := f.byOrg[organizationID]
	if !ok {
		return nil, apperrors.NotFound("subscription not found")
	}
	s.Status = status
	return s, nil
}

type memInvitationRepo struct {
	byID        map[string]*model.Invitation
	memberships *memMembershipRepo
	nextID      int
}

func (f *memInvitationRepo) Create(_ context.Context, params core.CreateInvitationParams) (*model.Invitation, error) {
	f.nextID++
	inv := &model.Invitation{
		ID:             memID("inv", f.nextID),
		OrganizationID: params.OrganizationID,
		Email:          params.Email,
		Role:           params.Role,
		TokenID:        params.TokenID,
		InvitedBy:      params.InvitedBy,
		ExpiresAt:      params.ExpiresAt,
		CreatedAt:      time.Now(),
	}
	f.byID[inv.ID] = inv
	return inv, nil
}

func (f *memInvitationRepo) GetByTokenID(_ context.Context, tokenID string) (*model.Invitation, error) {
	for _, inv := range f.byID {
		if inv.TokenID == tokenID {
			return inv, nil
		}
	}
	return nil, apperrors.NotFound("invitation not found")
}

func (f *memInvitationRepo) ListByOrganization(_ context.Context, organizationID string) ([]*model.Invitation, error) {
	var out []*model.Invitation
	for _, inv := range f.byID {
		if inv.OrganizationID == organizationID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *memInvitationRepo) Redeem(
	ctx context.Context,
	params core.RedeemInvitationParams,
) (*model.Membership, bool, error) {
	inv, ok := f.byID[params.InvitationID]
	if !ok || inv.AcceptedAt != nil {
		return nil, false, nil
	}
	membership, err := f.memberships.Create(ctx, core.CreateMembershipParams{
		UserID:         params.UserID,
		OrganizationID: inv.OrganizationID,
		Role:           inv.Role,
	})
	if err != nil {
		return nil, false, err
	}
	accepted := params.AcceptedAt
	inv.AcceptedAt = &accepted
	return membership, true, nil
}

func (f *memInvitationRepo) Delete(_ context.Context, organizationID, id string) (bool, error) {
	inv, ok := f.byID[id]
	if !ok || inv.OrganizationID != organizationID {
		return false, nil
	}
	delete(f.byID, id)
	return true, nil
}
