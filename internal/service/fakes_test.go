package service

// In-memory repository fakes shared by the service tests. Each fake keeps
// just enough behavior for the invariants under test: conflict on duplicate
// keys, NotFound on misses, tenant scoping on todos.

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

func testStringID(prefix string, n int) string {
	return fmt.Sprintf("%s-%d", prefix, n)
}

func coreCreateUser(email string) core.CreateUserParams {
	return core.CreateUserParams{Email: email, PasswordHash: "$2a$04$fakefakefakefakefakefake"}
}

// fakeMembershipRepo is an in-memory core.MembershipRepository keyed by
// (userID, organizationID).
type fakeMembershipRepo struct {
	rows   map[string]*model.Membership
	emails map[string]string // userID -> email, for ListMembers views
	nextID int
}

func newFakeMembershipRepo() *fakeMembershipRepo {
	return &fakeMembershipRepo{
		rows:   map[string]*model.Membership{},
		emails: map[string]string{},
	}
}

func membershipKey(userID, orgID string) string { return userID + "/" + orgID }

func (f *fakeMembershipRepo) add(m *model.Membership) {
	f.nextID++
	if m.ID == "" {
		m.ID = testStringID("mem", f.nextID)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	f.rows[membershipKey(m.UserID, m.OrganizationID)] = m
}

func (f *fakeMembershipRepo) Create(_ context.Context, params core.CreateMembershipParams) (*model.Membership, error) {
	key := membershipKey(params.UserID, params.OrganizationID)
	if _, ok := f.rows[key]; ok {
		return nil, apperrors.Conflict("membership already exists")
	}
	if params.Role == auth.RoleOwner {
		for _, m := range f.rows {
			if m.OrganizationID == params.OrganizationID && m.Role == auth.RoleOwner {
				return nil, apperrors.Conflict("organization already has an owner")
			}
		}
	}
	m := &model.Membership{
		UserID:         params.UserID,
		OrganizationID: params.OrganizationID,
		Role:           params.Role,
	}
	f.add(m)
	return m, nil
}

func (f *fakeMembershipRepo) GetWithOrganization(_ context.Context, userID, organizationID string) (*model.Membership, error) {
	if m, ok := f.rows[membershipKey(userID, organizationID)]; ok {
		return m, nil
	}
	return nil, apperrors.NotFound("membership not found")
}

func (f *fakeMembershipRepo) ListByUser(_ context.Context, userID string) ([]*model.Membership, error) {
	var out []*model.Membership
	for _, m := range f.rows {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeMembershipRepo) ListMembers(_ context.Context, organizationID string, limit, offset int) ([]*model.MemberView, error) {
	var out []*model.MemberView
	for _, m := range f.rows {
		if m.OrganizationID != organizationID {
			continue
		}
		out = append(out, &model.MemberView{
			ID:        m.ID,
			UserID:    m.UserID,
			Email:     f.emails[m.UserID],
			Role:      m.Role,
			CreatedAt: m.CreatedAt,
		})
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

func (f *fakeMembershipRepo) UpdateRole(_ context.Context, params core.UpdateMembershipRoleParams) (*model.Membership, error) {
	m, ok := f.rows[membershipKey(params.UserID, params.OrganizationID)]
	if !ok {
		return nil, apperrors.NotFound("membership not found")
	}
	m.Role = params.Role
	return m, nil
}

func (f *fakeMembershipRepo) Delete(_ context.Context, userID, organizationID string) (bool, error) {
	key := membershipKey(userID, organizationID)
	if _, ok := f.rows[key]; !ok {
		return false, nil
	}
	delete(f.rows, key)
	return true, nil
}

func (f *fakeMembershipRepo) CountByRole(_ context.Context, organizationID string, role auth.Role) (int, error) {
	n := 0
	for _, m := range f.rows {
		if m.OrganizationID == organizationID && m.Role == role {
			n++
		}
	}
	return n, nil
}

func (f *fakeMembershipRepo) TransferOwnership(_ context.Context, params core.TransferOwnershipParams) error {
	from, ok := f.rows[membershipKey(params.FromUserID, params.OrganizationID)]
	if !ok || from.Role != auth.RoleOwner {
		return apperrors.Conflict("ownership has changed, retry the transfer")
	}
	to, ok := f.rows[membershipKey(params.ToUserID, params.OrganizationID)]
	if !ok {
		return apperrors.NotFound("target membership not found")
	}
	from.Role = auth.RoleAdmin
	to.Role = auth.RoleOwner
	return nil
}

// fakeOrgRepo is an in-memory core.OrganizationRepository. Creating an
// organization also records the owner membership and a free subscription
// when linked repos are attached.
type fakeOrgRepo struct {
	bySlug      map[string]*model.Organization
	memberships *fakeMembershipRepo
	subs        *fakeSubscriptionRepo
	nextID      int
}

func newFakeOrgRepo() *fakeOrgRepo {
	return &fakeOrgRepo{bySlug: map[string]*model.Organization{}}
}

func (f *fakeOrgRepo) CreateWithOwner(_ context.Context, req *model.CreateOrganizationRequest, ownerID string) (*model.Organization, error) {
	if _, ok := f.bySlug[req.Slug]; ok {
		return nil, apperrors.Conflict("organization with this slug already exists")
	}
	f.nextID++
	org := &model.Organization{
		ID:        testStringID("org", f.nextID),
		Name:      req.Name,
		Slug:      req.Slug,
		CreatedAt: time.Now(),
	}
	f.bySlug[req.Slug] = org
	if f.memberships != nil {
		f.memberships.add(&model.Membership{UserID: ownerID, OrganizationID: org.ID, Role: auth.RoleOwner})
	}
	if f.subs != nil {
		f.subs.set(org.ID, model.PlanFree, model.SubscriptionStatusActive)
	}
	return org, nil
}

func (f *fakeOrgRepo) GetByID(_ context.Context, id string) (*model.Organization, error) {
	for _, org := range f.bySlug {
		if org.ID == id {
			return org, nil
		}
	}
	return nil, apperrors.NotFound("organization not found")
}

func (f *fakeOrgRepo) GetBySlug(_ context.Context, slug string) (*model.Organization, error) {
	if org, ok := f.bySlug[slug]; ok {
		return org, nil
	}
	return nil, apperrors.NotFound("organization not found")
}

func (f *fakeOrgRepo) Update(ctx context.Context, id string, req model.UpdateOrganizationRequest) (*model.Organization, error) {
	org, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	org.Name = req.Name
	return org, nil
}

func (f *fakeOrgRepo) Delete(ctx context.Context, id string) (bool, error) {
	org, err := f.GetByID(ctx, id)
	if err != nil {
		return false, nil //nolint:nilerr // delete of a missing row is not an error
	}
	delete(f.bySlug, org.Slug)
	return true, nil
}

func (f *fakeOrgRepo) List(_ context.Context, limit, offset int) ([]*model.Organization, error) {
	var out []*model.Organization
	for _, org := range f.bySlug {
		out = append(out, org)
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

// fakeTodoRepo is an in-memory core.TodoRepository scoped by organization.
type fakeTodoRepo struct {
	rows   []*model.Todo
	nextID int
}

func newFakeTodoRepo() *fakeTodoRepo { return &fakeTodoRepo{} }

func (f *fakeTodoRepo) Create(_ context.Context, organizationID, authorID string, req *model.CreateTodoRequest) (*model.Todo, error) {
	f.nextID++
	todo := &model.Todo{
		ID:             testStringID("todo", f.nextID),
		OrganizationID: organizationID,
		AuthorID:       authorID,
		Title:          req.Title,
		Body:           req.Body,
		CreatedAt:      time.Now(),
	}
	f.rows = append(f.rows, todo)
	return todo, nil
}

func (f *fakeTodoRepo) find(organizationID, id string) *model.Todo {
	for _, t := range f.rows {
		if t.OrganizationID == organizationID && t.ID == id {
			return t
		}
	}
	return nil
}

func (f *fakeTodoRepo) GetByID(_ context.Context, organizationID, id string) (*model.Todo, error) {
	if t := f.find(organizationID, id); t != nil {
		return t, nil
	}
	return nil, apperrors.NotFound("todo not found")
}

func (f *fakeTodoRepo) List(_ context.Context, organizationID string, opts model.TodosListOptions) ([]*model.Todo, error) {
	var out []*model.Todo
	for _, t := range f.rows {
		if t.OrganizationID != organizationID {
			continue
		}
		if opts.Done != nil && t.Done != *opts.Done {
			continue
		}
		out = append(out, t)
	}
	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeTodoRepo) Count(_ context.Context, organizationID string) (int, error) {
	n := 0
	for _, t := range f.rows {
		if t.OrganizationID == organizationID {
			n++
		}
	}
	return n, nil
}

func (f *fakeTodoRepo) Update(ctx context.Context, organizationID, id string, req model.UpdateTodoRequest) (*model.Todo, error) {
	t, err := f.GetByID(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}
	t.Title = req.Title
	t.Body = req.Body
	if req.Done != nil {
		t.Done = *req.Done
	}
	return t, nil
}

func (f *fakeTodoRepo) Delete(_ context.Context, organizationID, id string) (bool, error) {
	for i, t := range f.rows {
		if t.OrganizationID == organizationID && t.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// fakeInvitationRepo is an in-memory core.InvitationRepository keyed by
// token ID.
type fakeInvitationRepo struct {
	byTokenID   map[string]*model.Invitation
	memberships *fakeMembershipRepo
	nextID      int

	// redeemErr, when set, fails Redeem before anything is recorded, the
	// way a rolled-back transaction would.
	redeemErr error
}

func newFakeInvitationRepo(memberships *fakeMembershipRepo) *fakeInvitationRepo {
	return &fakeInvitationRepo{
		byTokenID:   map[string]*model.Invitation{},
		memberships: memberships,
	}
}

func (f *fakeInvitationRepo) Create(_ context.Context, params core.CreateInvitationParams) (*model.Invitation, error) {
	if _, ok := f.byTokenID[params.TokenID]; ok {
		return nil, apperrors.Conflict("invitation token already exists")
	}
	f.nextID++
	inv := &model.Invitation{
		ID:             testStringID("inv", f.nextID),
		OrganizationID: params.OrganizationID,
		Email:          params.Email,
		Role:           params.Role,
		TokenID:        params.TokenID,
		InvitedBy:      params.InvitedBy,
		ExpiresAt:      params.ExpiresAt,
		CreatedAt:      time.Now(),
	}
	f.byTokenID[params.TokenID] = inv
	return inv, nil
}

func (f *fakeInvitationRepo) GetByTokenID(_ context.Context, tokenID string) (*model.Invitation, error) {
	if inv, ok := f.byTokenID[tokenID]; ok {
		return inv, nil
	}
	return nil, apperrors.NotFound("invitation not found")
}

func (f *fakeInvitationRepo) ListByOrganization(_ context.Context, organizationID string) ([]*model.Invitation, error) {
	var out []*model.Invitation
	for _, inv := range f.byTokenID {
		if inv.OrganizationID == organizationID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeInvitationRepo) Redeem(
	ctx context.Context,
	params core.RedeemInvitationParams,
) (*model.Membership, bool, error) {
	if f.redeemErr != nil {
		return nil, false, f.redeemErr
	}
	for _, inv := range f.byTokenID {
		if inv.ID != params.InvitationID {
			continue
		}
		if inv.AcceptedAt != nil {
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
	return nil, false, nil
}

func (f *fakeInvitationRepo) Delete(_ context.Context, organizationID, id string) (bool, error) {
	for token, inv := range f.byTokenID {
		if inv.OrganizationID == organizationID && inv.ID == id {
			delete(f.byTokenID, token)
			return true, nil
		}
	}
	return false, nil
}

// fakeSubscriptionRepo is an in-memory core.SubscriptionRepository.
type fakeSubscriptionRepo struct {
	byOrg map[string]*model.Subscription
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{byOrg: map[string]*model.Subscription{}}
}

func (f *fakeSubscriptionRepo) set(organizationID, plan, status string) *model.Subscription {
	sub := &model.Subscription{OrganizationID: organizationID, Plan: plan, Status: status}
	f.byOrg[organizationID] = sub
	return sub
}

func (f *fakeSubscriptionRepo) GetByOrganization(_ context.Context, organizationID string) (*model.Subscription, error) {
	if sub, ok := f.byOrg[organizationID]; ok {
		return sub, nil
	}
	return nil, apperrors.NotFound("subscription not found")
}

func (f *fakeSubscriptionRepo) Upsert(_ context.Context, params core.UpsertSubscriptionParams) (*model.Subscription, error) {
	sub, ok := f.byOrg[params.OrganizationID]
	if !ok {
		sub = &model.Subscription{OrganizationID: params.OrganizationID}
		f.byOrg[params.OrganizationID] = sub
	}
	sub.Plan = params.Plan
	sub.Status = params.Status
	if params.ProviderCustomerID != nil {
		sub.ProviderCustomerID = params.ProviderCustomerID
	}
	if params.ProviderSubscriptionID != nil {
		sub.ProviderSubscriptionID = params.ProviderSubscriptionID
	}
	return sub, nil
}

func (f *fakeSubscriptionRepo) UpdateStatus(_ context.Context, organizationID, status string) (*model.Subscription, error) {
	sub, ok := f.byOrg[organizationID]
	if !ok {
		return nil, apperrors.NotFound("subscription not found")
	}
	sub.Status = status
	return sub, nil
}

// fakeOutboxRepo is an in-memory core.OutboxRepository that records
// enqueued messages.
type fakeOutboxRepo struct {
	queued []*model.OutboxMessage
	nextID int64

	enqueueErr error
}

func newFakeOutboxRepo() *fakeOutboxRepo { return &fakeOutboxRepo{} }

func (f *fakeOutboxRepo) Enqueue(_ context.Context, params core.EnqueueMailParams) (*model.OutboxMessage, error) {
	if f.enqueueErr != nil {
		return nil, f.enqueueErr
	}
	f.nextID++
	msg := &model.OutboxMessage{
		ID:        f.nextID,
		ToEmail:   params.ToEmail,
		Subject:   params.Subject,
		Body:      params.Body,
		Status:    model.OutboxStatusPending,
		CreatedAt: time.Now(),
	}
	f.queued = append(f.queued, msg)
	return msg, nil
}

func (f *fakeOutboxRepo) ReserveBatch(_ context.Context, limit int) ([]*model.OutboxMessage, error) {
	n := 0
	var out []*model.OutboxMessage
	for _, m := range f.queued {
		if m.Status != model.OutboxStatusPending {
			continue
		}
		out = append(out, m)
		n++
		if n == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutboxRepo) MarkSent(_ context.Context, id int64, sentAt time.Time) error {
	for _, m := range f.queued {
		if m.ID == id {
			m.Status = model.OutboxStatusSent
			m.SentAt = &sentAt
			return nil
		}
	}
	return apperrors.NotFound("outbox message not found")
}

func (f *fakeOutboxRepo) MarkFailed(_ context.Context, id int64, _ string) error {
	for _, m := range f.queued {
		if m.ID == id {
			m.Status = model.OutboxStatusFailed
			return nil
		}
	}
	return apperrors.NotFound("outbox message not found")
}

func (f *fakeOutboxRepo) DeleteOldSent(_ context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	var kept []*model.OutboxMessage
	var deleted int64
	for _, m := range f.queued {
		if m.Status == model.OutboxStatusSent && m.SentAt != nil && m.SentAt.Before(cutoff) && deleted < int64(batchSize) {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	f.queued = kept
	return deleted, nil
}
