package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tasknest/tasknest/internal/core"
	"github.com/tasknest/tasknest/internal/domain/model"
)

// OrgServiceOptions groups dependencies for OrgService.
type OrgServiceOptions struct {
	Orgs        core.OrganizationRepository // Required: organization repository
	Memberships core.MembershipRepository   // Required: membership repository
	Logger      *slog.Logger                // Optional: structured logger
}

// OrgService orchestrates organization lifecycle. Role checks beyond what
// the data layer enforces happen in the request chain, not here.
type OrgService struct {
	orgs        core.OrganizationRepository
	memberships core.MembershipRepository
	logger      *slog.Logger
}

// NewOrgService constructs a new OrgService.
func NewOrgService(opts OrgServiceOptions) (*OrgService, error) {
	if opts.Orgs == nil {
		return nil, errors.New("OrganizationRepository is required")
	}
	if opts.Memberships == nil {
		return nil, errors.New("MembershipRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OrgService{
		orgs:        opts.Orgs,
		memberships: opts.Memberships,
		logger:      logger.With("component", "org_service"),
	}, nil
}

// Create creates an organization with the caller as its owner. The owner
// membership and free subscription land in the same transaction as the
// organization row.
func (s *OrgService) Create(ctx context.Context, ownerID string, req *model.CreateOrganizationRequest) (*model.Organization, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	org, err := s.orgs.CreateWithOwner(ctx, req, ownerID)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "organization created", "organization_id", org.ID, "owner_id", ownerID)
	return org, nil
}

// GetByID retrieves an organization.
func (s *OrgService) GetByID(ctx context.Context, id string) (*model.Organization, error) {
	return s.orgs.GetByID(ctx, id)
}

// Update renames an organization. Slugs are immutable.
func (s *OrgService) Update(ctx context.Context, id string, req model.UpdateOrganizationRequest) (*model.Organization, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.orgs.Update(ctx, id, req)
}

// Delete removes an organization and, by cascade, its memberships, todos,
// invitations, and subscription.
func (s *OrgService) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := s.orgs.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		s.logger.InfoContext(ctx, "organization deleted", "organization_id", id)
	}
	return ok, nil
}

// ListMine returns the caller's memberships with their organizations
// populated.
func (s *OrgService) ListMine(ctx context.Context, userID string) ([]*model.Membership, error) {
	return s.memberships.ListByUser(ctx, userID)
}

// List returns a page of all organizations. Reserved for global admins.
func (s *OrgService) List(ctx context.Context, limit, offset int) ([]*model.Organization, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.orgs.List(ctx, limit, offset)
}
