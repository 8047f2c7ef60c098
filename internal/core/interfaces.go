package core

import (
	"context"
	"time"

	"github.com/tasknest/tasknest/internal/domain/auth"
	"github.com/tasknest/tasknest/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(ctx context.Context, params CreateUserParams) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	SetAdmin(ctx context.Context, id string, isAdmin bool) (*model.User, error)
	UpdateAvatar(ctx context.Context, params UpdateAvatarParams) error
	GetAvatar(ctx context.Context, id string) ([]byte, string, error)
}

// CreateUserParams groups parameters for UserRepository.Create.
type CreateUserParams struct {
	Email        string
	PasswordHash string
}

// UpdateAvatarParams groups parameters for UserRepository.UpdateAvatar.
type UpdateAvatarParams struct {
	UserID      string
	Data        []byte
	ContentType string
}

// OrganizationRepository defines the interface for organization data operations.
type OrganizationRepository interface {
	// CreateWithOwner inserts the organization, its owner membership, and a
	// free-plan subscription in one transaction.
	CreateWithOwner(ctx context.Context, req *model.CreateOrganizationRequest, ownerID string) (*model.Organization, error)
	GetByID(ctx context.Context, id string) (*model.Organization, error)
	GetBySlug(ctx context.Context, slug string) (*model.Organization, error)
	Update(ctx context.Context, id string, req model.UpdateOrganizationRequest) (*model.Organization, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*model.Organization, error)
}

// MembershipRepository defines the interface for membership data operations.
type MembershipRepository interface {
	Create(ctx context.Context, params CreateMembershipParams) (*model.Membership, error)
	GetWithOrganization(ctx context.Context, userID, organizationID string) (*model.Membership, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Membership, error)
	ListMembers(ctx context.Context, organizationID string, limit, offset int) ([]*model.MemberView, error)
	UpdateRole(ctx context.Context, params UpdateMembershipRoleParams) (*model.Membership, error)
	Delete(ctx context.Context, userID, organizationID string) (bool, error)
	CountByRole(ctx context.Context, organizationID string, role auth.Role) (int, error)
	// TransferOwnership demotes the current owner to admin and promotes the
	// target member to owner in one transaction.
	TransferOwnership(ctx context.Context, params TransferOwnershipParams) error
}

// CreateMembershipParams groups parameters for MembershipRepository.Create.
type CreateMembershipParams struct {
	UserID         string
	OrganizationID string
	Role           auth.Role
}

// UpdateMembershipRoleParams groups parameters for MembershipRepository.UpdateRole.
type UpdateMembershipRoleParams struct {
	UserID         string
	OrganizationID string
	Role           auth.Role
}

// TransferOwnershipParams groups parameters for MembershipRepository.TransferOwnership.
type TransferOwnershipParams struct {
	OrganizationID string
	FromUserID     string
	ToUserID       string
}

// TodoRepository defines the interface for todo data operations.
type TodoRepository interface {
	Create(ctx context.Context, organizationID, authorID string, req *model.CreateTodoRequest) (*model.Todo, error)
	GetByID(ctx context.Context, organizationID, id string) (*model.Todo, error)
	List(ctx context.Context, organizationID string, opts model.TodosListOptions) ([]*model.Todo, error)
	Count(ctx context.Context, organizationID string) (int, error)
	Update(ctx context.Context, organizationID, id string, req model.UpdateTodoRequest) (*model.Todo, error)
	Delete(ctx context.Context, organizationID, id string) (bool, error)
}

// InvitationRepository defines the interface for invitation data operations.
type InvitationRepository interface {
	Create(ctx context.Context, params CreateInvitationParams) (*model.Invitation, error)
	GetByTokenID(ctx context.Context, tokenID string) (*model.Invitation, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*model.Invitation, error)
	// Redeem stamps the invitation accepted and creates the membership in
	// one transaction, so a failed redemption never burns the token. The
	// bool reports whether the invitation was still redeemable.
	Redeem(ctx context.Context, params RedeemInvitationParams) (*model.Membership, bool, error)
	Delete(ctx context.Context, organizationID, id string) (bool, error)
}

// RedeemInvitationParams groups parameters for InvitationRepository.Redeem.
type RedeemInvitationParams struct {
	InvitationID string
	UserID       string
	AcceptedAt   time.Time
}

// CreateInvitationParams groups parameters for InvitationRepository.Create.
type CreateInvitationParams struct {
	OrganizationID string
	Email          string
	Role           auth.Role
	TokenID        string
	InvitedBy      string
	ExpiresAt      time.Time
}

// SubscriptionRepository defines the interface for subscription data operations.
type SubscriptionRepository interface {
	GetByOrganization(ctx context.Context, organizationID string) (*model.Subscription, error)
	Upsert(ctx context.Context, params UpsertSubscriptionParams) (*model.Subscription, error)
	UpdateStatus(ctx context.Context, organizationID, status string) (*model.Subscription, error)
}

// UpsertSubscriptionParams groups parameters for SubscriptionRepository.Upsert.
type UpsertSubscriptionParams struct {
	OrganizationID         string
	Plan                   string
	Status                 string
	ProviderCustomerID     *string
	ProviderSubscriptionID *string
}

// OutboxRepository defines the interface for the transactional mail outbox.
type OutboxRepository interface {
	Enqueue(ctx context.Context, params EnqueueMailParams) (*model.OutboxMessage, error)
	// ReserveBatch claims up to limit pending messages for delivery using
	// FOR UPDATE SKIP LOCKED so concurrent dispatchers never double-send.
	ReserveBatch(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	DeleteOldSent(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}

// EnqueueMailParams groups parameters for OutboxRepository.Enqueue.
type EnqueueMailParams struct {
	ToEmail string
	Subject string
	Body    string
}
