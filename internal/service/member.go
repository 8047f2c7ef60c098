package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tasknest/tasknest/internal/core"
	"github.com/tasknest/tasknest/internal/domain/auth"
	"github.com/tasknest/tasknest/internal/domain/model"
	apperrors "github.com/tasknest/tasknest/internal/errors"
)

const inviteTokenIssuer = "tasknest"

// inviteClaims is the payload of a signed invitation-acceptance token. The
// JWT ID (jti) ties the token to its invitation row, so a token is
// redeemable at most once no matter how often it is presented.
type inviteClaims struct {
	OrganizationID string `json:"org"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

// MemberServiceOptions groups dependencies for MemberService.
type MemberServiceOptions struct {
	Memberships core.MembershipRepository // Required: membership repository
	Invitations core.InvitationRepository // Required: invitation repository
	Users       core.UserRepository       // Required: user repository
	Orgs        core.OrganizationRepository
	Outbox      *OutboxService // Optional: invitation mail
	Logger      *slog.Logger   // Optional: structured logger

	// TokenSecret signs invitation tokens (HMAC-SHA256). Required.
	TokenSecret []byte
	// InviteTTL bounds how long invitations stay redeemable. Defaults to
	// model.DefaultInvitationTTL.
	InviteTTL time.Duration
	// AcceptBaseURL prefixes the acceptance link in invitation mail, e.g.
	// "https://app.example.com/invitations/accept".
	AcceptBaseURL string
}

// MemberService manages organization membership: invitations, role changes,
// ownership transfer, removal.
type MemberService struct {
	memberships core.MembershipRepository
	invitations core.InvitationRepository
	users       core.UserRepository
	orgs        core.OrganizationRepository
	outbox      *OutboxService
	logger      *slog.Logger

	tokenSecret   []byte
	inviteTTL     time.Duration
	acceptBaseURL string

	now func() time.Time
}

// NewMemberService constructs a new MemberService.
func NewMemberService(opts MemberServiceOptions) (*MemberService, error) {
	if opts.Memberships == nil {
		return nil, errors.New("MembershipRepository is required")
	}
	if opts.Invitations == nil {
		return nil, errors.New("InvitationRepository is required")
	}
	if opts.Users == nil {
		return nil, errors.New("UserRepository is required")
	}
	if len(opts.TokenSecret) == 0 {
		return nil, errors.New("invitation token secret is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.InviteTTL
	if ttl <= 0 {
		ttl = model.DefaultInvitationTTL
	}

	return &MemberService{
		memberships:   opts.Memberships,
		invitations:   opts.Invitations,
		users:         opts.Users,
		orgs:          opts.Orgs,
		outbox:        opts.Outbox,
		logger:        logger.With("component", "member_service"),
		tokenSecret:   opts.TokenSecret,
		inviteTTL:     ttl,
		acceptBaseURL: strings.TrimRight(opts.AcceptBaseURL, "/"),
		now:           time.Now,
	}, nil
}

// ListMembers returns a page of an organization's members, owner first.
func (s *MemberService) ListMembers(ctx context.Context, organizationID string, limit, offset int) ([]*model.MemberView, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.memberships.ListMembers(ctx, organizationID, limit, offset)
}

// ListInvitations returns an organization's invitations, pending and
// accepted.
func (s *MemberService) ListInvitations(ctx context.Context, organizationID string) ([]*model.Invitation, error) {
	return s.invitations.ListByOrganization(ctx, organizationID)
}

// Invite records an invitation and queues its acceptance mail. Returns the
// invitation and the signed token embedded in that mail.
func (s *MemberService) Invite(
	ctx context.Context,
	organizationID, invitedBy string,
	req *model.InviteMemberRequest,
) (*model.Invitation, string, error) {
	if err := req.Validate(); err != nil {
		return nil, "", err
	}
	email := model.NormalizeEmail(req.Email)

	// An existing member needs no invitation.
	if user, err := s.users.GetByEmail(ctx, email); err == nil {
		if _, memberErr := s.memberships.GetWithOrganization(ctx, user.ID, organizationID); memberErr == nil {
			return nil, "", apperrors.Conflict("This user is already a member of the organization.")
		}
	} else if !apperrors.IsNotFound(err) {
		return nil, "", err
	}

	tokenID := uuid.NewString()
	expiresAt := s.now().Add(s.inviteTTL)

	inv, err := s.invitations.Create(ctx, core.CreateInvitationParams{
		OrganizationID: organizationID,
		Email:          email,
		Role:           req.Role,
		TokenID:        tokenID,
		InvitedBy:      invitedBy,
		ExpiresAt:      expiresAt,
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.signInviteToken(inv)
	if err != nil {
		return nil, "", err
	}

	if s.outbox != nil {
		subject, body := s.inviteMail(ctx, inv, token)
		if _, mailErr := s.outbox.Enqueue(ctx, email, subject, body); mailErr != nil {
			s.logger.WarnContext(ctx, "failed to queue invitation mail",
				"invitation_id", inv.ID, "error", mailErr)
		}
	}

	s.logger.InfoContext(ctx, "member invited",
		"organization_id", organizationID, "role", inv.Role, "invited_by", invitedBy)
	return inv, token, nil
}

// Accept redeems an invitation token for the signed-in user. The token's
// email must match the caller's account email.
func (s *MemberService) Accept(ctx context.Context, userID, userEmail, token string) (*model.Membership, error) {
	claims, err := s.parseInviteToken(token)
	if err != nil {
		return nil, err
	}

	inv, err := s.invitations.GetByTokenID(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !inv.Redeemable(now) {
		return nil, apperrors.Conflict("This invitation has expired or was already used.")
	}
	if model.NormalizeEmail(userEmail) != inv.Email {
		return nil, apperrors.Forbidden("This invitation was issued to a different email address.")
	}

	membership, ok, err := s.invitations.Redeem(ctx, core.RedeemInvitationParams{
		InvitationID: inv.ID,
		UserID:       userID,
		AcceptedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.Conflict("This invitation has expired or was already used.")
	}

	s.logger.InfoContext(ctx, "invitation accepted",
		"organization_id", inv.OrganizationID, "user_id", userID, "role", inv.Role)
	return membership, nil
}

// ChangeRole sets a member's role to admin or member. Ownership moves only
// through TransferOwnership, and the owner's own role is immutable here.
func (s *MemberService) ChangeRole(
	ctx context.Context,
	organizationID, targetUserID string,
	newRole auth.Role,
) (*model.Membership, error) {
	switch newRole {
	case auth.RoleAdmin, auth.RoleMember:
	case auth.RoleOwner:
		return nil, apperrors.ValidationField("role", "Ownership is granted by transfer, not role change.")
	default:
		return nil, apperrors.ValidationField("role", "Role must be admin or member.")
	}

	target, err := s.memberships.GetWithOrganization(ctx, targetUserID, organizationID)
	if err != nil {
		return nil, err
	}
	if target.Role == auth.RoleOwner {
		return nil, apperrors.Forbidden("The owner's role cannot be changed.")
	}

	return s.memberships.UpdateRole(ctx, core.UpdateMembershipRoleParams{
		UserID:         targetUserID,
		OrganizationID: organizationID,
		Role:           newRole,
	})
}

// TransferOwnership demotes the current owner to admin and promotes the
// target member to owner, atomically.
func (s *MemberService) TransferOwnership(ctx context.Context, organizationID, fromUserID, toUserID string) error {
	if fromUserID == toUserID {
		return apperrors.ValidationField("to_user_id", "Ownership is already held by this user.")
	}
	if _, err := s.memberships.GetWithOrganization(ctx, toUserID, organizationID); err != nil {
		return err
	}
	if err := s.memberships.TransferOwnership(ctx, core.TransferOwnershipParams{
		OrganizationID: organizationID,
		FromUserID:     fromUserID,
		ToUserID:       toUserID,
	}); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "ownership transferred",
		"organization_id", organizationID, "from", fromUserID, "to", toUserID)
	return nil
}

// Remove deletes a member from the organization. The owner cannot be
// removed; ownership must be transferred first.
func (s *MemberService) Remove(ctx context.Context, organizationID, targetUserID string) error {
	target, err := s.memberships.GetWithOrganization(ctx, targetUserID, organizationID)
	if err != nil {
		return err
	}
	if target.Role == auth.RoleOwner {
		return apperrors.Forbidden("The owner cannot be removed. Transfer ownership first.")
	}
	_, err = s.memberships.Delete(ctx, targetUserID, organizationID)
	return err
}

// Leave removes the caller's own membership. Owners must transfer
// ownership before leaving.
func (s *MemberService) Leave(ctx context.Context, organizationID, userID string) error {
	m, err := s.memberships.GetWithOrganization(ctx, userID, organizationID)
	if err != nil {
		return err
	}
	if m.Role == auth.RoleOwner {
		return apperrors.Forbidden("The owner cannot leave the organization. Transfer ownership first.")
	}
	_, err = s.memberships.Delete(ctx, userID, organizationID)
	return err
}

// RevokeInvitation deletes a pending invitation.
func (s *MemberService) RevokeInvitation(ctx context.Context, organizationID, invitationID string) error {
	ok, err := s.invitations.Delete(ctx, organizationID, invitationID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFound("invitation not found")
	}
	return nil
}

func (s *MemberService) signInviteToken(inv *model.Invitation) (string, error) {
	claims := inviteClaims{
		OrganizationID: inv.OrganizationID,
		Role:           string(inv.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        inv.TokenID,
			Subject:   inv.Email,
			Issuer:    inviteTokenIssuer,
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(inv.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.tokenSecret)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to sign invitation token")
	}
	return token, nil
}

func (s *MemberService) parseInviteToken(token string) (*inviteClaims, error) {
	claims := &inviteClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return s.tokenSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(inviteTokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.ID == "" {
		return nil, apperrors.Unauthorized("Invitation token is invalid or expired")
	}
	return claims, nil
}

func (s *MemberService) inviteMail(ctx context.Context, inv *model.Invitation, token string) (subject, body string) {
	orgName := "an organization"
	if s.orgs != nil {
		if org, err := s.orgs.GetByID(ctx, inv.OrganizationID); err == nil {
			orgName = org.Name
		}
	}
	subject = fmt.Sprintf("You have been invited to join %s on Tasknest", orgName)
	link := token
	if s.acceptBaseURL != "" {
		link = s.acceptBaseURL + "?token=" + token
	}
	body = fmt.Sprintf(
		"You have been invited to join %s as %s.\n\nAccept the invitation: %s\n\nThis invitation expires on %s.",
		orgName, inv.Role, link, inv.ExpiresAt.Format(time.RFC1123),
	)
	return subject, body
}
