package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/net/publicsuffix"

	"github.com/tasknest/tasknest/internal/core"
	"github.com/tasknest/tasknest/internal/domain/auth"
	"github.com/tasknest/tasknest/internal/domain/model"
	apperrors "github.com/tasknest/tasknest/internal/errors"
	"github.com/tasknest/tasknest/internal/ports"
)

const defaultSessionTTL = 24 * time.Hour

// invalidCredentialsMsg is shared by the missing-user and wrong-password
// paths so responses do not reveal which one failed.
const invalidCredentialsMsg = "Invalid email or password."

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Users       core.UserRepository       // Required: user repository
	Memberships core.MembershipRepository // Required: membership repository
	Sessions    ports.SessionStore        // Required: session store
	Outbox      *OutboxService            // Optional: welcome mail
	Provider    ports.AuthProvider        // Optional: SSO sign-in mode
	Logger      *slog.Logger              // Optional: structured logger

	// SessionTTL bounds session lifetime. Defaults to 24h.
	SessionTTL time.Duration
	// BcryptCost for password hashing. Defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// AuthService handles account creation and session lifecycle.
type AuthService struct {
	users       core.UserRepository
	memberships core.MembershipRepository
	sessions    ports.SessionStore
	outbox      *OutboxService
	provider    ports.AuthProvider
	logger      *slog.Logger
	sessionTTL  time.Duration
	bcryptCost  int

	now func() time.Time
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Users == nil {
		return nil, errors.New("UserRepository is required")
	}
	if opts.Memberships == nil {
		return nil, errors.New("MembershipRepository is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("SessionStore is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	cost := opts.BcryptCost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}

	return &AuthService{
		users:       opts.Users,
		memberships: opts.Memberships,
		sessions:    opts.Sessions,
		outbox:      opts.Outbox,
		provider:    opts.Provider,
		logger:      logger.With("component", "auth_service"),
		sessionTTL:  ttl,
		bcryptCost:  cost,
		now:         time.Now,
	}, nil
}

// Signup creates a new account. The email must carry a registrable domain;
// addresses like user@localhost or user@com are rejected.
func (s *AuthService) Signup(ctx context.Context, req *model.SignupRequest) (*model.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	email := model.NormalizeEmail(req.Email)
	if err := validateEmailDomain(email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to hash password")
	}

	user, err := s.users.Create(ctx, core.CreateUserParams{
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, err
	}

	if s.outbox != nil {
		if _, mailErr := s.outbox.Enqueue(ctx, user.Email,
			"Welcome to Tasknest",
			"Your account is ready. Create an organization to start adding todos.",
		); mailErr != nil {
			s.logger.WarnContext(ctx, "failed to queue welcome mail", "user_id", user.ID, "error", mailErr)
		}
	}

	return user, nil
}

// Signin verifies credentials and starts a session.
func (s *AuthService) Signin(ctx context.Context, email, password string) (auth.SessionData, error) {
	user, err := s.users.GetByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return auth.SessionData{}, apperrors.Unauthorized(invalidCredentialsMsg)
		}
		return auth.SessionData{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return auth.SessionData{}, apperrors.Unauthorized(invalidCredentialsMsg)
	}

	return s.startSession(ctx, user, s.now().Add(s.sessionTTL))
}

// Signout deletes the session. Unknown session IDs are a no-op.
func (s *AuthService) Signout(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// GetSession loads a session by ID.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (auth.SessionData, error) {
	return s.sessions.Get(ctx, sessionID)
}

// Me returns the account behind a session's user snapshot.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// SwitchOrganization rewrites the session's active tenant. Members may only
// select organizations they belong to; global admins may select any. An
// empty organizationID clears the selection.
func (s *AuthService) SwitchOrganization(
	ctx context.Context,
	sess auth.SessionData,
	organizationID string,
) (auth.SessionData, error) {
	if organizationID != "" && !sess.User.IsAdmin {
		_, err := s.memberships.GetWithOrganization(ctx, sess.UserID, organizationID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return auth.SessionData{}, apperrors.Forbidden("You are not a member of this organization")
			}
			return auth.SessionData{}, err
		}
	}

	sess.CurrentOrgID = organizationID
	if err := s.sessions.Save(ctx, sess); err != nil {
		return auth.SessionData{}, err
	}
	return sess, nil
}

// BeginSSO starts the SSO login flow. Fails when no provider is configured.
func (s *AuthService) BeginSSO(ctx context.Context, redirectURL string) (authURL, state, nonce string, err error) {
	if s.provider == nil {
		return "", "", "", apperrors.NotFound("SSO sign-in is not enabled")
	}
	return s.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
}

// CompleteSSO finishes the SSO flow: exchanges the code, finds or creates
// the account for the asserted email, and starts a session capped at the
// IdP token expiry.
func (s *AuthService) CompleteSSO(ctx context.Context, in ports.ExchangeInput) (auth.SessionData, error) {
	if s.provider == nil {
		return auth.SessionData{}, apperrors.NotFound("SSO sign-in is not enabled")
	}

	identity, err := s.provider.Exchange(ctx, in)
	if err != nil {
		return auth.SessionData{}, err
	}
	email := model.NormalizeEmail(identity.Email)
	if email == "" {
		return auth.SessionData{}, apperrors.Unauthorized("Identity provider returned no email")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if apperrors.IsNotFound(err) {
		user, err = s.createSSOUser(ctx, email)
	}
	if err != nil {
		return auth.SessionData{}, err
	}

	expiresAt := s.now().Add(s.sessionTTL)
	if !identity.ExpiresAt.IsZero() && identity.ExpiresAt.Before(expiresAt) {
		expiresAt = identity.ExpiresAt
	}
	return s.startSession(ctx, user, expiresAt)
}

// createSSOUser provisions an account for a first-time SSO login. The
// password hash is derived from a random value the user never sees, so
// password sign-in stays impossible until a reset flow sets one.
func (s *AuthService) createSSOUser(ctx context.Context, email string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.bcryptCost)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to hash placeholder password")
	}
	return s.users.Create(ctx, core.CreateUserParams{
		Email:        email,
		PasswordHash: string(hash),
	})
}

func (s *AuthService) startSession(ctx context.Context, user *model.User, expiresAt time.Time) (auth.SessionData, error) {
	sess := auth.SessionData{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: expiresAt,
		User: auth.UserSnapshot{
			ID:      user.ID,
			Email:   user.Email,
			IsAdmin: user.IsAdmin,
		},
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return auth.SessionData{}, err
	}
	s.logger.InfoContext(ctx, "session started", "user_id", user.ID)
	return sess, nil
}

// validateEmailDomain requires the address's host to be a registrable
// domain under a known public suffix.
func validateEmailDomain(email string) error {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return apperrors.ValidationField("email", "Email is not a valid address.")
	}
	host := email[at+1:]
	if _, err := publicsuffix.EffectiveTLDPlusOne(host); err != nil {
		return apperrors.ValidationField("email", "Email domain is not recognized.")
	}
	return nil
}
