package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasknest/tasknest/internal/domain/auth"
	apperrors "github.com/tasknest/tasknest/internal/errors"
)

func TestSignupRequestValidate(t *testing.T) {
	tests := []struct {
		name      string
		req       SignupRequest
		wantField string
	}{
		{"valid", SignupRequest{Email: "a@example.com", Password: "longenough"}, ""},
		{"missing email", SignupRequest{Password: "longenough"}, "email"},
		{"bad email", SignupRequest{Email: "not-an-email", Password: "longenough"}, "email"},
		{"short password", SignupRequest{Email: "a@example.com", Password: "short"}, "password"},
		{"long email", SignupRequest{Email: strings.Repeat("a", 250) + "@example.com", Password: "longenough"}, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.wantField, apperrors.GetField(err))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@example.com", NormalizeEmail("  A@Example.COM "))
}

func TestCreateOrganizationRequestValidate(t *testing.T) {
	valid := CreateOrganizationRequest{Name: "Acme", Slug: "acme-inc"}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		req  CreateOrganizationRequest
	}{
		{"missing name", CreateOrganizationRequest{Slug: "acme"}},
		{"missing slug", CreateOrganizationRequest{Name: "Acme"}},
		{"uppercase slug", CreateOrganizationRequest{Name: "Acme", Slug: "Acme"}},
		{"leading hyphen", CreateOrganizationRequest{Name: "Acme", Slug: "-acme"}},
		{"trailing hyphen", CreateOrganizationRequest{Name: "Acme", Slug: "acme-"}},
		{"spaces in slug", CreateOrganizationRequest{Name: "Acme", Slug: "acme inc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, apperrors.IsValidation(tt.req.Validate()))
		})
	}
}

func TestTodoRequestValidate(t *testing.T) {
	assert.NoError(t, (&CreateTodoRequest{Title: "buy milk"}).Validate())
	assert.True(t, apperrors.IsValidation((&CreateTodoRequest{Title: "  "}).Validate()))
	assert.True(t, apperrors.IsValidation((&CreateTodoRequest{Title: strings.Repeat("x", 300)}).Validate()))
	assert.True(t, apperrors.IsValidation((&UpdateTodoRequest{Title: "ok", Body: strings.Repeat("x", 10001)}).Validate()))
}

func TestInviteMemberRequestValidate(t *testing.T) {
	assert.NoError(t, (&InviteMemberRequest{Email: "b@example.com", Role: auth.RoleMember}).Validate())
	assert.NoError(t, (&InviteMemberRequest{Email: "b@example.com", Role: auth.RoleAdmin}).Validate())

	err := (&InviteMemberRequest{Email: "b@example.com", Role: auth.RoleOwner}).Validate()
	require.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "role", apperrors.GetField(err))

	assert.True(t, apperrors.IsValidation((&InviteMemberRequest{Email: "", Role: auth.RoleMember}).Validate()))
	assert.True(t, apperrors.IsValidation((&InviteMemberRequest{Email: "b@example.com", Role: "viewer"}).Validate()))
}

func TestInvitationRedeemable(t *testing.T) {
	now := time.Now()
	inv := Invitation{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, inv.Redeemable(now))
	assert.False(t, inv.Redeemable(now.Add(2*time.Hour)))

	accepted := now
	inv.AcceptedAt = &accepted
	assert.False(t, inv.Redeemable(now))
}

func TestParsePlan(t *testing.T) {
	name, ok := ParsePlan(" Pro ")
	assert.True(t, ok)
	assert.Equal(t, PlanPro, name)

	_, ok = ParsePlan("platinum")
	assert.False(t, ok)
}

func TestPlanUnlimited(t *testing.T) {
	plans := DefaultPlans()
	assert.False(t, plans[PlanFree].Unlimited())
	assert.True(t, plans[PlanUnlimited].Unlimited())
}

func TestSubscriptionActive(t *testing.T) {
	assert.True(t, Subscription{Status: SubscriptionStatusActive}.Active())
	assert.False(t, Subscription{Status: SubscriptionStatusCanceled}.Active())
	assert.False(t, Subscription{Status: SubscriptionStatusPastDue}.Active())
}
