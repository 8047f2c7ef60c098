package data

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/tasknest/tasknest/internal/core"
	"github.com/tasknest/tasknest/internal/data/pgxutil"
	"github.com/tasknest/tasknest/internal/domain/auth"
	"github.com/tasknest/tasknest/internal/domain/model"
	apperrors "github.com/tasknest/tasknest/internal/errors"
)

// InvitationRepo provides database operations for membership invitations.
type InvitationRepo struct {
	DB *sql.DB
}

// NewInvitationRepo creates a new InvitationRepo.
func NewInvitationRepo(db *sql.DB) *InvitationRepo {
	return &InvitationRepo{DB: db}
}

const invitationColumns = `id, organization_id, email, role, token_id, invited_by, expires_at, accepted_at, created_at`

// Create inserts an invitation.
func (r *InvitationRepo) Create(
	ctx context.Context,
	params core.CreateInvitationParams,
) (*model.Invitation, error) {
	var out model.Invitation
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO invitations (organization_id, email, role, token_id, invited_by, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+invitationColumns,
			params.OrganizationID,
			params.Email,
			params.Role,
			params.TokenID,
			params.InvitedBy,
			params.ExpiresAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Invitation])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByTokenID retrieves an invitation by the ID embedded in its acceptance
// token.
func (r *InvitationRepo) GetByTokenID(ctx context.Context, tokenID string) (*model.Invitation, error) {
	var inv model.Invitation
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+invitationColumns+` FROM invitations WHERE token_id = $1`, tokenID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		inv, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Invitation])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("invitation not found")
		}
		return nil, apperrors.MapDBError(err)
	}
	return &inv, nil
}

// ListByOrganization retrieves an organization's invitations, newest first.
func (r *InvitationRepo) ListByOrganization(
	ctx context.Context,
	organizationID string,
) ([]*model.Invitation, error) {
	var rowsOut []model.Invitation
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+invitationColumns+` FROM invitations
			WHERE organization_id = $1
			ORDER BY created_at DESC`,
			organizationID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Invitation])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}

	res := make([]*model.Invitation, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// Redeem stamps an invitation as accepted and inserts the resulting
// membership in a single transaction. An invitation redeems at most once;
// if the membership insert fails the acceptance mark rolls back with it,
// so the token stays redeemable. Returns false when the invitation was
// already accepted.
func (r *InvitationRepo) Redeem(
	ctx context.Context,
	params core.RedeemInvitationParams,
) (*model.Membership, bool, error) {
	var (
		out      model.Membership
		redeemed bool
	)
	err := pgxutil.WithPgxTx(ctx, r.DB, func(tx pgx.Tx) error {
		var (
			organizationID string
			role           auth.Role
		)
		err := tx.QueryRow(ctx, `
			UPDATE invitations SET accepted_at = $2
			WHERE id = $1 AND accepted_at IS NULL
			RETURNING organization_id, role`,
			params.InvitationID, params.AcceptedAt,
		).Scan(&organizationID, &role)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		rows, err := tx.Query(ctx, `
			INSERT INTO memberships (user_id, organization_id, role)
			VALUES ($1, $2, $3)
			RETURNING `+membershipColumns,
			params.UserID, organizationID, role,
		)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Membership])
		if err != nil {
			return err
		}
		redeemed = true
		return nil
	})
	if err != nil {
		return nil, false, apperrors.MapDBError(err)
	}
	if !redeemed {
		return nil, false, nil
	}
	return &out, true, nil
}

// Delete revokes a pending invitation within an organization.
func (r *InvitationRepo) Delete(ctx context.Context, organizationID, id string) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx,
			`DELETE FROM invitations WHERE organization_id = $1 AND id = $2`,
			organizationID, id,
		)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, apperrors.MapDBError(err)
	}
	return rows > 0, nil
}
