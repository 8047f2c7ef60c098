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

// MembershipRepo provides database operations for organization memberships.
type MembershipRepo struct {
	DB *sql.DB
}

// NewMembershipRepo creates a new MembershipRepo.
func NewMembershipRepo(db *sql.DB) *MembershipRepo {
	return &MembershipRepo{DB: db}
}

const membershipColumns = `id, user_id, organization_id, role, created_at`

// Create inserts a membership for a (user, organization) pair.
func (r *MembershipRepo) Create(
	ctx context.Context,
	params core.CreateMembershipParams,
) (*model.Membership, error) {
	var out model.Membership
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO memberships (user_id, organization_id, role)
			VALUES ($1, $2, $3)
			RETURNING `+membershipColumns,
			params.UserID, params.OrganizationID, params.Role,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Membership])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetWithOrganization retrieves a membership together with its parent
// organization. This is the lookup the org-context middleware performs on
// every tenant-scoped request.
func (r *MembershipRepo) GetWithOrganization(
	ctx context.Context,
	userID, organizationID string,
) (*model.Membership, error) {
	var (
		m   model.Membership
		org model.Organization
	)
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT m.id, m.user_id, m.organization_id, m.role, m.created_at,
			       o.id, o.name, o.slug, o.created_at, o.updated_at
			FROM memberships m
			JOIN organizations o ON o.id = m.organization_id
			WHERE m.user_id = $1 AND m.organization_id = $2`,
			userID, organizationID,
		).Scan(
			&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt,
			&org.ID, &org.Name, &org.Slug, &org.CreatedAt, &org.UpdatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("membership not found")
		}
		return nil, apperrors.MapDBError(err)
	}
	m.Organization = &org
	return &m, nil
}

// ListByUser retrieves all memberships of a user with the parent
// organizations populated, newest first.
func (r *MembershipRepo) ListByUser(ctx context.Context, userID string) ([]*model.Membership, error) {
	var res []*model.Membership
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT m.id, m.user_id, m.organization_id, m.role, m.created_at,
			       o.id, o.name, o.slug, o.created_at, o.updated_at
			FROM memberships m
			JOIN organizations o ON o.id = m.organization_id
			WHERE m.user_id = $1
			ORDER BY m.created_at DESC`,
			userID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				m   model.Membership
				org model.Organization
			)
			if err := rows.Scan(
				&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt,
				&org.ID, &org.Name, &org.Slug, &org.CreatedAt, &org.UpdatedAt,
			); err != nil {
				return err
			}
			m.Organization = &org
			res = append(res, &m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return res, nil
}

// ListMembers retrieves the members of an organization joined with their
// user emails, owner first, then by join time.
func (r *MembershipRepo) ListMembers(
	ctx context.Context,
	organizationID string,
	limit, offset int,
) ([]*model.MemberView, error) {
	if limit <= 0 {
		limit = 50
	}
	offset = max(offset, 0)

	var rowsOut []model.MemberView
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT m.id, m.user_id, u.email, m.role, m.created_at
			FROM memberships m
			JOIN users u ON u.id = m.user_id
			WHERE m.organization_id = $1
			ORDER BY CASE m.role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END, m.created_at
			LIMIT $2 OFFSET $3`,
			organizationID, limit, offset,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.MemberView])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}

	res := make([]*model.MemberView, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// UpdateRole changes a member's role within an organization.
func (r *MembershipRepo) UpdateRole(
	ctx context.Context,
	params core.UpdateMembershipRoleParams,
) (*model.Membership, error) {
	var out model.Membership
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE memberships SET role = $3
			WHERE user_id = $1 AND organization_id = $2
			RETURNING `+membershipColumns,
			params.UserID, params.OrganizationID, params.Role,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Membership])
		return err
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("membership not found")
		}
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// Delete removes a member from an organization.
func (r *MembershipRepo) Delete(ctx context.Context, userID, organizationID string) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx,
			`DELETE FROM memberships WHERE user_id = $1 AND organization_id = $2`,
			userID, organizationID,
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

// CountByRole counts members of an organization holding a role.
func (r *MembershipRepo) CountByRole(
	ctx context.Context,
	organizationID string,
	role auth.Role,
) (int, error) {
	var count int
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx,
			`SELECT COUNT(*) FROM memberships WHERE organization_id = $1 AND role = $2`,
			organizationID, role,
		).Scan(&count)
	})
	if err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return count, nil
}

// TransferOwnership demotes the current owner to admin and promotes the
// target member to owner in one transaction, preserving the one-owner
// invariant at every commit point.
func (r *MembershipRepo) TransferOwnership(
	ctx context.Context,
	params core.TransferOwnershipParams,
) error {
	err := pgxutil.WithPgxTx(ctx, r.DB, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
			UPDATE memberships SET role = $3
			WHERE user_id = $1 AND organization_id = $2 AND role = $4`,
			params.FromUserID, params.OrganizationID, auth.RoleAdmin, auth.RoleOwner,
		)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return apperrors.Conflict("ownership has changed, retry the transfer")
		}
		ct, err = tx.Exec(ctx, `
			UPDATE memberships SET role = $3
			WHERE user_id = $1 AND organization_id = $2`,
			params.ToUserID, params.OrganizationID, auth.RoleOwner,
		)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return apperrors.NotFound("membership not found")
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return apperrors.MapDBError(err)
	}
	return nil
}

