package data

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tasknest/tasknest/internal/data/pgxutil"
	"github.com/tasknest/tasknest/internal/domain/auth"
	"github.com/tasknest/tasknest/internal/domain/model"
	apperrors "github.com/tasknest/tasknest/internal/errors"
)

// OrgRepo provides database operations for organizations.
type OrgRepo struct {
	DB *sql.DB
}

// NewOrgRepo creates a new OrgRepo.
func NewOrgRepo(db *sql.DB) *OrgRepo {
	return &OrgRepo{DB: db}
}

const orgColumns = `id, name, slug, created_at, updated_at`

// CreateWithOwner inserts the organization, its owner membership, and a
// free-plan subscription in one transaction. A failure in any step leaves no
// partial tenant behind.
func (r *OrgRepo) CreateWithOwner(
	ctx context.Context,
	req *model.CreateOrganizationRequest,
	ownerID string,
) (*model.Organization, error) {
	if req == nil {
		return nil, apperrors.Validation("create organization request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out model.Organization
	err := pgxutil.WithPgxTx(ctx, r.DB, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			INSERT INTO organizations (name, slug)
			VALUES ($1, $2)
			RETURNING `+orgColumns,
			strings.TrimSpace(req.Name),
			strings.TrimSpace(req.Slug),
		)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Organization])
		if err != nil {
			return err
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO memberships (user_id, organization_id, role)
			VALUES ($1, $2, $3)`,
			ownerID, out.ID, auth.RoleOwner,
		); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO subscriptions (organization_id, plan, status)
			VALUES ($1, $2, $3)`,
			out.ID, model.PlanFree, model.SubscriptionStatusActive,
		)
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByID retrieves an organization by ID.
func (r *OrgRepo) GetByID(ctx context.Context, id string) (*model.Organization, error) {
	return r.getByQuery(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id)
}

// GetBySlug retrieves an organization by slug.
func (r *OrgRepo) GetBySlug(ctx context.Context, slug string) (*model.Organization, error) {
	return r.getByQuery(ctx, `SELECT `+orgColumns+` FROM organizations WHERE slug = $1`, slug)
}

// Update renames an organization. Slugs are immutable after creation.
func (r *OrgRepo) Update(
	ctx context.Context,
	id string,
	req model.UpdateOrganizationRequest,
) (*model.Organization, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out model.Organization
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE organizations SET name = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+orgColumns,
			id, strings.TrimSpace(req.Name),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Organization])
		return err
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("organization not found")
		}
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// Delete removes an organization and, through cascades, its memberships,
// todos, invitations, and subscription.
func (r *OrgRepo) Delete(ctx context.Context, id string) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
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

// List retrieves organizations with pagination. Used by global-admin tooling
// only; tenant users see organizations through their memberships.
func (r *OrgRepo) List(ctx context.Context, limit, offset int) ([]*model.Organization, error) {
	if limit <= 0 {
		limit = 50
	}
	offset = max(offset, 0)

	var rowsOut []model.Organization
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+orgColumns+` FROM organizations
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2`, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Organization])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}

	res := make([]*model.Organization, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

func (r *OrgRepo) getByQuery(ctx context.Context, q string, args ...any) (*model.Organization, error) {
	var org model.Organization
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		org, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Organization])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("organization not found")
		}
		return nil, apperrors.MapDBError(err)
	}
	return &org, nil
}
