package data

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/tasknest/tasknest/internal/core"
	"github.com/tasknest/tasknest/internal/data/pgxutil"
	"github.com/tasknest/tasknest/internal/domain/model"
	apperrors "github.com/tasknest/tasknest/internal/errors"
)

// SubscriptionRepo provides database operations for subscriptions. Each
// organization holds exactly one subscription row, created alongside the
// organization itself.
type SubscriptionRepo struct {
	DB *sql.DB
}

// NewSubscriptionRepo creates a new SubscriptionRepo.
func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo {
	return &SubscriptionRepo{DB: db}
}

const subscriptionColumns = `organization_id, plan, status, provider_customer_id, provider_subscription_id, updated_at`

// GetByOrganization retrieves an organization's subscription.
func (r *SubscriptionRepo) GetByOrganization(
	ctx context.Context,
	organizationID string,
) (*model.Subscription, error) {
	var sub model.Subscription
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+subscriptionColumns+` FROM subscriptions WHERE organization_id = $1`,
			organizationID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		sub, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Subscription])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("subscription not found")
		}
		return nil, apperrors.MapDBError(err)
	}
	return &sub, nil
}

// Upsert writes the subscription state reported by the billing provider.
func (r *SubscriptionRepo) Upsert(
	ctx context.Context,
	params core.UpsertSubscriptionParams,
) (*model.Subscription, error) {
	var out model.Subscription
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO subscriptions (organization_id, plan, status, provider_customer_id, provider_subscription_id, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (organization_id) DO UPDATE SET
				plan = EXCLUDED.plan,
				status = EXCLUDED.status,
				provider_customer_id = COALESCE(EXCLUDED.provider_customer_id, subscriptions.provider_customer_id),
				provider_subscription_id = COALESCE(EXCLUDED.provider_subscription_id, subscriptions.provider_subscription_id),
				updated_at = now()
			RETURNING `+subscriptionColumns,
			params.OrganizationID,
			params.Plan,
			params.Status,
			params.ProviderCustomerID,
			params.ProviderSubscriptionID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Subscription])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// UpdateStatus changes only the subscription status, keeping the plan as-is.
func (r *SubscriptionRepo) UpdateStatus(
	ctx context.Context,
	organizationID, status string,
) (*model.Subscription, error) {
	var out model.Subscription
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE subscriptions SET status = $2, updated_at = now()
			WHERE organization_id = $1
			RETURNING `+subscriptionColumns,
			organizationID, status,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Subscription])
		return err
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("subscription not found")
		}
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}
