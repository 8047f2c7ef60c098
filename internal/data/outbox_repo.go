package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tasknest/tasknest/internal/core"
	"github.com/tasknest/tasknest/internal/data/pgxutil"
	"github.com/tasknest/tasknest/internal/domain/model"
	apperrors "github.com/tasknest/tasknest/internal/errors"
)

// OutboxRepo provides database operations for the transactional mail outbox.
type OutboxRepo struct {
	DB *sql.DB
}

// NewOutboxRepo creates a new OutboxRepo.
func NewOutboxRepo(db *sql.DB) *OutboxRepo {
	return &OutboxRepo{DB: db}
}

const outboxColumns = `id, to_email, subject, body, status, attempts, created_at, sent_at`

// Enqueue inserts a pending message for the dispatcher to deliver.
func (r *OutboxRepo) Enqueue(
	ctx context.Context,
	params core.EnqueueMailParams,
) (*model.OutboxMessage, error) {
	var out model.OutboxMessage
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO mail_outbox (to_email, subject, body)
			VALUES ($1, $2, $3)
			RETURNING `+outboxColumns,
			params.ToEmail, params.Subject, params.Body,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.OutboxMessage])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// ReserveBatch claims up to limit pending messages oldest-first. FOR UPDATE
// SKIP LOCKED lets concurrent dispatchers divide the backlog without
// double-sends; the attempt counter is bumped at claim time so a crashed
// dispatcher still leaves a trace.
func (r *OutboxRepo) ReserveBatch(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	if limit <= 0 {
		limit = 20
	}

	var rowsOut []model.OutboxMessage
	err := pgxutil.WithPgxTx(ctx, r.DB, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			UPDATE mail_outbox SET attempts = attempts + 1
			WHERE id IN (
				SELECT id FROM mail_outbox
				WHERE status = 'pending'
				ORDER BY created_at
				LIMIT $1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING `+outboxColumns,
			limit,
		)
		if err != nil {
			return err
		}
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.OutboxMessage])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}

	res := make([]*model.OutboxMessage, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// MarkSent records a successful delivery.
func (r *OutboxRepo) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx,
			`UPDATE mail_outbox SET status = 'sent', sent_at = $2 WHERE id = $1`,
			id, sentAt,
		)
		return err
	})
	return apperrors.MapDBError(err)
}

// MarkFailed returns a message to pending for retry, or parks it as failed
// once it has exhausted its attempts. The error text overwrites nothing;
// delivery errors are logged by the dispatcher.
func (r *OutboxRepo) MarkFailed(ctx context.Context, id int64, _ string) error {
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			UPDATE mail_outbox
			SET status = CASE WHEN attempts >= 5 THEN 'failed' ELSE 'pending' END
			WHERE id = $1`,
			id,
		)
		return err
	})
	return apperrors.MapDBError(err)
}

// DeleteOldSent prunes delivered messages older than maxAge, up to batchSize
// rows per call to keep lock times short.
func (r *OutboxRepo) DeleteOldSent(
	ctx context.Context,
	maxAge time.Duration,
	batchSize int,
) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	cutoff := time.Now().Add(-maxAge)

	var deleted int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `
			DELETE FROM mail_outbox
			WHERE id IN (
				SELECT id FROM mail_outbox
				WHERE status = 'sent' AND sent_at < $1
				LIMIT $2
			)`,
			cutoff, batchSize,
		)
		if err != nil {
			return err
		}
		deleted = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return deleted, nil
}
