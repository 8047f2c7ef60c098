package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tasknest/tasknest/internal/data/pgxutil"
	"github.com/tasknest/tasknest/internal/domain/model"
	apperrors "github.com/tasknest/tasknest/internal/errors"
)

// TodoRepo provides database operations for todos. Every query is scoped by
// organization_id; there is deliberately no way to address a todo without
// naming its tenant.
type TodoRepo struct {
	DB *sql.DB
}

// NewTodoRepo creates a new TodoRepo.
func NewTodoRepo(db *sql.DB) *TodoRepo {
	return &TodoRepo{DB: db}
}

const todoColumns = `id, organization_id, author_id, title, body, done, created_at, updated_at`

// Create inserts a todo into an organization.
func (r *TodoRepo) Create(
	ctx context.Context,
	organizationID, authorID string,
	req *model.CreateTodoRequest,
) (*model.Todo, error) {
	if req == nil {
		return nil, apperrors.Validation("create todo request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out model.Todo
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO todos (organization_id, author_id, title, body)
			VALUES ($1, $2, $3, $4)
			RETURNING `+todoColumns,
			organizationID, authorID, strings.TrimSpace(req.Title), req.Body,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Todo])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByID retrieves a todo by ID within an organization.
func (r *TodoRepo) GetByID(ctx context.Context, organizationID, id string) (*model.Todo, error) {
	var todo model.Todo
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+todoColumns+` FROM todos WHERE organization_id = $1 AND id = $2`,
			organizationID, id,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		todo, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Todo])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("todo not found")
		}
		return nil, apperrors.MapDBError(err)
	}
	return &todo, nil
}

// List retrieves an organization's todos with paging and an optional
// completion filter, newest first.
func (r *TodoRepo) List(
	ctx context.Context,
	organizationID string,
	opts model.TodosListOptions,
) ([]*model.Todo, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := max(opts.Offset, 0)

	query := `SELECT ` + todoColumns + ` FROM todos WHERE organization_id = $1`
	args := []any{organizationID}
	if opts.Done != nil {
		args = append(args, *opts.Done)
		query += fmt.Sprintf(" AND done = $%d", len(args))
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var rowsOut []model.Todo
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Todo])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}

	res := make([]*model.Todo, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// Count returns the number of todos an organization currently holds. Plan
// limits are enforced against this count.
func (r *TodoRepo) Count(ctx context.Context, organizationID string) (int, error) {
	var count int
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx,
			`SELECT COUNT(*) FROM todos WHERE organization_id = $1`, organizationID,
		).Scan(&count)
	})
	if err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return count, nil
}

// Update replaces a todo's content and optionally its completion state.
func (r *TodoRepo) Update(
	ctx context.Context,
	organizationID, id string,
	req model.UpdateTodoRequest,
) (*model.Todo, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	setClause := `title = $3, body = $4, updated_at = now()`
	args := []any{organizationID, id, strings.TrimSpace(req.Title), req.Body}
	if req.Done != nil {
		args = append(args, *req.Done)
		setClause += fmt.Sprintf(", done = $%d", len(args))
	}

	var out model.Todo
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE todos SET `+setClause+`
			WHERE organization_id = $1 AND id = $2
			RETURNING `+todoColumns,
			args...,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Todo])
		return err
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("todo not found")
		}
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// Delete removes a todo from an organization.
func (r *TodoRepo) Delete(ctx context.Context, organizationID, id string) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx,
			`DELETE FROM todos WHERE organization_id = $1 AND id = $2`,
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
