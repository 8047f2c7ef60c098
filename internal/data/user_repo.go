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

// UserRepo provides database operations for user accounts.
type UserRepo struct {
	DB *sql.DB
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

const userColumns = `id, email, password_hash, is_admin, avatar_content_type, created_at, updated_at`

// Create inserts a new user. The email must already be normalized and the
// password already hashed.
func (r *UserRepo) Create(ctx context.Context, params core.CreateUserParams) (*model.User, error) {
	var out model.User
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO users (email, password_hash)
			VALUES ($1, $2)
			RETURNING `+userColumns,
			params.Email,
			params.PasswordHash,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getByQuery(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getByQuery(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// SetAdmin flips the global-admin flag on a user.
func (r *UserRepo) SetAdmin(ctx context.Context, id string, isAdmin bool) (*model.User, error) {
	var out model.User
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE users SET is_admin = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+userColumns,
			id, isAdmin,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// UpdateAvatar stores the processed avatar image bytes for a user.
func (r *UserRepo) UpdateAvatar(ctx context.Context, params core.UpdateAvatarParams) error {
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `
			UPDATE users SET avatar = $2, avatar_content_type = $3, updated_at = now()
			WHERE id = $1`,
			params.UserID, params.Data, params.ContentType,
		)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	return apperrors.MapDBError(err)
}

// GetAvatar returns the stored avatar bytes and content type for a user. A
// user without an avatar maps to not-found.
func (r *UserRepo) GetAvatar(ctx context.Context, id string) ([]byte, string, error) {
	var (
		data        []byte
		contentType *string
	)
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx,
			`SELECT avatar, avatar_content_type FROM users WHERE id = $1`, id,
		).Scan(&data, &contentType)
	})
	if err != nil {
		return nil, "", apperrors.MapDBError(err)
	}
	if len(data) == 0 || contentType == nil {
		return nil, "", apperrors.NotFound("user has no avatar")
	}
	return data, *contentType, nil
}

func (r *UserRepo) getByQuery(ctx context.Context, q string, args ...any) (*model.User, error) {
	var user model.User
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		user, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.MapDBError(err)
	}
	return &user, nil
}
