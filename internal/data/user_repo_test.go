package data

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasknest/tasknest/internal/core"
	"github.com/tasknest/tasknest/internal/domain/model"
	apperrors "github.com/tasknest/tasknest/internal/errors"
	"github.com/tasknest/tasknest/internal/testutil"
)

func createTestUser(t *testing.T, db *sql.DB, email string) *model.User {
	t.Helper()
	u, err := NewUserRepo(db).Create(context.Background(), core.CreateUserParams{
		Email:        email,
		PasswordHash: "$2a$10$fakehashfortesting000000000000000000000000000000000",
	})
	require.NoError(t, err)
	return u
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}

func TestUserRepo_Create_Get(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewUserRepo(db)

		email := uniqueEmail("alice")
		u := createTestUser(t, db, email)
		require.NotEmpty(t, u.ID)
		assert.Equal(t, email, u.Email)
		assert.False(t, u.IsAdmin)
		assert.NotZero(t, u.CreatedAt)

		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.Email, got.Email)

		got, err = repo.GetByEmail(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
	})
}

func TestUserRepo_DuplicateEmailConflicts(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewUserRepo(db)
		email := uniqueEmail("dup")
		createTestUser(t, db, email)

		_, err := repo.Create(context.Background(), core.CreateUserParams{
			Email:        email,
			PasswordHash: "x",
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})
}

func TestUserRepo_GetByID_NotFound(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		_, err := NewUserRepo(db).GetByID(context.Background(), "00000000-0000-0000-0000-000000000000")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestUserRepo_SetAdmin(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewUserRepo(db)
		u := createTestUser(t, db, uniqueEmail("admin"))

		updated, err := repo.SetAdmin(ctx, u.ID, true)
		require.NoError(t, err)
		assert.True(t, updated.IsAdmin)
		require.NotNil(t, updated.UpdatedAt)

		updated, err = repo.SetAdmin(ctx, u.ID, false)
		require.NoError(t, err)
		assert.False(t, updated.IsAdmin)
	})
}

func TestUserRepo_Avatar(t *testing.T) {
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewUserRepo(db)
		u := createTestUser(t, db, uniqueEmail("avatar"))

		// No avatar yet.
		_, _, err := repo.GetAvatar(ctx, u.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))

		payload := []byte{0x89, 0x50, 0x4e, 0x47}
		require.NoError(t, repo.UpdateAvatar(ctx, core.UpdateAvatarParams{
			UserID:      u.ID,
			Data:        payload,
			ContentType: "image/png",
		}))

		data, contentType, err := repo.GetAvatar(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, payload, data)
		assert.Equal(t, "image/png", contentType)
	})
}
