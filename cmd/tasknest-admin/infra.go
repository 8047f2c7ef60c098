package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tasknest/tasknest/internal/bootstrap"
	"github.com/tasknest/tasknest/internal/data"
)

// withDB opens the database, runs fn, and closes the connection.
func (c *commandContext) withDB(fn func(ctx context.Context, db *sql.DB) error) error {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig:    c.Config.Postgres,
		RedisConfig: c.Config.Redis,
		Logger:      c.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			c.Logger.Error("close database failed", "error", cerr)
		}
	}()
	return fn(c.Ctx, db)
}

func runMigrate(c *commandContext, _ []string) error {
	return c.withDB(func(ctx context.Context, db *sql.DB) error {
		migrateCtx, cancel := context.WithTimeout(ctx, defaultMigrationTimeout)
		defer cancel()
		return bootstrap.RunMigrations(migrateCtx, db, c.Logger)
	})
}

func runGrantAdmin(c *commandContext, args []string) error {
	return setAdminFlag(c, args, true)
}

func runRevokeAdmin(c *commandContext, args []string) error {
	return setAdminFlag(c, args, false)
}

func setAdminFlag(c *commandContext, args []string, isAdmin bool) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return errors.New("expected exactly one argument: the user's email")
	}
	email := strings.TrimSpace(args[0])

	return c.withDB(func(ctx context.Context, db *sql.DB) error {
		users := data.NewUserRepo(db)
		user, err := users.GetByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("look up user %q: %w", email, err)
		}
		if _, err := users.SetAdmin(ctx, user.ID, isAdmin); err != nil {
			return fmt.Errorf("update admin flag: %w", err)
		}
		c.Logger.InfoContext(ctx, "admin flag updated",
			"email", email, "user_id", user.ID, "is_admin", isAdmin)
		return nil
	})
}

func runPruneOutbox(c *commandContext, _ []string) error {
	return c.withDB(func(ctx context.Context, db *sql.DB) error {
		outbox := data.NewOutboxRepo(db)
		dispatch := c.Config.Mail.Dispatch
		total := int64(0)
		for {
			deleted, err := outbox.DeleteOldSent(ctx, dispatch.PruneMaxAge, dispatch.PruneBatchSize)
			if err != nil {
				return fmt.Errorf("prune outbox: %w", err)
			}
			total += deleted
			if deleted < int64(dispatch.PruneBatchSize) {
				break
			}
		}
		c.Logger.InfoContext(ctx, "outbox pruned", "deleted", total)
		return nil
	})
}
