package data

import (
	"context"
	"database/sql"

	"github.com/tasknest/tasknest/internal/migrate"
)

// RunMigrations applies any pending schema migrations. It exists so callers
// outside the data layer never import the migrate package directly.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate.Run(ctx, db)
}
