// Package pgxutil bridges the shared *sql.DB pool to native pgx calls so
// repositories can use pgx row collection while the rest of the app holds a
// plain database/sql handle.
package pgxutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// WithPgxConn checks a connection out of the pool, unwraps the underlying
// pgx connection, and runs fn with it. The connection returns to the pool
// when fn finishes.
func WithPgxConn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("checkout conn: %w", err)
	}
	defer conn.Close() //nolint:errcheck // returning the conn to the pool is best-effort

	return conn.Raw(func(driverConn any) error {
		bridged, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return errors.New("driver connection is not a pgx stdlib conn")
		}
		return fn(bridged.Conn())
	})
}

// WithPgxTx runs fn inside a pgx transaction on a pooled connection. The
// transaction commits when fn returns nil and rolls back otherwise.
func WithPgxTx(ctx context.Context, db *sql.DB, fn func(pgx.Tx) error) error {
	return WithPgxConn(ctx, db, func(conn *pgx.Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}
