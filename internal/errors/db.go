package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Patterns for pulling structure out of PgError.Detail, which is the only
// place Postgres names the offending column or table for some violations.
var (
	detailKey        = regexp.MustCompile(`Key \(([^)]+)\)=`)
	detailReferenced = regexp.MustCompile(`is still referenced from table "?([^"]+)"?`)
	detailMissing    = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
)

// MapDBError translates driver and Postgres errors into the AppError
// taxonomy: pgx.ErrNoRows becomes not-found, unique violations become
// conflicts, foreign key violations get a human-readable message naming the
// related resource, and check/not-null violations become validation errors.
// Errors it does not recognize pass through unchanged.
func MapDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "Request timed out. Please try again.")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "Request was canceled.")
	case errors.Is(err, pgx.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "Resource not found")
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return &AppError{
			Code:    ErrCodeConflict,
			Message: "This value already exists. Please choose a different one.",
			Field:   violatedColumn(pgErr),
			Cause:   pgErr,
		}
	case pgerrcode.ForeignKeyViolation:
		return &AppError{
			Code:    ErrCodeForeignKey,
			Message: foreignKeyMessage(pgErr),
			Cause:   pgErr,
		}
	case pgerrcode.CheckViolation:
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "Invalid data. Please check your input.",
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	case pgerrcode.NotNullViolation:
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "Required field is missing. Please check your input.",
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	}
	return Wrap(pgErr, ErrCodeInternal, "A database error occurred. Please try again.")
}

// violatedColumn names the column behind a unique violation. ColumnName is
// often empty for multi-column indexes, so the Detail text is the fallback.
func violatedColumn(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := detailKey.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return ""
}

// foreignKeyMessage distinguishes deleting a row something still points at
// from inserting a row whose parent is gone.
func foreignKeyMessage(pgErr *pgconn.PgError) string {
	if m := detailReferenced.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return "Cannot delete because this item is in use by " + resourceName(m[1]) + "."
	}
	if m := detailMissing.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return "Cannot complete operation because the referenced " + resourceName(m[1]) + " does not exist."
	}
	if pgErr.TableName != "" {
		return "Cannot complete operation because this item is in use by " + resourceName(pgErr.TableName) + "."
	}
	return "Cannot complete operation because this item is referenced elsewhere."
}

var tableResourceNames = map[string]string{
	"users":         "User",
	"organizations": "Organization",
	"memberships":   "Membership",
	"todos":         "Todo",
	"invitations":   "Invitation",
	"subscriptions": "Subscription",
	"mail_outbox":   "Outbox Message",
}

// resourceName turns a table name into the label shown to users.
func resourceName(table string) string {
	table = strings.ToLower(strings.TrimSpace(table))
	if name, ok := tableResourceNames[table]; ok {
		return name
	}
	return strings.ReplaceAll(table, "_", " ")
}
