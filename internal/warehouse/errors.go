package warehouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/raphaelgruber/portalsync/internal/errs"
	"github.com/raphaelgruber/portalsync/internal/models"
)

// Postgres SQLSTATE classes, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgClassIntegrity   = "23"
	pgClassConnection  = "08"
	pgClassResources   = "53"
	pgClassOperator    = "57"
	pgClassTxRollback  = "40"
	pgCheckViolation   = "23514"
	pgNotNullViolation = "23502"
	pgForeignKey       = "23503"
	pgUniqueViolation  = "23505"
)

// wrapWriteError classifies a failed write for record id of kind.
// Constraint violations become *errs.ConstraintError, connectivity problems
// *errs.TransientStoreError; anything else is returned wrapped as-is.
func wrapWriteError(kind models.Kind, id string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, pgClassIntegrity):
			return &errs.ConstraintError{Kind: string(kind), RecordID: id, Constraint: pgConstraintName(pgErr), Err: err}
		case strings.HasPrefix(pgErr.Code, pgClassConnection),
			strings.HasPrefix(pgErr.Code, pgClassResources),
			strings.HasPrefix(pgErr.Code, pgClassOperator),
			strings.HasPrefix(pgErr.Code, pgClassTxRollback):
			return errs.Transient("relational", "upsert "+string(kind), err)
		}
		return err
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			return &errs.ConstraintError{Kind: string(kind), RecordID: id, Constraint: sqliteConstraintName(liteErr.Code()), Err: err}
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR:
			return errs.Transient("relational", "upsert "+string(kind), err)
		}
		return err
	}

	if isTransient(err) {
		return errs.Transient("relational", "upsert "+string(kind), err)
	}
	return err
}

// wrapReadError marks connectivity failures on reads as transient.
func wrapReadError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return errs.Transient("relational", op, err)
	}
	return err
}

func isTransient(err error) bool {
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		pgconn.Timeout(err) ||
		errors.As(err, &netErr)
}

func pgConstraintName(e *pgconn.PgError) string {
	if e.ConstraintName != "" {
		return e.ConstraintName
	}
	switch e.Code {
	case pgForeignKey:
		return "foreign_key"
	case pgUniqueViolation:
		return "unique"
	case pgNotNullViolation:
		return "not_null"
	case pgCheckViolation:
		return "check"
	}
	return ""
}

func sqliteConstraintName(code int) string {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return "foreign_key"
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return "unique"
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return "not_null"
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return "check"
	}
	return ""
}
