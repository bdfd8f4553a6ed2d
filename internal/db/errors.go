package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/portalsync/internal/errs"
)

// Sentinel errors for database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTransactionConflict indicates a SurrealDB transaction conflict.
	// This occurs when multiple concurrent operations attempt to modify the same records.
	ErrTransactionConflict = errors.New("transaction conflict")
)

// wrapQueryError inspects a SurrealDB error. Query errors the server reports
// are returned as-is (or as ErrTransactionConflict); anything that never made
// it to the server becomes a *errs.TransientStoreError.
func wrapQueryError(op string, err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		if strings.Contains(queryErr.Message, "Transaction conflict") {
			return errs.Transient("document", op, fmt.Errorf("%w: %s", ErrTransactionConflict, queryErr.Message))
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, net.ErrClosed) {
		return errs.Transient("document", op, err)
	}

	// The SDK reports dropped connections as plain errors.
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "closed", "timeout", "eof", "broken pipe"} {
		if strings.Contains(msg, s) {
			return errs.Transient("document", op, err)
		}
	}
	return err
}
