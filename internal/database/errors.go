package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ConnectionError reports that no live connection is available or that the
// connection was lost. Repositories never retry it.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return "database connection error: " + e.Op
	}
	return fmt.Sprintf("database connection error: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ErrNotConnected is returned by every operation attempted while the manager
// holds no connection.
var ErrNotConnected = &ConnectionError{Op: "acquire", Err: errors.New("not connected")}

// TransientError wraps a failure expected to clear up on retry
// (lock contention, busy timeout, connection reset).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient store error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// ConstraintKind names the store constraint that rejected a write.
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintNotNull    ConstraintKind = "not_null"
	ConstraintOther      ConstraintKind = "other"
)

// ConstraintError wraps a uniqueness, foreign-key or check violation.
// It is never retried.
type ConstraintError struct {
	Kind ConstraintKind
	Err  error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint violation (%s): %v", e.Kind, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// TransactionError reports that commit or rollback itself failed.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("failed to %s transaction: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// IsTransient reports whether err is eligible for retry.
func IsTransient(err error) bool {
	var txErr *TransactionError
	if errors.As(err, &txErr) {
		return false
	}
	var tErr *TransientError
	return errors.As(classify(err), &tErr)
}

// IsConstraint reports whether err is a constraint violation.
func IsConstraint(err error) bool {
	var cErr *ConstraintError
	return errors.As(classify(err), &cErr)
}

// IsConnection reports whether err means the connection is unavailable.
func IsConnection(err error) bool {
	var cErr *ConnectionError
	return errors.As(classify(err), &cErr)
}

func constraintKind(err error) (ConstraintKind, bool) {
	var cErr *ConstraintError
	if errors.As(classify(err), &cErr) {
		return cErr.Kind, true
	}
	return "", false
}

// classify maps a raw driver error onto the error taxonomy. Errors that are
// already classified, context errors and nil pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var (
		connErr  *ConnectionError
		tErr     *TransientError
		cErr     *ConstraintError
		txErr    *TransactionError
		sqlite3E *sqlite.Error
	)
	switch {
	case errors.As(err, &connErr), errors.As(err, &tErr), errors.As(err, &cErr), errors.As(err, &txErr):
		return err
	case errors.Is(err, driver.ErrBadConn):
		return &TransientError{Err: err}
	case errors.Is(err, sql.ErrConnDone), isClosedDatabase(err):
		return &ConnectionError{Op: "use", Err: err}
	case errors.As(err, &sqlite3E):
		return classifySQLiteCode(sqlite3E.Code(), err)
	}
	return err
}

func classifySQLiteCode(code int, err error) error {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return &ConstraintError{Kind: ConstraintUnique, Err: err}
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return &ConstraintError{Kind: ConstraintForeignKey, Err: err}
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return &ConstraintError{Kind: ConstraintCheck, Err: err}
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return &ConstraintError{Kind: ConstraintNotNull, Err: err}
	}

	// Extended result codes carry the primary code in the low byte.
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return &TransientError{Err: err}
	case sqlite3.SQLITE_CONSTRAINT:
		return &ConstraintError{Kind: constraintKindFromMessage(err.Error()), Err: err}
	}
	return err
}

// constraintKindFromMessage covers drivers that only report the primary
// SQLITE_CONSTRAINT code.
func constraintKindFromMessage(msg string) ConstraintKind {
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return ConstraintUnique
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ConstraintForeignKey
	case strings.Contains(msg, "CHECK constraint failed"):
		return ConstraintCheck
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return ConstraintNotNull
	}
	return ConstraintOther
}

func isClosedDatabase(err error) bool {
	return strings.Contains(err.Error(), "sql: database is closed")
}
