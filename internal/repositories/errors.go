package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // For pq.Error
)

var (
	// ErrNotFound is returned when a specific record is not found.
	ErrNotFound = errors.New("requested record not found")

	// ErrDatabaseError is returned for unexpected database errors.
	// It can be used to wrap more specific driver errors.
	ErrDatabaseError = errors.New("database error")

	// ErrDuplicateKey is returned when an insert/update violates a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key value violates unique constraint")

	// ErrStaleState is returned when a conditional update matched no row because
	// the record left the expected state.
	ErrStaleState = errors.New("record is no longer in the expected state")
)

// SQLExecutor is satisfied by *sqlx.DB and *sqlx.Tx.
// This allows repository methods to be used within transactions or with a direct DB connection.
// Write methods given a nil executor use the repository's own connection.
type SQLExecutor interface {
	sqlx.ExtContext
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// DuplicateKeyError carries the violated constraint name.
type DuplicateKeyError struct {
	Constraint string
	Message    string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s: %s (constraint: %s)", ErrDuplicateKey, e.Message, e.Constraint)
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

// mapError converts driver errors into the package sentinels.
func mapError(err error, action string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return &DuplicateKeyError{Constraint: pqErr.Constraint, Message: pqErr.Message}
	}
	return fmt.Errorf("%w: %s: %v", ErrDatabaseError, action, err)
}

// expectOneRow turns a zero rows-affected result into notFound.
func expectOneRow(res sql.Result, notFound error, action string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDatabaseError, action, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
