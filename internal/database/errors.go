package database

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrLocked            = errors.New("migrations are locked by another run")
	ErrMissingDown       = errors.New("migration selected for rollback has no down func")
	ErrUnknownConnection = errors.New("unknown database connection")
)

// BookkeepingError is a failure reading or writing the ledger or lock tables
type BookkeepingError struct {
	Op  string
	Err error
}

func NewBookkeepingError(err error, op string) error {
	if err == nil {
		return nil
	}

	return &BookkeepingError{Op: op, Err: err}
}

func (e *BookkeepingError) Error() string {
	return fmt.Sprintf("bookkeeping [%s] failed: %v", e.Op, e.Err)
}

func (e *BookkeepingError) Unwrap() error { return e.Err }

func (e *BookkeepingError) Cause() error { return e.Err }

// ExecutionError carries the migration that failed along with
// the names that were fully applied or reversed before it
type ExecutionError struct {
	Name      string
	Direction Direction
	Migrated  []string
	Err       error
}

func (e *ExecutionError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("migration [%s] failed going %s: %v", e.Name, e.Direction, e.Err))

	if len(e.Migrated) > 0 {
		b.WriteString(fmt.Sprintf("; completed before failure: [%s]", strings.Join(e.Migrated, ", ")))
	}

	return b.String()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Cause() error { return e.Err }
