package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultMigrationsTable = "migrations"
	LockTableSuffix        = "_lock"

	OperationUp      = "up"
	OperationDown    = "down"
	OperationRefresh = "refresh"
)

var ErrInvalidTableName = errors.New("invalid migrations table name")

type (
	Batch     uint
	Direction string

	// Record is a single ledger row
	Record struct {
		ID         int64     `db:"id"`
		Name       string    `db:"name"`
		Batch      Batch     `db:"batch"`
		MigratedAt time.Time `db:"migration_time"`
	}

	Records []Record

	// Plan narrows a rollback, a nil Target means the newest batch only
	Plan struct {
		Target *Batch
	}

	CommonOptions struct {
		MigrationsTable string
	}
)

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// LockTable derives the lock table name from the ledger namespace
func LockTable(migrationsTable string) string {
	return migrationsTable + LockTableSuffix
}

// ValidateTableName guards the namespace since it is interpolated into DDL
func ValidateTableName(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidTableName, "empty")
	}

	for i, r := range name {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return errors.Wrapf(ErrInvalidTableName, "%q", name)
		}
	}

	return nil
}

func (r Records) Has(name string) bool {
	_, ok := r.Find(name)
	return ok
}

func (r Records) Find(name string) (Record, bool) {
	for i := range r {
		if r[i].Name == name {
			return r[i], true
		}
	}

	return Record{}, false
}

func (r Records) MaxBatch() Batch {
	var max Batch
	for i := range r {
		if r[i].Batch > max {
			max = r[i].Batch
		}
	}

	return max
}

func (r Records) Names() []string {
	result := make([]string, 0, len(r))
	for i := range r {
		result = append(result, r[i].Name)
	}

	return result
}

// Dialect holds the driver specific bookkeeping SQL for one ledger namespace
type Dialect interface {
	Driver() string
	CreateLedgerQuery() string
	CreateLockQuery() string
	ReadRecordsQuery() string
	InsertRecordQuery() string
	DeleteRecordQuery() string
	InsertLockQuery() string
	ReadLockQuery() string
	DropLedgerQuery() string
	DropLockQuery() string
	ShowTablesQuery() string
	ColumnsQuery(table string) (string, []interface{})
	IsDuplicateKey(err error) bool
}

// Store is the bookkeeping contract the runner depends on
type Store interface {
	EnsureLedgerTable(ctx context.Context) error
	ReadRecords(ctx context.Context) (Records, error)
	InsertRecord(ctx context.Context, name string, batch Batch, at time.Time) error
	DeleteRecord(ctx context.Context, name string) error
}

// Locker is the lock coordinator contract the runner depends on
type Locker interface {
	Acquire(ctx context.Context) error
	CheckLocked(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}
