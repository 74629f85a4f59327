package postgres

import (
	"fmt"

	"github.com/denismitr/tide/internal/database"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const (
	DriverName = "postgres"

	uniqueViolation = "23505"
)

type Options struct {
	database.CommonOptions
}

type Dialect struct {
	migrationsTable, lockTable string
}

var _ database.Dialect = (*Dialect)(nil)

func NewDialect(migrationsTable string) *Dialect {
	return &Dialect{
		migrationsTable: migrationsTable,
		lockTable:       database.LockTable(migrationsTable),
	}
}

func (d Dialect) Driver() string {
	return DriverName
}

func (d Dialect) CreateLedgerQuery() string {
	const createSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			batch INTEGER NOT NULL,
			migration_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	return fmt.Sprintf(createSQL, d.migrationsTable)
}

func (d Dialect) CreateLockQuery() string {
	const createSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			is_locked BOOLEAN NOT NULL DEFAULT FALSE
		);
	`

	return fmt.Sprintf(createSQL, d.lockTable)
}

func (d Dialect) ReadRecordsQuery() string {
	return fmt.Sprintf("SELECT id, name, batch, migration_time FROM %s ORDER BY batch ASC, name ASC;", d.migrationsTable)
}

func (d Dialect) InsertRecordQuery() string {
	return fmt.Sprintf("INSERT INTO %s (name, batch, migration_time) VALUES ($1, $2, $3);", d.migrationsTable)
}

func (d Dialect) DeleteRecordQuery() string {
	return fmt.Sprintf("DELETE FROM %s WHERE name = $1;", d.migrationsTable)
}

func (d Dialect) InsertLockQuery() string {
	return fmt.Sprintf("INSERT INTO %s (id, is_locked) VALUES (1, $1);", d.lockTable)
}

func (d Dialect) ReadLockQuery() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE is_locked = $1;", d.lockTable)
}

func (d Dialect) DropLedgerQuery() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.migrationsTable)
}

func (d Dialect) DropLockQuery() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.lockTable)
}

func (d Dialect) ShowTablesQuery() string {
	return `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name;
	`
}

func (d Dialect) ColumnsQuery(table string) (string, []interface{}) {
	const columnsSQL = `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`

	return columnsSQL, []interface{}{table}
}

func (d Dialect) IsDuplicateKey(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}

	return false
}
