package sqlite

import (
	"fmt"

	"github.com/denismitr/tide/internal/database"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const DriverName = "sqlite3"

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
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name VARCHAR(255) NOT NULL UNIQUE,
			batch INTEGER NOT NULL,
			migration_time TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`

	return fmt.Sprintf(createSQL, d.migrationsTable)
}

func (d Dialect) CreateLockQuery() string {
	const createSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			is_locked BOOLEAN NOT NULL DEFAULT 0
		);
	`

	return fmt.Sprintf(createSQL, d.lockTable)
}

func (d Dialect) ReadRecordsQuery() string {
	return fmt.Sprintf("SELECT id, name, batch, migration_time FROM %s ORDER BY batch ASC, name ASC;", d.migrationsTable)
}

func (d Dialect) InsertRecordQuery() string {
	return fmt.Sprintf("INSERT INTO %s (name, batch, migration_time) VALUES (?, ?, ?);", d.migrationsTable)
}

func (d Dialect) DeleteRecordQuery() string {
	return fmt.Sprintf("DELETE FROM %s WHERE name = ?;", d.migrationsTable)
}

func (d Dialect) InsertLockQuery() string {
	return fmt.Sprintf("INSERT INTO %s (id, is_locked) VALUES (1, ?);", d.lockTable)
}

func (d Dialect) ReadLockQuery() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE is_locked = ?;", d.lockTable)
}

func (d Dialect) DropLedgerQuery() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.migrationsTable)
}

func (d Dialect) DropLockQuery() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.lockTable)
}

func (d Dialect) ShowTablesQuery() string {
	return "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name;"
}

func (d Dialect) ColumnsQuery(table string) (string, []interface{}) {
	return "SELECT name FROM pragma_table_info(?) ORDER BY cid;", []interface{}{table}
}

func (d Dialect) IsDuplicateKey(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}

	return false
}
