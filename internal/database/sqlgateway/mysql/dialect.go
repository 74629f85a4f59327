package mysql

import (
	"fmt"

	"github.com/denismitr/tide/internal/database"
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

const (
	DriverName     = "mysql"
	DefaultCharset = "utf8mb4"

	duplicateEntry = 1062
)

type Options struct {
	database.CommonOptions
	Charset string
}

type Dialect struct {
	migrationsTable, lockTable, charset string
}

var _ database.Dialect = (*Dialect)(nil)

func NewDialect(migrationsTable, charset string) *Dialect {
	if charset == "" {
		charset = DefaultCharset
	}

	return &Dialect{
		migrationsTable: migrationsTable,
		lockTable:       database.LockTable(migrationsTable),
		charset:         charset,
	}
}

func (d Dialect) Driver() string {
	return DriverName
}

func (d Dialect) CreateLedgerQuery() string {
	const createSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			batch INT UNSIGNED NOT NULL,
			migration_time TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY %s_name_unique (name)
		) ENGINE=InnoDB CHARACTER SET=%s
	`

	return fmt.Sprintf(createSQL, d.migrationsTable, d.migrationsTable, d.charset)
}

func (d Dialect) CreateLockQuery() string {
	const createSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			id INT UNSIGNED PRIMARY KEY,
			is_locked TINYINT(1) NOT NULL DEFAULT 0
		) ENGINE=InnoDB CHARACTER SET=%s
	`

	return fmt.Sprintf(createSQL, d.lockTable, d.charset)
}

func (d Dialect) ReadRecordsQuery() string {
	return fmt.Sprintf("SELECT `id`, `name`, `batch`, `migration_time` FROM %s ORDER BY `batch` ASC, `name` ASC;", d.migrationsTable)
}

func (d Dialect) InsertRecordQuery() string {
	return fmt.Sprintf("INSERT INTO %s (`name`, `batch`, `migration_time`) VALUES (?, ?, ?);", d.migrationsTable)
}

func (d Dialect) DeleteRecordQuery() string {
	return fmt.Sprintf("DELETE FROM %s WHERE `name` = ?;", d.migrationsTable)
}

func (d Dialect) InsertLockQuery() string {
	return fmt.Sprintf("INSERT INTO %s (`id`, `is_locked`) VALUES (1, ?);", d.lockTable)
}

func (d Dialect) ReadLockQuery() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE `is_locked` = ?;", d.lockTable)
}

func (d Dialect) DropLedgerQuery() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.migrationsTable)
}

func (d Dialect) DropLockQuery() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.lockTable)
}

func (d Dialect) ShowTablesQuery() string {
	return "SHOW TABLES;"
}

func (d Dialect) ColumnsQuery(table string) (string, []interface{}) {
	const columnsSQL = `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position
	`

	return columnsSQL, []interface{}{table}
}

func (d Dialect) IsDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == duplicateEntry
	}

	return false
}
