package tide

import (
	"database/sql"
	"time"

	"github.com/denismitr/tide/internal/database"
	"github.com/denismitr/tide/internal/database/sqlgateway"
	"github.com/denismitr/tide/internal/database/sqlgateway/mysql"
	"github.com/denismitr/tide/internal/database/sqlgateway/postgres"
	"github.com/denismitr/tide/internal/database/sqlgateway/sqlite"
	"github.com/denismitr/tide/internal/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type OptionFunc func(*Migrator) error

type connectionSpec struct {
	name    string
	driver  string
	db      *sql.DB
	charset string
}

type MySQLOptionFunc func(spec *connectionSpec)

func UseSqlite(db *sql.DB) OptionFunc {
	return usePrimary(connectionSpec{driver: sqlite.DriverName, db: db})
}

func UsePostgres(db *sql.DB) OptionFunc {
	return usePrimary(connectionSpec{driver: postgres.DriverName, db: db})
}

func UseMySQL(db *sql.DB, options ...MySQLOptionFunc) OptionFunc {
	spec := connectionSpec{driver: mysql.DriverName, db: db, charset: mysql.DefaultCharset}
	for _, o := range options {
		o(&spec)
	}

	return usePrimary(spec)
}

func WithMySQLCharset(charset string) MySQLOptionFunc {
	return func(spec *connectionSpec) {
		spec.charset = charset
	}
}

// WithConnection registers a named connection that migrations can target
func WithConnection(name, driver string, db *sql.DB) OptionFunc {
	return func(m *Migrator) error {
		if name == "" || name == sqlgateway.DefaultConnection {
			return errors.Errorf("connection name %q is reserved for the primary connection", name)
		}

		if db == nil {
			return errors.Errorf("database handle for connection [%s] is nil", name)
		}

		m.secondary = append(m.secondary, connectionSpec{name: name, driver: driver, db: db})
		return nil
	}
}

// WithMigrationsTable sets the ledger table, the lock table is named after it
func WithMigrationsTable(table string) OptionFunc {
	return func(m *Migrator) error {
		if err := database.ValidateTableName(table); err != nil {
			return err
		}

		m.migrationsTable = table
		return nil
	}
}

func WithConnectionTimeout(timeout time.Duration) OptionFunc {
	return func(m *Migrator) error {
		m.connectOptions.MaxTimeout = timeout
		return nil
	}
}

func WithMaxConnectionAttempts(attempts int) OptionFunc {
	return func(m *Migrator) error {
		m.connectOptions.MaxAttempts = attempts
		return nil
	}
}

func WithConnectionRetryStep(step time.Duration) OptionFunc {
	return func(m *Migrator) error {
		m.connectOptions.RetryStep = step
		return nil
	}
}

// WithLockHeldOnFailure keeps the lock after a migration fails mid-run,
// Unlock has to be called before the next run
func WithLockHeldOnFailure() OptionFunc {
	return func(m *Migrator) error {
		m.keepLock = true
		return nil
	}
}

// WithoutLock disables run coordination for setups with a single writer
func WithoutLock() OptionFunc {
	return func(m *Migrator) error {
		m.noLock = true
		return nil
	}
}

func WithMetrics(reg prometheus.Registerer) OptionFunc {
	return func(m *Migrator) error {
		rec, err := metrics.NewPrometheusRecorder(reg)
		if err != nil {
			return err
		}

		m.recorder = rec
		return nil
	}
}

func usePrimary(spec connectionSpec) OptionFunc {
	return func(m *Migrator) error {
		if spec.db == nil {
			return errors.Errorf("%s database handle is nil", spec.driver)
		}

		spec.name = sqlgateway.DefaultConnection
		m.primary = &spec
		return nil
	}
}

func newDialect(driver, migrationsTable, charset string) (database.Dialect, error) {
	switch driver {
	case sqlite.DriverName:
		return sqlite.NewDialect(migrationsTable), nil
	case mysql.DriverName:
		return mysql.NewDialect(migrationsTable, charset), nil
	case postgres.DriverName:
		return postgres.NewDialect(migrationsTable), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedDriver, "%q", driver)
	}
}
