package migration

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var ErrInvalidMigration = errors.New("invalid migration")
var ErrDuplicateName = errors.New("duplicate migration name")

// Conn is the handle a migration receives for the connection it declared.
// The runner never hands a transaction here, DDL goes straight to the database.
type Conn interface {
	Name() string
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
	Tables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]string, error)
}

type (
	Func func(ctx context.Context, conn Conn) error

	Migration struct {
		Name       string
		Up         Func
		Down       Func
		Connection string
	}

	Option func(m *Migration)
)

// New creates a migration definition, a nil down func marks it irreversible
func New(name string, up, down Func, opts ...Option) Migration {
	m := Migration{Name: name, Up: up, Down: down}
	for _, o := range opts {
		o(&m)
	}

	return m
}

// OnConnection routes the migration to a named connection instead of the primary one
func OnConnection(name string) Option {
	return func(m *Migration) {
		m.Connection = name
	}
}

// Exec builds a Func that runs the given statements one by one
func Exec(statements ...string) Func {
	return func(ctx context.Context, conn Conn) error {
		for _, stmt := range statements {
			if strings.TrimSpace(stmt) == "" {
				continue
			}

			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return errors.Wrapf(err, "could not execute [%s]", stmt)
			}
		}

		return nil
	}
}

func (m Migration) Reversible() bool {
	return m.Down != nil
}

func (m Migration) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.Wrap(ErrInvalidMigration, "name is empty")
	}

	if m.Up == nil {
		return errors.Wrapf(ErrInvalidMigration, "migration [%s] has no up func", m.Name)
	}

	return nil
}

// Migrations is an ordered set of definitions keyed by name
type Migrations []Migration

// NewMigrations validates the definitions and orders them by name
func NewMigrations(definitions ...Migration) (Migrations, error) {
	result := make(Migrations, len(definitions))
	copy(result, definitions)

	if err := result.Validate(); err != nil {
		return nil, err
	}

	sort.Sort(result)

	return result, nil
}

// Validate checks every definition and rejects names that appear twice.
// Migrations built as a literal skip NewMigrations, so the runner calls it too.
func (m Migrations) Validate() error {
	seen := make(map[string]struct{}, len(m))
	for _, d := range m {
		if err := d.Validate(); err != nil {
			return err
		}

		if _, ok := seen[d.Name]; ok {
			return errors.Wrapf(ErrDuplicateName, "%s", d.Name)
		}

		seen[d.Name] = struct{}{}
	}

	return nil
}

// MustMigrations is NewMigrations that panics, handy for package level registries
func MustMigrations(definitions ...Migration) Migrations {
	m, err := NewMigrations(definitions...)
	if err != nil {
		panic(err)
	}

	return m
}

func (m Migrations) Names() []string {
	result := make([]string, 0, len(m))
	for i := range m {
		result = append(result, m[i].Name)
	}

	return result
}

func (m Migrations) Find(name string) (Migration, bool) {
	for i := range m {
		if m[i].Name == name {
			return m[i], true
		}
	}

	return Migration{}, false
}

func (m Migrations) Len() int {
	return len(m)
}

func (m Migrations) Less(i, j int) bool {
	return m[i].Name < m[j].Name
}

func (m Migrations) Swap(i, j int) {
	m[i], m[j] = m[j], m[i]
}
