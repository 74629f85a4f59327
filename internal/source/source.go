package source

import (
	"context"

	"github.com/denismitr/tide/migration"
	"github.com/pkg/errors"
)

const DefaultMigrationsFolder = "./migrations"

var (
	ErrNotAMigrationFile  = errors.New("not a migration file")
	ErrMissingUpFile      = errors.New("migration has no up file")
	ErrConnectionMismatch = errors.New("up and down files declare different connections")
	ErrNoMigrations       = errors.New("no migrations")
)

type Selector interface {
	Select(ctx context.Context) (migration.Migrations, error)
}

type Source interface {
	Selector

	IsValid() bool
	AlreadyExists(key string) bool
	Create(key string, withDown bool) ([]string, error)
}

type InMemorySource struct {
	migrations migration.Migrations
}

var _ Selector = (*InMemorySource)(nil)

func NewInMemorySource(definitions ...migration.Migration) (*InMemorySource, error) {
	m, err := migration.NewMigrations(definitions...)
	if err != nil {
		return nil, err
	}

	return &InMemorySource{migrations: m}, nil
}

func (s *InMemorySource) Select(ctx context.Context) (migration.Migrations, error) {
	if len(s.migrations) == 0 {
		return nil, ErrNoMigrations
	}

	return s.migrations, nil
}
