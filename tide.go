package tide

import (
	"context"

	"github.com/denismitr/tide/internal/database"
	"github.com/denismitr/tide/internal/database/sqlgateway"
	"github.com/denismitr/tide/internal/logger"
	"github.com/denismitr/tide/internal/metrics"
	"github.com/denismitr/tide/internal/runner"
	"github.com/denismitr/tide/migration"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var (
	ErrPrimaryNotConfigured = errors.New("primary database connection has not been configured")
	ErrUnsupportedDriver    = errors.New("unsupported database driver")
)

type CloserFunc func() error

type (
	Batch         = database.Batch
	Result        = runner.Result
	RefreshResult = runner.RefreshResult
	StatusEntry   = runner.StatusEntry
	RunStatus     = runner.Status
)

const (
	StatusCompleted = runner.StatusCompleted
	StatusFailed    = runner.StatusFailed
)

// Migrator applies and reverses migrations across the configured connections.
// The ledger and the lock table always live on the primary connection.
type Migrator struct {
	lg       logger.Logger
	recorder metrics.Recorder

	primary         *connectionSpec
	secondary       []connectionSpec
	migrationsTable string
	connectOptions  *sqlgateway.ConnectOptions
	keepLock        bool
	noLock          bool

	registry *sqlgateway.Registry
	gateway  *sqlgateway.Gateway
	locker   database.Locker
	runner   *runner.Runner
}

// NewMigrator configures the migrator with option callbacks and waits until
// every connection answers, the returned closer closes all of them
func NewMigrator(ctx context.Context, opts ...OptionFunc) (*Migrator, CloserFunc, error) {
	m := &Migrator{
		lg:              &logger.NullLogger{},
		recorder:        metrics.NullRecorder{},
		migrationsTable: database.DefaultMigrationsTable,
		connectOptions:  sqlgateway.NewDefaultConnectOptions(),
	}

	for _, oFunc := range opts {
		if err := oFunc(m); err != nil {
			return nil, nil, err
		}
	}

	if m.primary == nil {
		return nil, nil, ErrPrimaryNotConfigured
	}

	if err := database.ValidateTableName(m.migrationsTable); err != nil {
		return nil, nil, err
	}

	if err := m.buildRegistry(); err != nil {
		return nil, nil, err
	}

	if err := m.connect(ctx); err != nil {
		m.lg.Error(err)
		_ = m.registry.Close()
		return nil, nil, err
	}

	m.gateway = sqlgateway.NewGateway(m.registry.Primary())
	m.gateway.SetLogger(m.lg)

	if m.noLock {
		m.locker = sqlgateway.NullLocker{}
	} else {
		m.locker = sqlgateway.NewTableLocker(m.gateway)
	}

	runnerOpts := []runner.Option{runner.WithLogger(m.lg), runner.WithRecorder(m.recorder)}
	if m.keepLock {
		runnerOpts = append(runnerOpts, runner.WithLockHeldOnFailure())
	}

	m.runner = runner.New(m.gateway, m.locker, m.registry, runnerOpts...)

	return m, m.close, nil
}

// Up applies every migration missing from the ledger as one new batch
func (m *Migrator) Up(ctx context.Context, migrations migration.Migrations) (Result, error) {
	result, err := m.runner.Up(ctx, migrations)
	if err != nil {
		m.lg.Error(err)
	}

	return result, err
}

// Down rolls back the latest batch, or every batch above the one given with WithTarget
func (m *Migrator) Down(ctx context.Context, migrations migration.Migrations, cfs ...ActionConfigurator) (Result, error) {
	act := new(Action)
	for _, f := range cfs {
		f(act)
	}

	result, err := m.runner.Down(ctx, migrations, database.Plan{Target: act.target})
	if err != nil {
		m.lg.Error(err)
	}

	return result, err
}

// Refresh rolls everything back and applies all migrations again as a single batch
func (m *Migrator) Refresh(ctx context.Context, migrations migration.Migrations) (RefreshResult, error) {
	result, err := m.runner.Refresh(ctx, migrations)
	if err != nil {
		m.lg.Error(err)
	}

	return result, err
}

func (m *Migrator) Status(ctx context.Context, migrations migration.Migrations) ([]StatusEntry, error) {
	return m.runner.Status(ctx, migrations)
}

// Unlock releases a lock left behind by a failed run
func (m *Migrator) Unlock(ctx context.Context) error {
	if err := m.locker.Release(ctx); err != nil {
		return errors.Wrap(err, "could not release the lock")
	}

	m.lg.Successf("lock released")

	return nil
}

func (m *Migrator) Connections() []string {
	return m.registry.Names()
}

func (m *Migrator) buildRegistry() error {
	primary, err := m.newConnection(*m.primary)
	if err != nil {
		return err
	}

	others := make([]*sqlgateway.Connection, 0, len(m.secondary))
	for _, spec := range m.secondary {
		c, err := m.newConnection(spec)
		if err != nil {
			return err
		}

		others = append(others, c)
	}

	registry, err := sqlgateway.NewRegistry(primary, others...)
	if err != nil {
		return err
	}

	m.registry = registry

	return nil
}

func (m *Migrator) newConnection(spec connectionSpec) (*sqlgateway.Connection, error) {
	dialect, err := newDialect(spec.driver, m.migrationsTable, spec.charset)
	if err != nil {
		return nil, errors.Wrapf(err, "connection [%s]", spec.name)
	}

	return sqlgateway.NewConnection(spec.name, sqlx.NewDb(spec.db, dialect.Driver()), dialect, m.lg), nil
}

func (m *Migrator) connect(ctx context.Context) error {
	connector := sqlgateway.NewRetryingConnector(m.connectOptions)

	g, ctx := errgroup.WithContext(ctx)
	_ = m.registry.Each(func(c *sqlgateway.Connection) error {
		g.Go(func() error {
			return connector.Connect(ctx, c)
		})
		return nil
	})

	return g.Wait()
}

func (m *Migrator) close() error {
	if m.registry == nil {
		return nil
	}

	if err := m.registry.Close(); err != nil {
		m.lg.Error(err)
		return err
	}

	return nil
}
