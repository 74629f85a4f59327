package cli

import (
	"context"
	"time"

	"github.com/denismitr/tide"
	"github.com/denismitr/tide/internal/logger"
	"github.com/denismitr/tide/internal/metrics"
	"github.com/denismitr/tide/internal/source"
	"github.com/denismitr/tide/migration"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsJob = "tide"

var (
	ErrMigrationAlreadyExists = errors.New("migration already exists")
	ErrFolderInvalid          = errors.New("migrations folder is invalid")
)

type (
	CloserFunc func() error

	App struct {
		cfg      Config
		lg       logger.Logger
		source   source.Source
		migrator *tide.Migrator
		registry *prometheus.Registry
		now      func() time.Time
	}
)

// New opens every configured database and builds the migrator,
// extra options such as the logger are applied on top of the config
func New(ctx context.Context, cfg Config, lg logger.Logger, opts ...tide.OptionFunc) (*App, CloserFunc, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	if lg == nil {
		lg = &logger.NullLogger{}
	}

	app := &App{
		cfg:    cfg,
		lg:     lg,
		source: source.NewLocalFileSource(cfg.MigrationsFolder, lg),
		now:    time.Now,
	}

	migratorOpts, err := app.migratorOptions()
	if err != nil {
		return nil, nil, err
	}

	m, closer, err := tide.NewMigrator(ctx, append(migratorOpts, opts...)...)
	if err != nil {
		return nil, nil, err
	}

	app.migrator = m

	return app, CloserFunc(closer), nil
}

func (app *App) migratorOptions() ([]tide.OptionFunc, error) {
	primary, err := openDatabase(app.cfg.DatabaseUrl)
	if err != nil {
		return nil, err
	}

	var opts []tide.OptionFunc
	switch primary.driver {
	case "sqlite3":
		opts = append(opts, tide.UseSqlite(primary.db))
	case "mysql":
		opts = append(opts, tide.UseMySQL(primary.db))
	case "postgres":
		opts = append(opts, tide.UsePostgres(primary.db))
	default:
		return nil, errors.Wrapf(tide.ErrUnsupportedDriver, "%q", primary.driver)
	}

	for _, name := range app.cfg.ConnectionNames() {
		conn, err := openDatabase(app.cfg.Connections[name])
		if err != nil {
			return nil, errors.Wrapf(err, "connection [%s]", name)
		}

		opts = append(opts, tide.WithConnection(name, conn.driver, conn.db))
	}

	if app.cfg.MigrationsTable != "" {
		opts = append(opts, tide.WithMigrationsTable(app.cfg.MigrationsTable))
	}

	if app.cfg.LockHeldOnFailure {
		opts = append(opts, tide.WithLockHeldOnFailure())
	}

	if app.cfg.PushGateway != "" {
		app.registry = prometheus.NewRegistry()
		opts = append(opts, tide.WithMetrics(app.registry))
	}

	return opts, nil
}

// CreateMigration writes empty up and down files prefixed with the current time
func (app *App) CreateMigration(name string, withDown bool) ([]string, error) {
	if !app.source.IsValid() {
		return nil, errors.Wrapf(ErrFolderInvalid, "%s", app.cfg.MigrationsFolder)
	}

	key := app.now().UTC().Format("20060102150405") + "_" + name
	if app.source.AlreadyExists(key) {
		return nil, errors.Wrapf(ErrMigrationAlreadyExists, "%s", key)
	}

	return app.source.Create(key, withDown)
}

func (app *App) Up(ctx context.Context) (tide.Result, error) {
	migrations, err := app.source.Select(ctx)
	if err != nil {
		return tide.Result{Status: tide.StatusFailed}, err
	}

	defer app.pushMetrics()

	return app.migrator.Up(ctx, migrations)
}

// Down rolls back the latest batch, or every batch above target when it is not negative
func (app *App) Down(ctx context.Context, target int) (tide.Result, error) {
	migrations, err := app.source.Select(ctx)
	if err != nil {
		return tide.Result{Status: tide.StatusFailed}, err
	}

	defer app.pushMetrics()

	return app.migrator.Down(ctx, migrations, tide.CreateConfigurators(target)...)
}

func (app *App) Refresh(ctx context.Context) (tide.RefreshResult, error) {
	migrations, err := app.source.Select(ctx)
	if err != nil {
		return tide.RefreshResult{Status: tide.StatusFailed}, err
	}

	defer app.pushMetrics()

	return app.migrator.Refresh(ctx, migrations)
}

func (app *App) Status(ctx context.Context) ([]tide.StatusEntry, error) {
	migrations, err := app.source.Select(ctx)
	if err != nil && !errors.Is(err, source.ErrNoMigrations) {
		return nil, err
	}

	if migrations == nil {
		migrations = migration.Migrations{}
	}

	return app.migrator.Status(ctx, migrations)
}

func (app *App) Unlock(ctx context.Context) error {
	return app.migrator.Unlock(ctx)
}

func (app *App) pushMetrics() {
	if app.registry == nil {
		return
	}

	if err := metrics.Push(app.cfg.PushGateway, metricsJob, app.registry); err != nil {
		app.lg.Error(err)
	}
}
