package runner

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/denismitr/tide/internal/database"
	"github.com/denismitr/tide/internal/logger"
	"github.com/denismitr/tide/internal/metrics"
	"github.com/denismitr/tide/migration"
	"github.com/pkg/errors"
)

type Status string

const (
	StatusCompleted Status = metrics.StatusCompleted
	StatusFailed    Status = metrics.StatusFailed
)

// Result is the outcome of one run. Migrated holds the names that were
// fully executed and recorded, in execution order, even when the run failed.
type Result struct {
	Status   Status
	Migrated []string
	Batch    database.Batch
}

type RefreshResult struct {
	Status     Status
	RolledBack []string
	Migrated   []string
	Batch      database.Batch
}

type StatusEntry struct {
	Name       string
	Connection string
	Applied    bool
	Reversible bool
	Orphan     bool
	Batch      database.Batch
	MigratedAt time.Time
}

// Connections resolves the connection a migration declared, empty is the primary one
type Connections interface {
	Resolve(name string) (migration.Conn, error)
}

type Option func(r *Runner)

func WithLogger(lg logger.Logger) Option {
	return func(r *Runner) {
		r.lg = lg
	}
}

func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// WithLockHeldOnFailure leaves the lock in place when a migration fails
// mid-run so that nobody re-runs a half applied batch unnoticed
func WithLockHeldOnFailure() Option {
	return func(r *Runner) {
		r.keepLockOnFailure = true
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// Runner executes migrations under the bookkeeping lock.
// Bookkeeping always goes through store and locker, which live on the primary connection.
type Runner struct {
	store    database.Store
	locker   database.Locker
	conns    Connections
	lg       logger.Logger
	recorder metrics.Recorder
	now      func() time.Time

	keepLockOnFailure bool

	mu    sync.Mutex
	state State
}

func New(store database.Store, locker database.Locker, conns Connections, opts ...Option) *Runner {
	r := &Runner{
		store:    store,
		locker:   locker,
		conns:    conns,
		lg:       &logger.NullLogger{},
		recorder: metrics.NullRecorder{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}

	for _, o := range opts {
		o(r)
	}

	return r
}

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Up applies every candidate missing from the ledger as one new batch
func (r *Runner) Up(ctx context.Context, candidates migration.Migrations) (Result, error) {
	result := Result{Status: StatusCompleted, Migrated: []string{}}
	if err := candidates.Validate(); err != nil {
		return r.finish(database.OperationUp, result, err)
	}

	err := r.execUnderLock(ctx, database.OperationUp, func(records database.Records) error {
		scheduled := database.ScheduleForMigration(candidates, records)
		if len(scheduled) == 0 {
			r.lg.Successf("nothing to migrate")
			return nil
		}

		batch := database.ResolveNextBatch(records)
		result.Batch = batch

		migrated, err := r.migrate(ctx, scheduled, batch)
		result.Migrated = migrated

		return err
	})

	return r.finish(database.OperationUp, result, err)
}

// Down reverses the latest batch, or every batch above p.Target when it is set
func (r *Runner) Down(ctx context.Context, candidates migration.Migrations, p database.Plan) (Result, error) {
	result := Result{Status: StatusCompleted, Migrated: []string{}}
	if err := candidates.Validate(); err != nil {
		return r.finish(database.OperationDown, result, err)
	}

	err := r.execUnderLock(ctx, database.OperationDown, func(records database.Records) error {
		rolledBack, err := r.rollback(ctx, candidates, records, p)
		result.Migrated = rolledBack
		return err
	})

	return r.finish(database.OperationDown, result, err)
}

// Refresh rolls back every batch and applies all candidates again as a single batch
func (r *Runner) Refresh(ctx context.Context, candidates migration.Migrations) (RefreshResult, error) {
	result := RefreshResult{Status: StatusCompleted, RolledBack: []string{}, Migrated: []string{}}
	var zero database.Batch

	if err := candidates.Validate(); err != nil {
		result.Status = StatusFailed
		r.recorder.RunFinished(database.OperationRefresh, string(StatusFailed))
		return result, err
	}

	err := r.execUnderLock(ctx, database.OperationRefresh, func(records database.Records) error {
		rolledBack, err := r.rollback(ctx, candidates, records, database.Plan{Target: &zero})
		result.RolledBack = rolledBack
		if err != nil {
			return err
		}

		remaining := withoutNames(records, rolledBack)
		scheduled := database.ScheduleForMigration(candidates, remaining)
		if len(scheduled) == 0 {
			return nil
		}

		result.Batch = database.ResolveNextBatch(remaining)
		migrated, err := r.migrate(ctx, scheduled, result.Batch)
		result.Migrated = migrated

		return err
	})

	if err != nil {
		result.Status = StatusFailed
		r.recorder.RunFinished(database.OperationRefresh, string(StatusFailed))
		return result, err
	}

	r.recorder.RunFinished(database.OperationRefresh, string(StatusCompleted))

	return result, nil
}

// Status reports every candidate and every ledger row without taking the lock
func (r *Runner) Status(ctx context.Context, candidates migration.Migrations) ([]StatusEntry, error) {
	if err := candidates.Validate(); err != nil {
		return nil, err
	}

	if err := r.store.EnsureLedgerTable(ctx); err != nil {
		return nil, err
	}

	records, err := r.store.ReadRecords(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]StatusEntry, 0, len(candidates))
	for _, m := range candidates {
		entry := StatusEntry{Name: m.Name, Connection: m.Connection, Reversible: m.Reversible()}
		if rec, ok := records.Find(m.Name); ok {
			entry.Applied = true
			entry.Batch = rec.Batch
			entry.MigratedAt = rec.MigratedAt
		}

		entries = append(entries, entry)
	}

	for _, rec := range records {
		if _, ok := candidates.Find(rec.Name); !ok {
			entries = append(entries, StatusEntry{
				Name:       rec.Name,
				Applied:    true,
				Orphan:     true,
				Batch:      rec.Batch,
				MigratedAt: rec.MigratedAt,
			})
		}
	}

	return entries, nil
}

func (r *Runner) rollback(
	ctx context.Context,
	candidates migration.Migrations,
	records database.Records,
	p database.Plan,
) ([]string, error) {
	batches := database.ResolveRollbackBatches(records, p.Target)
	if len(batches) == 0 {
		r.lg.Successf("nothing to roll back")
		return []string{}, nil
	}

	if missing := database.MissingDowns(candidates, records, batches); len(missing) > 0 {
		return []string{}, errors.Wrapf(database.ErrMissingDown, "[%s]", strings.Join(missing, ", "))
	}

	for _, name := range database.Orphans(candidates, records, batches) {
		r.lg.Warnf("[%s] is in the ledger but has no definition, skipping it", name)
	}

	scheduled := database.ScheduleForRollback(candidates, records, batches)
	if len(scheduled) == 0 {
		r.lg.Successf("nothing to roll back")
		return []string{}, nil
	}

	return r.execute(ctx, database.Down, scheduled, func(m migration.Migration) error {
		return r.store.DeleteRecord(ctx, m.Name)
	})
}

func (r *Runner) migrate(ctx context.Context, scheduled migration.Migrations, batch database.Batch) ([]string, error) {
	return r.execute(ctx, database.Up, scheduled, func(m migration.Migration) error {
		return r.store.InsertRecord(ctx, m.Name, batch, r.now())
	})
}

// execute runs the scheduled migrations strictly in order and stops at the first failure
func (r *Runner) execute(
	ctx context.Context,
	direction database.Direction,
	scheduled migration.Migrations,
	record func(m migration.Migration) error,
) ([]string, error) {
	conns := make([]migration.Conn, len(scheduled))
	for i := range scheduled {
		conn, err := r.conns.Resolve(scheduled[i].Connection)
		if err != nil {
			return []string{}, errors.Wrapf(err, "migration [%s]", scheduled[i].Name)
		}

		conns[i] = conn
	}

	r.transition(Executing)

	done := make([]string, 0, len(scheduled))
	for i, m := range scheduled {
		fn := m.Up
		if direction == database.Down {
			fn = m.Down
		}

		r.lg.Debugf("going %s: %s on connection [%s]", direction, m.Name, conns[i].Name())

		start := time.Now()
		if err := fn(ctx, conns[i]); err != nil {
			r.recorder.MigrationFinished(string(direction), conns[i].Name(), metrics.StatusFailed, time.Since(start))

			return done, &database.ExecutionError{
				Name:      m.Name,
				Direction: direction,
				Migrated:  append([]string(nil), done...),
				Err:       err,
			}
		}

		if err := record(m); err != nil {
			r.recorder.MigrationFinished(string(direction), conns[i].Name(), metrics.StatusFailed, time.Since(start))
			return done, err
		}

		r.recorder.MigrationFinished(string(direction), conns[i].Name(), metrics.StatusCompleted, time.Since(start))

		if direction == database.Up {
			r.lg.Successf("migrated: %s on connection [%s]", m.Name, conns[i].Name())
		} else {
			r.lg.Successf("rolled back: %s on connection [%s]", m.Name, conns[i].Name())
		}

		done = append(done, m.Name)
	}

	return done, nil
}

func (r *Runner) execUnderLock(ctx context.Context, operation string, f func(records database.Records) error) (err error) {
	r.transition(Locking)
	if err := r.locker.Acquire(ctx); err != nil {
		r.transition(Unlocked)
		return errors.Wrapf(err, "could not start [%s]", operation)
	}

	r.transition(Locked)

	defer func() {
		if err != nil && r.keepLockOnFailure && r.State() == Executing {
			r.lg.Warnf("[%s] failed mid-run, the lock is kept until released by hand", operation)
			r.transition(Locked)
			return
		}

		r.transition(Unlocking)

		// the lock has to go even if the caller gave up on ctx
		if releaseErr := r.locker.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			if err == nil {
				err = releaseErr
			} else {
				r.lg.Error(errors.Wrap(releaseErr, "could not release the lock"))
			}
		}

		r.transition(Unlocked)
	}()

	if err := r.store.EnsureLedgerTable(ctx); err != nil {
		return err
	}

	records, err := r.store.ReadRecords(ctx)
	if err != nil {
		return err
	}

	return f(records)
}

func (r *Runner) finish(operation string, result Result, err error) (Result, error) {
	if err != nil {
		result.Status = StatusFailed
		r.recorder.RunFinished(operation, string(StatusFailed))
		return result, err
	}

	r.recorder.RunFinished(operation, string(StatusCompleted))

	return result, nil
}

func (r *Runner) transition(s State) {
	r.mu.Lock()
	prev := r.state
	r.state = s
	r.mu.Unlock()

	if prev != s {
		r.lg.Debugf("%s -> %s", prev, s)
	}
}

func withoutNames(records database.Records, names []string) database.Records {
	skip := make(map[string]struct{}, len(names))
	for _, n := range names {
		skip[n] = struct{}{}
	}

	result := make(database.Records, 0, len(records))
	for _, rec := range records {
		if _, ok := skip[rec.Name]; !ok {
			result = append(result, rec)
		}
	}

	return result
}
