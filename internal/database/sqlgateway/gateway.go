package sqlgateway

import (
	"context"
	"time"

	"github.com/denismitr/tide/internal/database"
	"github.com/denismitr/tide/internal/logger"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const (
	opEnsureLedger = "ensure ledger table"
	opEnsureLock   = "ensure lock table"
	opReadRecords  = "read ledger"
	opInsertRecord = "insert ledger record"
	opDeleteRecord = "delete ledger record"
	opInsertLock   = "insert lock"
	opReadLock     = "read lock"
	opDropLedger   = "drop ledger table"
	opDropLock     = "drop lock table"
)

// Gateway keeps the ledger and the lock table on the primary connection
type Gateway struct {
	conn    *Connection
	dialect database.Dialect
	txm     TxManager
	lg      logger.Logger
}

var _ database.Store = (*Gateway)(nil)

func NewGateway(primary *Connection) *Gateway {
	return &Gateway{
		conn:    primary,
		dialect: primary.Dialect(),
		txm:     NewTxManager(primary.DB()),
		lg:      primary.lg,
	}
}

func (g *Gateway) SetLogger(lg logger.Logger) {
	g.lg = lg
}

func (g *Gateway) EnsureLedgerTable(ctx context.Context) error {
	return g.exec(ctx, opEnsureLedger, g.dialect.CreateLedgerQuery())
}

func (g *Gateway) EnsureLockTable(ctx context.Context) error {
	return g.exec(ctx, opEnsureLock, g.dialect.CreateLockQuery())
}

func (g *Gateway) DropLedgerTable(ctx context.Context) error {
	return g.exec(ctx, opDropLedger, g.dialect.DropLedgerQuery())
}

func (g *Gateway) DropLockTable(ctx context.Context) error {
	return g.exec(ctx, opDropLock, g.dialect.DropLockQuery())
}

func (g *Gateway) ReadRecords(ctx context.Context) (database.Records, error) {
	query := g.dialect.ReadRecordsQuery()
	g.lg.SQL(query)

	var records database.Records
	err := g.txm.ReadOnly(ctx, func(ctx context.Context, tx Tx) error {
		return sqlx.SelectContext(ctx, tx, &records, query)
	}, Isolation(ReadCommitted))

	if err != nil {
		return nil, database.NewBookkeepingError(err, opReadRecords)
	}

	return records, nil
}

func (g *Gateway) InsertRecord(ctx context.Context, name string, batch database.Batch, at time.Time) error {
	query := g.dialect.InsertRecordQuery()
	g.lg.SQL(query, name, batch, at)

	err := g.txm.ReadWrite(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.ExecContext(ctx, query, name, batch, at)
		return err
	}, Isolation(ReadCommitted))

	if err != nil {
		return database.NewBookkeepingError(errors.Wrapf(err, "migration [%s]", name), opInsertRecord)
	}

	return nil
}

func (g *Gateway) DeleteRecord(ctx context.Context, name string) error {
	query := g.dialect.DeleteRecordQuery()
	g.lg.SQL(query, name)

	err := g.txm.ReadWrite(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.ExecContext(ctx, query, name)
		return err
	}, Isolation(ReadCommitted))

	if err != nil {
		return database.NewBookkeepingError(errors.Wrapf(err, "migration [%s]", name), opDeleteRecord)
	}

	return nil
}

// InsertLock writes the single lock row, a row that is already there means ErrLocked
func (g *Gateway) InsertLock(ctx context.Context) error {
	err := g.txm.ReadWrite(ctx, func(ctx context.Context, tx Tx) error {
		held, err := g.countLocks(ctx, tx)
		if err != nil {
			return err
		}

		if held > 0 {
			return database.ErrLocked
		}

		query := g.dialect.InsertLockQuery()
		g.lg.SQL(query, true)

		_, err = tx.ExecContext(ctx, query, true)
		return err
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrLocked):
		return err
	case g.dialect.IsDuplicateKey(err):
		return errors.Wrap(database.ErrLocked, "lock row was inserted concurrently")
	default:
		return database.NewBookkeepingError(err, opInsertLock)
	}
}

// ReadLock reports whether a held lock row exists. It does not create
// the lock table, so querying a released lock fails with a missing table error.
func (g *Gateway) ReadLock(ctx context.Context) (bool, error) {
	var held int
	err := g.txm.WithoutTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		held, err = g.countLocks(ctx, tx)
		return err
	})

	if err != nil {
		return false, database.NewBookkeepingError(err, opReadLock)
	}

	return held > 0, nil
}

func (g *Gateway) ShowTables(ctx context.Context) ([]string, error) {
	return g.conn.Tables(ctx)
}

func (g *Gateway) Columns(ctx context.Context, table string) ([]string, error) {
	return g.conn.Columns(ctx, table)
}

func (g *Gateway) countLocks(ctx context.Context, q sqlx.QueryerContext) (int, error) {
	query := g.dialect.ReadLockQuery()
	g.lg.SQL(query, true)

	var count int
	if err := sqlx.GetContext(ctx, q, &count, query, true); err != nil {
		return 0, err
	}

	return count, nil
}

func (g *Gateway) exec(ctx context.Context, op, query string) error {
	g.lg.SQL(query)
	if _, err := g.conn.DB().ExecContext(ctx, query); err != nil {
		return database.NewBookkeepingError(err, op)
	}

	return nil
}
