package sqlgateway

import (
	"context"

	"github.com/denismitr/tide/internal/database"
)

// TableLocker coordinates runs through the <ns>_lock table.
// It never waits: a held lock fails the caller right away.
type TableLocker struct {
	gateway *Gateway
}

var _ database.Locker = (*TableLocker)(nil)

func NewTableLocker(g *Gateway) *TableLocker {
	return &TableLocker{gateway: g}
}

func (l *TableLocker) Acquire(ctx context.Context) error {
	if err := l.gateway.EnsureLockTable(ctx); err != nil {
		return err
	}

	return l.gateway.InsertLock(ctx)
}

func (l *TableLocker) CheckLocked(ctx context.Context) (bool, error) {
	return l.gateway.ReadLock(ctx)
}

// Release drops the lock table, which removes the row along with it
func (l *TableLocker) Release(ctx context.Context) error {
	return l.gateway.DropLockTable(ctx)
}

// NullLocker skips coordination entirely, for single-writer setups
type NullLocker struct{}

var _ database.Locker = NullLocker{}

func (NullLocker) Acquire(context.Context) error { return nil }

func (NullLocker) CheckLocked(context.Context) (bool, error) { return false, nil }

func (NullLocker) Release(context.Context) error { return nil }
