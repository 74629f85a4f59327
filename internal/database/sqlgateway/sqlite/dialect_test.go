package sqlite

import (
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestDialect(t *testing.T) {
	d := NewDialect("schema_changes")

	t.Run("bookkeeping queries target the namespace", func(t *testing.T) {
		assert.Contains(t, d.CreateLedgerQuery(), "CREATE TABLE IF NOT EXISTS schema_changes (")
		assert.Contains(t, d.CreateLedgerQuery(), "migration_time")
		assert.Contains(t, d.CreateLockQuery(), "CREATE TABLE IF NOT EXISTS schema_changes_lock (")
		assert.Contains(t, d.CreateLockQuery(), "is_locked")
		assert.Equal(t, "DELETE FROM schema_changes WHERE name = ?;", d.DeleteRecordQuery())
		assert.Equal(t, "DROP TABLE IF EXISTS schema_changes_lock;", d.DropLockQuery())
		assert.Equal(t, DriverName, d.Driver())
	})

	t.Run("columns query binds the table name", func(t *testing.T) {
		q, args := d.ColumnsQuery("users")
		assert.Contains(t, q, "pragma_table_info")
		assert.Equal(t, []interface{}{"users"}, args)
	})

	t.Run("constraint errors are duplicate keys", func(t *testing.T) {
		err := errors.Wrap(sqlite3.Error{Code: sqlite3.ErrConstraint}, "insert lock")
		assert.True(t, d.IsDuplicateKey(err))
		assert.False(t, d.IsDuplicateKey(sqlite3.Error{Code: sqlite3.ErrBusy}))
		assert.False(t, d.IsDuplicateKey(errors.New("other")))
	})
}
