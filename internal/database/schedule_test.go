package database

import (
	"context"
	"testing"
	"time"

	"github.com/denismitr/tide/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, migration.Conn) error { return nil }

func TestSchedule(t *testing.T) {
	t.Parallel()

	now := time.Now()

	candidates := migration.MustMigrations(
		migration.New("1596897167_create_foo", noop, noop),
		migration.New("1596899255_create_bar", noop, noop),
		migration.New("1596899399_create_baz", noop, noop),
		migration.New("1596899500_seed_baz", noop, nil),
	)

	t.Run("it will schedule everything for migration if nothing was migrated", func(t *testing.T) {
		scheduled := ScheduleForMigration(candidates, nil)
		assert.Equal(t, []string{
			"1596897167_create_foo",
			"1596899255_create_bar",
			"1596899399_create_baz",
			"1596899500_seed_baz",
		}, scheduled.Names())
	})

	t.Run("it will skip migrations already in the ledger", func(t *testing.T) {
		records := Records{
			{Name: "1596897167_create_foo", Batch: 1, MigratedAt: now},
			{Name: "1596899399_create_baz", Batch: 1, MigratedAt: now},
		}

		scheduled := ScheduleForMigration(candidates, records)
		assert.Equal(t, []string{"1596899255_create_bar", "1596899500_seed_baz"}, scheduled.Names())
	})

	t.Run("it will schedule nothing when every candidate was migrated", func(t *testing.T) {
		var records Records
		for _, name := range candidates.Names() {
			records = append(records, Record{Name: name, Batch: 1})
		}

		assert.Empty(t, ScheduleForMigration(candidates, records))
	})

	t.Run("it will schedule the latest batch for rollback in reverse name order", func(t *testing.T) {
		records := Records{
			{Name: "1596897167_create_foo", Batch: 1},
			{Name: "1596899255_create_bar", Batch: 2},
			{Name: "1596899399_create_baz", Batch: 2},
		}

		scheduled := ScheduleForRollback(candidates, records, []Batch{2})
		assert.Equal(t, []string{"1596899399_create_baz", "1596899255_create_bar"}, scheduled.Names())
	})

	t.Run("it will schedule several batches newest first", func(t *testing.T) {
		records := Records{
			{Name: "1596897167_create_foo", Batch: 1},
			{Name: "1596899399_create_baz", Batch: 1},
			{Name: "1596899255_create_bar", Batch: 2},
		}

		scheduled := ScheduleForRollback(candidates, records, []Batch{2, 1})
		assert.Equal(t, []string{
			"1596899255_create_bar",
			"1596899399_create_baz",
			"1596897167_create_foo",
		}, scheduled.Names())
	})

	t.Run("it will not schedule candidates missing from the ledger", func(t *testing.T) {
		records := Records{{Name: "1596897167_create_foo", Batch: 1}}

		scheduled := ScheduleForRollback(candidates, records, []Batch{1})
		assert.Equal(t, []string{"1596897167_create_foo"}, scheduled.Names())
	})

	t.Run("irreversible migrations are left out of the rollback diff and reported", func(t *testing.T) {
		records := Records{
			{Name: "1596899399_create_baz", Batch: 3},
			{Name: "1596899500_seed_baz", Batch: 3},
		}

		scheduled := ScheduleForRollback(candidates, records, []Batch{3})
		assert.Equal(t, []string{"1596899399_create_baz"}, scheduled.Names())
		assert.Equal(t, []string{"1596899500_seed_baz"}, MissingDowns(candidates, records, []Batch{3}))
	})

	t.Run("ledger rows without a candidate are orphans", func(t *testing.T) {
		records := Records{
			{Name: "1596897167_create_foo", Batch: 1},
			{Name: "1500000000_legacy", Batch: 1},
			{Name: "1600000000_removed", Batch: 1},
		}

		assert.Equal(t, []string{"1600000000_removed", "1500000000_legacy"}, Orphans(candidates, records, []Batch{1}))
	})
}

func TestScheduleUsersLiteralCase(t *testing.T) {
	users := migration.MustMigrations(
		migration.New("2015-01-20", migration.Exec("CREATE TABLE users (id INTEGER PRIMARY KEY)"), nil),
	)

	t.Run("empty ledger yields the name going up", func(t *testing.T) {
		assert.Equal(t, []string{"2015-01-20"}, ScheduleForMigration(users, nil).Names())
	})

	t.Run("migrated name without down yields nothing going down", func(t *testing.T) {
		records := Records{{Name: "2015-01-20", Batch: 1}}
		batches := ResolveRollbackBatches(records, nil)
		require.Equal(t, []Batch{1}, batches)
		assert.Empty(t, ScheduleForRollback(users, records, batches))
	})
}
