package migration

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	executed []string
	failOn   string
}

func (c *recordingConn) Name() string { return "default" }

func (c *recordingConn) ExecContext(_ context.Context, query string, _ ...interface{}) (sql.Result, error) {
	if query == c.failOn {
		return nil, errors.New("boom")
	}

	c.executed = append(c.executed, query)
	return nil, nil
}

func (c *recordingConn) QueryxContext(context.Context, string, ...interface{}) (*sqlx.Rows, error) {
	return nil, nil
}

func (c *recordingConn) Tables(context.Context) ([]string, error) { return nil, nil }

func (c *recordingConn) Columns(context.Context, string) ([]string, error) { return nil, nil }

func noop(context.Context, Conn) error { return nil }

func Test_NewMigrationsSortsByName(t *testing.T) {
	m, err := NewMigrations(
		New("2015-01-22_create_baz", noop, noop),
		New("2015-01-20_create_foo", noop, nil),
		New("2015-01-21_create_bar", noop, noop, OnConnection("alternate")),
	)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"2015-01-20_create_foo",
		"2015-01-21_create_bar",
		"2015-01-22_create_baz",
	}, m.Names())

	bar, ok := m.Find("2015-01-21_create_bar")
	require.True(t, ok)
	assert.Equal(t, "alternate", bar.Connection)
	assert.True(t, bar.Reversible())

	foo, ok := m.Find("2015-01-20_create_foo")
	require.True(t, ok)
	assert.Equal(t, "", foo.Connection)
	assert.False(t, foo.Reversible())

	_, ok = m.Find("missing")
	assert.False(t, ok)
}

func Test_NewMigrationsRejectsInvalidDefinitions(t *testing.T) {
	tt := []struct {
		name        string
		definitions []Migration
		expected    error
	}{
		{
			name:        "empty name",
			definitions: []Migration{New(" ", noop, noop)},
			expected:    ErrInvalidMigration,
		},
		{
			name:        "missing up func",
			definitions: []Migration{New("2015-01-20", nil, noop)},
			expected:    ErrInvalidMigration,
		},
		{
			name: "duplicate names",
			definitions: []Migration{
				New("2015-01-20", noop, noop),
				New("2015-01-20", noop, nil),
			},
			expected: ErrDuplicateName,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			m, err := NewMigrations(tc.definitions...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.expected))
			assert.Nil(t, m)

			err = Migrations(tc.definitions).Validate()
			assert.True(t, errors.Is(err, tc.expected))
		})
	}
}

func Test_ValidateAcceptsDistinctDefinitions(t *testing.T) {
	m := Migrations{New("2015-01-21", noop, nil), New("2015-01-20", noop, noop)}
	assert.NoError(t, m.Validate())
	assert.NoError(t, Migrations{}.Validate())
}

func Test_MustMigrationsPanicsOnDuplicates(t *testing.T) {
	assert.Panics(t, func() {
		MustMigrations(New("a", noop, nil), New("a", noop, nil))
	})
}

func Test_ExecRunsStatementsInOrder(t *testing.T) {
	t.Run("skips blank statements", func(t *testing.T) {
		conn := &recordingConn{}
		f := Exec("CREATE TABLE foo (id INTEGER)", "  ", "CREATE TABLE bar (id INTEGER)")

		require.NoError(t, f(context.Background(), conn))
		assert.Equal(t, []string{"CREATE TABLE foo (id INTEGER)", "CREATE TABLE bar (id INTEGER)"}, conn.executed)
	})

	t.Run("stops at the first failing statement", func(t *testing.T) {
		conn := &recordingConn{failOn: "DROP TABLE foo"}
		f := Exec("CREATE TABLE baz (id INTEGER)", "DROP TABLE foo", "DROP TABLE bar")

		err := f(context.Background(), conn)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DROP TABLE foo")
		assert.Equal(t, []string{"CREATE TABLE baz (id INTEGER)"}, conn.executed)
	})
}
