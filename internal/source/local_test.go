package source

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/denismitr/tide/migration"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	statements []string
}

func (c *recordingConn) Name() string { return "default" }

func (c *recordingConn) ExecContext(_ context.Context, query string, _ ...interface{}) (sql.Result, error) {
	c.statements = append(c.statements, query)
	return nil, nil
}

func (c *recordingConn) QueryxContext(context.Context, string, ...interface{}) (*sqlx.Rows, error) {
	return nil, errors.New("not supported")
}

func (c *recordingConn) Tables(context.Context) ([]string, error) { return nil, nil }

func (c *recordingConn) Columns(context.Context, string) ([]string, error) { return nil, nil }

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, contents := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
	}

	return dir
}

func TestLocalFileSource_Select(t *testing.T) {
	ctx := context.Background()

	t.Run("pairs are read and sorted by key", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"20200102_create_posts.up.sql":   "CREATE TABLE posts (id INTEGER PRIMARY KEY);",
			"20200102_create_posts.down.sql": "DROP TABLE posts;",
			"20200101_create_users.up.sql":   "CREATE TABLE users (id INTEGER PRIMARY KEY);\nCREATE INDEX users_id ON users (id);",
			"20200101_create_users.down.sql": "DROP TABLE users;",
			"README.md":                      "not a migration",
		})

		migrations, err := NewLocalFileSource(dir, nil).Select(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"20200101_create_users", "20200102_create_posts"}, migrations.Names())

		conn := &recordingConn{}
		require.NoError(t, migrations[0].Up(ctx, conn))
		require.NoError(t, migrations[0].Down(ctx, conn))
		assert.Equal(t, []string{
			"CREATE TABLE users (id INTEGER PRIMARY KEY);",
			"CREATE INDEX users_id ON users (id);",
			"DROP TABLE users;",
		}, conn.statements)
	})

	t.Run("missing down file makes the migration irreversible", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"2015-01-20.up.sql": "CREATE TABLE users (id INTEGER PRIMARY KEY);",
		})

		migrations, err := NewLocalFileSource(dir, nil).Select(ctx)
		require.NoError(t, err)
		require.Len(t, migrations, 1)
		assert.Equal(t, "2015-01-20", migrations[0].Name)
		assert.False(t, migrations[0].Reversible())
	})

	t.Run("connection directive routes the migration", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"20200103_reports.up.sql":   "-- tide:connection alternate\nCREATE TABLE reports (id INTEGER);",
			"20200103_reports.down.sql": "-- tide:connection alternate\nDROP TABLE reports;",
		})

		migrations, err := NewLocalFileSource(dir, nil).Select(ctx)
		require.NoError(t, err)
		assert.Equal(t, "alternate", migrations[0].Connection)
	})

	t.Run("conflicting directives are rejected", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"20200103_reports.up.sql":   "-- tide:connection alternate\nCREATE TABLE reports (id INTEGER);",
			"20200103_reports.down.sql": "-- tide:connection reporting\nDROP TABLE reports;",
		})

		_, err := NewLocalFileSource(dir, nil).Select(ctx)
		assert.True(t, errors.Is(err, ErrConnectionMismatch))
	})

	t.Run("down file without up file is rejected", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"20200104_orphan.down.sql": "DROP TABLE orphan;",
		})

		_, err := NewLocalFileSource(dir, nil).Select(ctx)
		assert.True(t, errors.Is(err, ErrMissingUpFile))
	})

	t.Run("empty folder has no migrations", func(t *testing.T) {
		_, err := NewLocalFileSource(t.TempDir(), nil).Select(ctx)
		assert.True(t, errors.Is(err, ErrNoMigrations))
	})
}

func TestLocalFileSource_Create(t *testing.T) {
	dir := t.TempDir()
	lfs := NewLocalFileSource(dir, nil)

	assert.True(t, lfs.IsValid())
	assert.False(t, lfs.AlreadyExists("20200101_users"))

	files, err := lfs.Create("20200101_users", true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "20200101_users.up.sql"),
		filepath.Join(dir, "20200101_users.down.sql"),
	}, files)
	assert.True(t, lfs.AlreadyExists("20200101_users"))

	_, err = lfs.Create("users table", false)
	assert.True(t, errors.Is(err, ErrNotAMigrationFile))

	assert.False(t, NewLocalFileSource(filepath.Join(dir, "missing"), nil).IsValid())
}

func TestParseScript(t *testing.T) {
	conn, statements := parseScript(`-- tide:connection alternate
-- a comment

CREATE TABLE reports (
    id INTEGER PRIMARY KEY,
    title TEXT
);
INSERT INTO reports (title) VALUES ('a')`)

	assert.Equal(t, "alternate", conn)
	assert.Equal(t, []string{
		"CREATE TABLE reports (\n    id INTEGER PRIMARY KEY,\n    title TEXT\n);",
		"INSERT INTO reports (title) VALUES ('a')",
	}, statements)
}

func TestInMemorySource(t *testing.T) {
	s, err := NewInMemorySource(
		migration.New("2", migration.Exec("SELECT 2"), nil),
		migration.New("1", migration.Exec("SELECT 1"), nil),
	)
	require.NoError(t, err)

	migrations, err := s.Select(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, migrations.Names())

	empty, err := NewInMemorySource()
	require.NoError(t, err)
	_, err = empty.Select(context.Background())
	assert.True(t, errors.Is(err, ErrNoMigrations))
}
