package sqlgateway

import (
	"context"
	"database/sql"

	"github.com/denismitr/tide/internal/database"
	"github.com/denismitr/tide/internal/logger"
	"github.com/denismitr/tide/migration"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const DefaultConnection = "default"

// Connection is one named database a migration can run against
type Connection struct {
	name    string
	db      *sqlx.DB
	dialect database.Dialect
	lg      logger.Logger
}

var _ migration.Conn = (*Connection)(nil)

func NewConnection(name string, db *sqlx.DB, dialect database.Dialect, lg logger.Logger) *Connection {
	if name == "" {
		name = DefaultConnection
	}

	if lg == nil {
		lg = &logger.NullLogger{}
	}

	return &Connection{name: name, db: db, dialect: dialect, lg: lg}
}

func (c *Connection) Name() string {
	return c.name
}

func (c *Connection) DB() *sqlx.DB {
	return c.db
}

func (c *Connection) Dialect() database.Dialect {
	return c.dialect
}

func (c *Connection) SetLogger(lg logger.Logger) {
	c.lg = lg
}

func (c *Connection) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	c.lg.SQL(query, args...)
	return c.db.ExecContext(ctx, query, args...)
}

func (c *Connection) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	c.lg.SQL(query, args...)
	return c.db.QueryxContext(ctx, query, args...)
}

func (c *Connection) Tables(ctx context.Context) ([]string, error) {
	var tables []string
	if err := c.db.SelectContext(ctx, &tables, c.dialect.ShowTablesQuery()); err != nil {
		return nil, errors.Wrapf(err, "could not list tables on connection [%s]", c.name)
	}

	return tables, nil
}

func (c *Connection) Columns(ctx context.Context, table string) ([]string, error) {
	query, args := c.dialect.ColumnsQuery(table)

	var columns []string
	if err := c.db.SelectContext(ctx, &columns, query, args...); err != nil {
		return nil, errors.Wrapf(err, "could not list columns of [%s] on connection [%s]", table, c.name)
	}

	return columns, nil
}

func (c *Connection) Close() error {
	if err := c.db.Close(); err != nil {
		return errors.Wrapf(err, "could not close connection [%s]", c.name)
	}

	return nil
}
