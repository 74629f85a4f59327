package sqlgateway

import (
	"context"
	"time"

	"github.com/denismitr/tide/internal/retry"
	"github.com/pkg/errors"
)

const (
	DefaultConnectionAttempts    = 100
	DefaultConnectionTimeout     = 60 * time.Second
	DefaultConnectionAttemptStep = 2 * time.Second
)

type ConnectOptions struct {
	MaxAttempts int
	MaxTimeout  time.Duration
	RetryStep   time.Duration
}

func NewDefaultConnectOptions() *ConnectOptions {
	return &ConnectOptions{
		MaxAttempts: DefaultConnectionAttempts,
		MaxTimeout:  DefaultConnectionTimeout,
		RetryStep:   DefaultConnectionAttemptStep,
	}
}

type Connector interface {
	Connect(ctx context.Context, c *Connection) error
}

// RetryingConnector waits for a database that may still be starting up
type RetryingConnector struct {
	options *ConnectOptions
}

var _ Connector = (*RetryingConnector)(nil)

func NewRetryingConnector(options *ConnectOptions) *RetryingConnector {
	if options == nil {
		options = NewDefaultConnectOptions()
	}

	return &RetryingConnector{options: options}
}

func (rc *RetryingConnector) Connect(ctx context.Context, c *Connection) error {
	ctx, cancel := context.WithTimeout(ctx, rc.options.MaxTimeout)
	defer cancel()

	err := retry.Incremental(ctx, rc.options.RetryStep, rc.options.MaxAttempts, func(attempt int) error {
		if err := Ping(ctx, c); err != nil {
			c.lg.Debugf("connection [%s] is not ready, attempt %d: %v", c.Name(), attempt, err)
			return retry.Error(err, attempt)
		}

		return nil
	})

	if err != nil {
		return errors.Wrapf(err, "could not connect to [%s]", c.Name())
	}

	return nil
}

// Ping checks that the connection answers a trivial query
func Ping(ctx context.Context, c *Connection) error {
	if err := c.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "db ping failed")
	}

	var result int
	if err := c.db.QueryRowxContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return errors.Wrap(err, "select 1 failed")
	}

	return nil
}
