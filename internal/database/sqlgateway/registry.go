package sqlgateway

import (
	"github.com/denismitr/tide/internal/database"
	"github.com/denismitr/tide/migration"
	"github.com/pkg/errors"
)

var ErrDuplicateConnection = errors.New("connection is registered twice")

// Registry maps logical connection names to live connections.
// The primary connection also holds the ledger and the lock table.
type Registry struct {
	primary *Connection
	conns   map[string]*Connection
	order   []string
}

func NewRegistry(primary *Connection, others ...*Connection) (*Registry, error) {
	if primary == nil {
		return nil, errors.New("primary connection is required")
	}

	r := &Registry{
		primary: primary,
		conns:   map[string]*Connection{primary.Name(): primary},
		order:   []string{primary.Name()},
	}

	for _, c := range others {
		if err := r.add(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Registry) add(c *Connection) error {
	if _, ok := r.conns[c.Name()]; ok {
		return errors.Wrapf(ErrDuplicateConnection, "%s", c.Name())
	}

	r.conns[c.Name()] = c
	r.order = append(r.order, c.Name())

	return nil
}

func (r *Registry) Primary() *Connection {
	return r.primary
}

// Get resolves a connection by name, an empty name means the primary one
func (r *Registry) Get(name string) (*Connection, error) {
	if name == "" {
		return r.primary, nil
	}

	c, ok := r.conns[name]
	if !ok {
		return nil, errors.Wrapf(database.ErrUnknownConnection, "%s", name)
	}

	return c, nil
}

// Resolve is Get narrowed to what a migration is allowed to see
func (r *Registry) Resolve(name string) (migration.Conn, error) {
	c, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (r *Registry) Names() []string {
	result := make([]string, len(r.order))
	copy(result, r.order)
	return result
}

func (r *Registry) Each(fn func(c *Connection) error) error {
	for _, name := range r.order {
		if err := fn(r.conns[name]); err != nil {
			return err
		}
	}

	return nil
}

// Close closes every connection and reports the first failure
func (r *Registry) Close() error {
	var first error
	for _, name := range r.order {
		if err := r.conns[name].Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}
