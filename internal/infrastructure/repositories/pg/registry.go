package pg

import (
	"context"

	"filestore/internal/domain/ports"
	"filestore/internal/patterns"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

var (
	_ ports.Registry      = (*Registry)(nil)
	_ ports.HealthChecker = (*Registry)(nil)
)

// Registry is the PostgreSQL resource store
type Registry struct {
	subject patterns.Subject
	conn    *ConnectionManager
}

// NewRegistryFromPG connects, applies migrations and returns the registry
func NewRegistryFromPG(ctx context.Context, cfg ConnectionConfig) (*Registry, error) {
	cm := NewConnectionManager(cfg)
	if err := cm.Connect(ctx); err != nil {
		return nil, classify(err, "NewRegistryFromPG")
	}
	if err := Migrate(ctx, cm); err != nil {
		_ = cm.Close()
		return nil, errors.WithMessage(err, "NewRegistryFromPG")
	}
	return &Registry{
		subject: patterns.NewSubject(),
		conn:    cm,
	}, nil
}

// Subject impl ports.Registry
func (r *Registry) Subject() patterns.Subject {
	return r.subject
}

// Connection exposes the connection manager
func (r *Registry) Connection() *ConnectionManager {
	return r.conn
}

// Ping impl ports.HealthChecker. It reports the last background check.
func (r *Registry) Ping(context.Context) error {
	if !r.conn.IsHealthy() {
		return errors.Wrap(ports.ErrStoreUnavailable, "postgres health check failed")
	}
	return nil
}

// Writer impl ports.Registry
func (r *Registry) Writer(ctx context.Context) (ports.Writer, error) {
	tx, err := r.conn.BeginTx(ctx, pgx.ReadWrite)
	if err != nil {
		return nil, classify(err, "begin write tx")
	}
	return &writer{
		registry: r,
		tx:       tx,
		ctx:      ctx,
	}, nil
}

// Reader impl ports.Registry
func (r *Registry) Reader(ctx context.Context) (ports.Reader, error) {
	tx, err := r.conn.BeginTx(ctx, pgx.ReadOnly)
	if err != nil {
		return nil, classify(err, "begin read tx")
	}
	return &reader{
		tx:  tx,
		ctx: ctx,
	}, nil
}

// Close impl ports.Registry
func (r *Registry) Close() error {
	return r.conn.Close()
}
