package repositories

import (
	"context"
	"fmt"
	"time"

	"filestore/internal/domain/ports"
	"filestore/internal/infrastructure/repositories/mem"
	"filestore/internal/infrastructure/repositories/mongo"
	"filestore/internal/infrastructure/repositories/pg"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"github.com/pkg/errors"
)

// RepositoryType represents the type of repository backend
type RepositoryType string

const (
	RepositoryTypeMemory     RepositoryType = "memory"
	RepositoryTypePostgreSQL RepositoryType = "postgresql"
	RepositoryTypeMongoDB    RepositoryType = "mongodb"
)

// Config holds configuration for repository factory
type Config struct {
	Type RepositoryType `yaml:"type" env:"FILESTORE_STORE_TYPE" env-default:"memory"`

	PostgreSQL pg.ConnectionConfig `yaml:"postgresql"`
	MongoDB    mongo.Config        `yaml:"mongodb"`

	// ConnectTimeout bounds retries of the initial connection
	ConnectTimeout time.Duration `yaml:"connect-timeout" env-default:"30s"`
}

// Validate checks the selected backend has what it needs
func (c Config) Validate() error {
	switch c.Type {
	case RepositoryTypeMemory, "":
		return nil
	case RepositoryTypePostgreSQL:
		if c.PostgreSQL.URI == "" {
			return errors.New("store.postgresql.uri is required")
		}
	case RepositoryTypeMongoDB:
		if c.MongoDB.URL == "" {
			return errors.New("store.mongodb.url is required")
		}
	default:
		return fmt.Errorf("unsupported repository type: %s", c.Type)
	}
	return nil
}

// Factory creates repository instances based on configuration
type Factory struct {
	config Config
	log    logr.Logger
}

// NewFactory creates a new repository factory
func NewFactory(config Config, log logr.Logger) *Factory {
	return &Factory{
		config: config,
		log:    log.WithName("repositories"),
	}
}

// CreateRegistry creates a registry based on the configured type.
// Network backends are retried with exponential backoff until ConnectTimeout.
func (f *Factory) CreateRegistry(ctx context.Context) (ports.Registry, error) {
	if err := f.config.Validate(); err != nil {
		return nil, err
	}
	switch f.config.Type {
	case RepositoryTypeMemory, "":
		f.log.V(1).Info("using in-memory store")
		return mem.NewRegistry(), nil
	case RepositoryTypePostgreSQL:
		return f.connect(ctx, func(ctx context.Context) (ports.Registry, error) {
			return pg.NewRegistryFromPG(ctx, f.config.PostgreSQL)
		})
	default:
		return f.connect(ctx, func(ctx context.Context) (ports.Registry, error) {
			return mongo.NewRegistry(ctx, f.config.MongoDB)
		})
	}
}

func (f *Factory) connect(ctx context.Context, open func(context.Context) (ports.Registry, error)) (ports.Registry, error) {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = f.config.ConnectTimeout
	if b.MaxElapsedTime <= 0 {
		b.MaxElapsedTime = 30 * time.Second
	}

	var reg ports.Registry
	op := func() error {
		var err error
		reg, err = open(ctx)
		if err != nil && !ports.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		f.log.Info("store is not reachable, retrying", "type", f.config.Type, "in", next, "err", err.Error())
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, errors.WithMessagef(err, "open %s store", f.config.Type)
	}
	f.log.Info("store connected", "type", f.config.Type)
	return reg, nil
}
