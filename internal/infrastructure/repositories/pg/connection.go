package pg

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// ConnectionConfig holds PostgreSQL connection configuration
type ConnectionConfig struct {
	URI             string        `yaml:"uri" env:"FILESTORE_PG_URI"`
	MaxConns        int32         `yaml:"max-conns" env-default:"30"`
	MinConns        int32         `yaml:"min-conns" env-default:"3"`
	MaxConnLifetime time.Duration `yaml:"max-conn-lifetime" env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max-conn-idle-time" env-default:"30m"`
	HealthTimeout   time.Duration `yaml:"health-timeout" env-default:"30s"`
	HealthInterval  time.Duration `yaml:"health-interval" env-default:"30s"`
}

// DefaultConnectionConfig returns production-ready defaults
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxConns:        30,
		MinConns:        3,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		HealthTimeout:   30 * time.Second,
		HealthInterval:  30 * time.Second,
	}
}

// ConnectionManager owns the pgx pool and tracks its health
type ConnectionManager struct {
	config ConnectionConfig
	pool   atomic.Pointer[pgxpool.Pool]

	healthTicker *time.Ticker
	stopHealth   chan struct{}
	isHealthy    atomic.Bool
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.HealthTimeout <= 0 {
		config.HealthTimeout = 30 * time.Second
	}
	if config.HealthInterval <= 0 {
		config.HealthInterval = 30 * time.Second
	}
	return &ConnectionManager{
		config:     config,
		stopHealth: make(chan struct{}),
	}
}

// Connect creates the pool, pings the server and starts health monitoring
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	poolConfig, err := pgxpool.ParseConfig(cm.config.URI)
	if err != nil {
		return errors.Wrap(err, "failed to parse connection URI")
	}
	if cm.config.MaxConns > 0 {
		poolConfig.MaxConns = cm.config.MaxConns
	}
	if cm.config.MinConns > 0 {
		poolConfig.MinConns = cm.config.MinConns
	}
	if cm.config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cm.config.MaxConnLifetime
	}
	if cm.config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cm.config.MaxConnIdleTime
	}
	poolConfig.HealthCheckPeriod = cm.config.HealthInterval
	poolConfig.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return errors.Wrap(err, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return errors.Wrap(err, "failed to ping database")
	}

	cm.pool.Store(pool)
	cm.isHealthy.Store(true)
	cm.startHealthMonitoring()
	return nil
}

// Close closes the connection pool and stops health monitoring
func (cm *ConnectionManager) Close() error {
	if cm.healthTicker != nil {
		cm.healthTicker.Stop()
		close(cm.stopHealth)
		cm.healthTicker = nil
	}
	if pool := cm.pool.Swap(nil); pool != nil {
		pool.Close()
	}
	cm.isHealthy.Store(false)
	return nil
}

// Pool returns the current connection pool
func (cm *ConnectionManager) Pool() *pgxpool.Pool {
	return cm.pool.Load()
}

// IsHealthy returns the last observed health status
func (cm *ConnectionManager) IsHealthy() bool {
	return cm.isHealthy.Load()
}

var errNoPool = errors.New("connection pool not initialized")

// BeginTx starts a read-committed transaction
func (cm *ConnectionManager) BeginTx(ctx context.Context, mode pgx.TxAccessMode) (pgx.Tx, error) {
	pool := cm.Pool()
	if pool == nil {
		return nil, errNoPool
	}
	return pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: mode,
	})
}

// WithTx executes fn within a read-write transaction
func (cm *ConnectionManager) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := cm.BeginTx(ctx, pgx.ReadWrite)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (cm *ConnectionManager) startHealthMonitoring() {
	cm.healthTicker = time.NewTicker(cm.config.HealthInterval)
	ticker, stop := cm.healthTicker, cm.stopHealth
	go func() {
		for {
			select {
			case <-ticker.C:
				cm.performHealthCheck()
			case <-stop:
				return
			}
		}
	}()
}

func (cm *ConnectionManager) performHealthCheck() {
	pool := cm.Pool()
	if pool == nil {
		cm.isHealthy.Store(false)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cm.config.HealthTimeout)
	defer cancel()
	cm.isHealthy.Store(pool.Ping(ctx) == nil)
}
