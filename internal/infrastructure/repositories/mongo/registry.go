package mongo

import (
	"context"
	"sync"

	"filestore/internal/domain/ports"
	"filestore/internal/infrastructure/repositories/tables"
	"filestore/internal/patterns"

	"github.com/juju/mgo/v3"
	"github.com/pkg/errors"
)

var _ ports.Registry = (*Registry)(nil)

// Registry is the MongoDB resource store
type Registry struct {
	subject patterns.Subject
	session *mgo.Session
	dbName  string

	mu     sync.RWMutex
	closed bool
}

// NewRegistry dials the server and ensures indexes
func NewRegistry(_ context.Context, cfg Config) (*Registry, error) {
	if cfg.Database == "" {
		cfg.Database = tables.SchemaName
	}
	session, err := mgo.DialWithTimeout(cfg.URL, cfg.Timeout)
	if err != nil {
		return nil, errors.Wrapf(ports.ErrStoreUnavailable, "dial mongo: %v", err)
	}
	session.SetMode(mgo.Strong, true)
	r := &Registry{
		subject: patterns.NewSubject(),
		session: session,
		dbName:  cfg.Database,
	}
	if err = r.ensureIndexes(); err != nil {
		session.Close()
		return nil, err
	}
	return r, nil
}

func (r *Registry) ensureIndexes() error {
	s := r.session.Copy()
	defer s.Close()
	db := s.DB(r.dbName)
	if err := db.C(tables.TblDatums.String()).EnsureIndex(mgo.Index{
		Key: []string{"resource_id", "seq"},
	}); err != nil {
		return classify(err, "ensure datum index")
	}
	if err := db.C(tables.TblRelocations.String()).EnsureIndex(mgo.Index{
		Key: []string{"resource_id", "at"},
	}); err != nil {
		return classify(err, "ensure relocation index")
	}
	return nil
}

func (r *Registry) acquire() (*mgo.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errors.Wrap(ports.ErrStoreUnavailable, "registry is closed")
	}
	return r.session.Copy(), nil
}

// Subject impl ports.Registry
func (r *Registry) Subject() patterns.Subject {
	return r.subject
}

// Writer impl ports.Registry
func (r *Registry) Writer(ctx context.Context) (ports.Writer, error) {
	s, err := r.acquire()
	if err != nil {
		return nil, err
	}
	return &writer{registry: r, session: s, ctx: ctx}, nil
}

// Reader impl ports.Registry
func (r *Registry) Reader(ctx context.Context) (ports.Reader, error) {
	s, err := r.acquire()
	if err != nil {
		return nil, err
	}
	return &reader{db: s.DB(r.dbName), session: s, ctx: ctx}, nil
}

// Ping impl ports.HealthChecker
func (r *Registry) Ping(context.Context) error {
	s, err := r.acquire()
	if err != nil {
		return err
	}
	defer s.Close()
	return classify(s.Ping(), "ping")
}

// Close impl ports.Registry
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		r.session.Close()
	}
	return nil
}
