package mem

import (
	"context"
	"sync"

	"filestore/internal/domain/ports"
	"filestore/internal/patterns"

	"github.com/pkg/errors"
)

// Registry is an in-memory implementation of the Registry interface
type Registry struct {
	db     *MemDB
	mu     sync.RWMutex
	subj   patterns.Subject
	closed bool
}

var _ ports.Registry = (*Registry)(nil)

// NewRegistry creates a new in-memory registry
func NewRegistry() *Registry {
	return &Registry{
		db:   NewMemDB(),
		subj: patterns.NewSubject(),
	}
}

// Subject returns the registry's subject
func (r *Registry) Subject() patterns.Subject {
	return r.subj
}

// Writer returns a new writer
func (r *Registry) Writer(ctx context.Context) (ports.Writer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errors.Wrap(ports.ErrStoreUnavailable, "registry is closed")
	}
	return &writer{
		registry: r,
		ctx:      ctx,
	}, nil
}

// Ping impl ports.HealthChecker
func (r *Registry) Ping(context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return errors.Wrap(ports.ErrStoreUnavailable, "registry is closed")
	}
	return nil
}

// Reader returns a new reader
func (r *Registry) Reader(ctx context.Context) (ports.Reader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errors.Wrap(ports.ErrStoreUnavailable, "registry is closed")
	}
	return &reader{
		registry: r,
		ctx:      ctx,
	}, nil
}

// Close closes the registry
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
