package cache

import (
	"context"
	"sync"

	"filestore/internal/domain/models"
	"filestore/internal/domain/ports"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// FactoryLookup resolves a spec to its factory
type FactoryLookup interface {
	Lookup(spec string) (ports.HandlerFactory, error)
}

// RootResolver picks the actual root a resource is opened from
type RootResolver interface {
	ResolveResource(res models.Resource) string
}

// maxStaleRebuilds bounds rebuilds when invalidations race with a construction
const maxStaleRebuilds = 3

// HandlerCache memoizes one handler per (resource id, spec).
// Concurrent first lookups of one key share a single construction.
type HandlerCache struct {
	factories FactoryLookup
	roots     RootResolver

	policy     Policy
	size       int
	maxBuilds  int64
	log        logr.Logger
	registerer prometheus.Registerer

	mu      sync.Mutex
	entries entries
	slots   map[key]*slot
	closed  bool

	group   singleflight.Group
	builds  *semaphore.Weighted
	metrics *metrics
}

// New creates a handler cache
func New(factories FactoryLookup, roots RootResolver, opts ...Option) (*HandlerCache, error) {
	hc := &HandlerCache{
		factories: factories,
		roots:     roots,
		policy:    PolicyShared,
		log:       logr.Discard(),
		slots:     make(map[key]*slot),
	}
	for _, o := range opts {
		o(hc)
	}
	if err := (Config{Policy: hc.policy, Size: hc.size, MaxConcurrentBuilds: hc.maxBuilds}).Validate(); err != nil {
		return nil, err
	}
	hc.log = hc.log.WithName("handler-cache")
	hc.metrics = newMetrics(hc.registerer)
	if hc.maxBuilds > 0 {
		hc.builds = semaphore.NewWeighted(hc.maxBuilds)
	}
	if hc.size > 0 {
		lc, err := newLRUEntries(hc.size, hc.closeEntry)
		if err != nil {
			return nil, errors.WithMessage(err, "create lru")
		}
		hc.entries = lc
	} else {
		hc.entries = newMapEntries(hc.closeEntry)
	}
	return hc, nil
}

// Policy returns the configured sharing policy
func (hc *HandlerCache) Policy() Policy {
	return hc.policy
}

// GetHandler returns the shared handler for res. Not available under the per-call policy.
func (hc *HandlerCache) GetHandler(ctx context.Context, res models.Resource) (ports.Handler, error) {
	if hc.policy == PolicyPerCall {
		return nil, errors.Wrap(ports.ErrNotSupported, "GetHandler with per-call policy, use Acquire")
	}
	h, _, err := hc.Acquire(ctx, res)
	return h, err
}

// Acquire returns a handler for res and a release func the caller must call when done.
// Under the shared policy release is a no-op.
func (hc *HandlerCache) Acquire(ctx context.Context, res models.Resource) (ports.Handler, func(), error) {
	factory, err := hc.factories.Lookup(res.Spec)
	if err != nil {
		return nil, nil, err
	}
	if hc.policy == PolicyPerCall {
		hc.metrics.misses.Inc()
		h, err := hc.construct(ctx, factory, res, hc.roots.ResolveResource(res))
		if err != nil {
			return nil, nil, err
		}
		return h, func() {
			if cerr := h.Close(); cerr != nil {
				hc.log.Error(cerr, "close per-call handler", "resourceID", res.ID, "spec", res.Spec)
			}
		}, nil
	}

	k := key{resourceID: res.ID, spec: res.Spec}
	if h, ok := hc.lookup(k); ok {
		hc.metrics.hits.Inc()
		return h, noop, nil
	}
	hc.metrics.misses.Inc()

	detached := context.WithoutCancel(ctx)
	ch := hc.group.DoChan(k.String(), func() (interface{}, error) {
		return hc.build(detached, k, factory, res)
	})
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, nil, r.Err
		}
		return r.Val.(ports.Handler), noop, nil
	}
}

func noop() {}

func (hc *HandlerCache) lookup(k key) (ports.Handler, bool) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if e, ok := hc.entries.get(k); ok {
		return e.handler, true
	}
	return nil, false
}

// build runs once per key at a time. A build that raced with Invalidate is discarded and redone.
func (hc *HandlerCache) build(ctx context.Context, k key, factory ports.HandlerFactory, res models.Resource) (ports.Handler, error) {
	for attempt := 0; ; attempt++ {
		hc.mu.Lock()
		if hc.closed {
			hc.mu.Unlock()
			return nil, errors.New("handler cache is closed")
		}
		if e, ok := hc.entries.get(k); ok {
			hc.mu.Unlock()
			return e.handler, nil
		}
		sl := hc.slot(k, res.Root)
		gen := sl.gen
		sl.building++
		hc.mu.Unlock()

		root := hc.roots.ResolveResource(res)
		h, err := hc.construct(ctx, factory, res, root)
		if err != nil {
			hc.mu.Lock()
			sl.building--
			hc.prune(k)
			hc.mu.Unlock()
			return nil, err
		}

		hc.mu.Lock()
		if !hc.closed && (sl.gen == gen || attempt >= maxStaleRebuilds) {
			hc.entries.add(&entry{key: k, logicalRoot: res.Root, actualRoot: root, handler: h})
			sl.building--
			hc.metrics.live.Set(float64(hc.entries.len()))
			hc.mu.Unlock()
			return h, nil
		}
		sl.building--
		hc.prune(k)
		closed := hc.closed
		hc.mu.Unlock()

		hc.log.V(1).Info("discarding handler built across an invalidation", "resourceID", k.resourceID, "spec", k.spec)
		if cerr := h.Close(); cerr != nil {
			hc.log.Error(cerr, "close stale handler", "resourceID", k.resourceID)
		}
		if closed {
			return nil, errors.New("handler cache is closed")
		}
	}
}

func (hc *HandlerCache) construct(ctx context.Context, factory ports.HandlerFactory, res models.Resource, root string) (ports.Handler, error) {
	if hc.builds != nil {
		if err := hc.builds.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer hc.builds.Release(1)
	}
	loc := res.Location(root)
	hc.log.V(1).Info("constructing handler", "resourceID", res.ID, "spec", res.Spec, "path", loc.Path())

	h, err := factory.Construct(ctx, loc, res.ResourceKwargs.Clone())
	if err == nil && h == nil {
		err = errors.New("factory returned no handler")
	}
	if err != nil {
		hc.metrics.constructions.WithLabelValues(res.Spec, "error").Inc()
		hc.log.V(1).Info("handler construction failed", "resourceID", res.ID, "spec", res.Spec, "err", err.Error())
		return nil, &ports.HandlerConstructionError{
			ResourceID: res.ID,
			Spec:       res.Spec,
			Path:       loc.Path(),
			Err:        err,
		}
	}
	hc.metrics.constructions.WithLabelValues(res.Spec, "ok").Inc()
	return h, nil
}

// slot tracks invalidations of a key while it has a live handler or a build in flight
type slot struct {
	gen         uint64
	logicalRoot string
	building    int
}

func (hc *HandlerCache) slot(k key, logicalRoot string) *slot {
	sl, ok := hc.slots[k]
	if !ok {
		sl = &slot{logicalRoot: logicalRoot}
		hc.slots[k] = sl
	}
	return sl
}

// prune drops the slot of k once it has neither a live handler nor a build in flight.
// Callers hold hc.mu.
func (hc *HandlerCache) prune(k key) {
	sl, ok := hc.slots[k]
	if !ok || sl.building > 0 {
		return
	}
	if _, live := hc.entries.peek(k); !live {
		delete(hc.slots, k)
	}
}

// Invalidate closes and drops every handler of resourceID; returns how many were dropped
func (hc *HandlerCache) Invalidate(resourceID string) int {
	return hc.InvalidateWhere(func(id, _, _ string) bool {
		return id == resourceID
	})
}

// InvalidateRoot drops handlers of resources stored under the logical root
func (hc *HandlerCache) InvalidateRoot(logicalRoot string) int {
	return hc.InvalidateWhere(func(_, _, root string) bool {
		return root == logicalRoot
	})
}

// InvalidateWhere drops handlers matching pred(resourceID, spec, logicalRoot).
// Matching builds still in flight are discarded when they finish.
func (hc *HandlerCache) InvalidateWhere(pred func(resourceID, spec, logicalRoot string) bool) int {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	for k, sl := range hc.slots {
		if pred(k.resourceID, k.spec, sl.logicalRoot) {
			sl.gen++
		}
	}
	n := 0
	for _, e := range hc.entries.snapshot() {
		if pred(e.key.resourceID, e.key.spec, e.logicalRoot) && hc.entries.remove(e.key) {
			n++
		}
	}
	for k := range hc.slots {
		hc.prune(k)
	}
	hc.metrics.live.Set(float64(hc.entries.len()))
	if n > 0 {
		hc.log.V(1).Info("invalidated handlers", "count", n)
	}
	return n
}

// Len returns the number of live handlers
func (hc *HandlerCache) Len() int {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	return hc.entries.len()
}

// Close closes every cached handler; later builds fail
func (hc *HandlerCache) Close() error {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.closed = true
	hc.entries.purge()
	hc.metrics.live.Set(0)
	return nil
}

// closeEntry runs with hc.mu held, from inside the entry store
func (hc *HandlerCache) closeEntry(e *entry) {
	hc.metrics.evictions.Inc()
	if sl, ok := hc.slots[e.key]; ok && sl.building == 0 {
		delete(hc.slots, e.key)
	}
	if err := e.handler.Close(); err != nil {
		hc.log.Error(err, "close handler", "resourceID", e.key.resourceID, "spec", e.key.spec)
	}
}
