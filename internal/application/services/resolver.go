package services

import (
	"context"
	"sort"
	"time"

	"filestore/internal/application/cache"
	"filestore/internal/application/handlers"
	"filestore/internal/application/roots"
	"filestore/internal/domain/models"
	"filestore/internal/domain/ports"
	"filestore/internal/patterns"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolver turns datum ids into decoded arrays
type Resolver struct {
	store    *StoreService
	handlers *handlers.Registry
	roots    *roots.Map
	cache    *cache.HandlerCache
	log      logr.Logger

	observer  patterns.Observer
	latencies *prometheus.HistogramVec
}

// ResolverOption configures a Resolver
type ResolverOption func(*resolverOptions)

type resolverOptions struct {
	log        logr.Logger
	registerer prometheus.Registerer
}

// WithResolverLogger sets the logger
func WithResolverLogger(log logr.Logger) ResolverOption {
	return func(o *resolverOptions) {
		o.log = log
	}
}

// WithResolverRegisterer registers resolver collectors with reg
func WithResolverRegisterer(reg prometheus.Registerer) ResolverOption {
	return func(o *resolverOptions) {
		o.registerer = reg
	}
}

// NewResolver wires the resolver and subscribes it to store commits so that
// relocations update the root map and drop affected handlers
func NewResolver(store *StoreService, reg *handlers.Registry, rm *roots.Map, hc *cache.HandlerCache, opts ...ResolverOption) (*Resolver, error) {
	o := resolverOptions{log: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	r := &Resolver{
		store:    store,
		handlers: reg,
		roots:    rm,
		cache:    hc,
		log:      o.log.WithName("resolver"),
		latencies: promauto.With(o.registerer).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "filestore",
			Subsystem: "resolver",
			Name:      "get_data_seconds",
			Help:      "GetData latency by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"outcome"}),
	}
	r.observer = patterns.NewObserver(r.onCommit)
	if err := store.Registry().Subject().Subscribe(r.observer); err != nil {
		return nil, errors.WithMessage(err, "subscribe to store")
	}
	return r, nil
}

// LoadRelocations replays the relocation history into the root map
func (r *Resolver) LoadRelocations(ctx context.Context) error {
	rels, err := r.store.ListRelocations(ctx)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		r.roots.SetResourceRoot(rel.ResourceID, rel.NewRoot)
	}
	if len(rels) > 0 {
		r.log.Info("relocations restored", "count", len(rels))
	}
	return nil
}

func (r *Resolver) onCommit(event interface{}) {
	ev, ok := event.(ports.CommitEvent)
	if !ok {
		return
	}
	for _, rel := range ev.Relocations {
		r.roots.SetResourceRoot(rel.ResourceID, rel.NewRoot)
		n := r.cache.Invalidate(rel.ResourceID)
		r.log.V(1).Info("resource relocated", "resourceID", rel.ResourceID, "newRoot", rel.NewRoot, "dropped", n)
	}
}

// Close detaches from the store and closes cached handlers
func (r *Resolver) Close() error {
	_ = r.store.Registry().Subject().Unsubscribe(r.observer)
	return r.cache.Close()
}

// GetData fetches datum and resource, obtains the handler and decodes
func (r *Resolver) GetData(ctx context.Context, datumID string) (arr models.Array, err error) {
	start := time.Now()
	defer func() {
		r.latencies.WithLabelValues(outcome(err)).Observe(time.Since(start).Seconds())
	}()

	d, err := r.store.GetDatum(ctx, datumID)
	if err != nil {
		return arr, errors.WithMessagef(err, "datum '%s'", datumID)
	}
	res, err := r.store.GetResource(ctx, d.ResourceID)
	if err != nil {
		return arr, errors.WithMessagef(err, "datum '%s' references resource '%s'", datumID, d.ResourceID)
	}
	r.log.V(2).Info("resolving", "datumID", datumID, "resourceID", res.ID, "spec", res.Spec)

	h, release, err := r.cache.Acquire(ctx, *res)
	if err != nil {
		return arr, errors.WithMessagef(err, "datum '%s' resource '%s'", datumID, res.ID)
	}
	defer release()

	arr, err = h.Decode(ctx, d.DatumKwargs.Clone())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return arr, err
		}
		return arr, &ports.DecodeError{
			DatumID:    datumID,
			ResourceID: res.ID,
			Spec:       res.Spec,
			Err:        err,
		}
	}
	return arr, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ports.ErrNotFound):
		return "not_found"
	case errors.Is(err, ports.ErrUnregisteredSpec):
		return "unregistered_spec"
	case errors.Is(err, ports.ErrHandlerConstruction):
		return "construction_error"
	case errors.Is(err, ports.ErrDecode):
		return "decode_error"
	case errors.Is(err, ports.ErrStoreUnavailable):
		return "store_unavailable"
	}
	return "other"
}

// GetSpecList returns registered specs able to read the resource, sorted
func (r *Resolver) GetSpecList(ctx context.Context, resourceID string) ([]string, error) {
	res, err := r.store.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	r.handlers.Each(func(spec string, f ports.HandlerFactory) {
		if spec == res.Spec {
			seen[spec] = struct{}{}
			return
		}
		if a, ok := f.(ports.SpecAliaser); ok {
			for _, alias := range a.Specs() {
				if alias == res.Spec {
					seen[spec] = struct{}{}
				}
			}
		}
	})
	ret := make([]string, 0, len(seen))
	for spec := range seen {
		ret = append(ret, spec)
	}
	sort.Strings(ret)
	return ret, nil
}

// GetFileList returns the files backing every datum of the resource
func (r *Resolver) GetFileList(ctx context.Context, resourceID string) ([]string, error) {
	res, err := r.store.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	datums, err := r.store.ListDatums(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	h, release, err := r.cache.Acquire(ctx, *res)
	if err != nil {
		return nil, err
	}
	defer release()

	lister, ok := h.(ports.FileLister)
	if !ok {
		return nil, errors.Wrapf(ports.ErrNotSupported, "spec %q cannot list files", res.Spec)
	}
	kws := make([]models.Kwargs, 0, len(datums))
	for _, d := range datums {
		kws = append(kws, d.DatumKwargs)
	}
	files, err := lister.FileList(kws)
	if err != nil {
		return nil, errors.WithMessagef(err, "list files of resource '%s'", resourceID)
	}
	seen := make(map[string]struct{}, len(files))
	ret := files[:0]
	for _, f := range files {
		if _, dup := seen[f]; !dup {
			seen[f] = struct{}{}
			ret = append(ret, f)
		}
	}
	return ret, nil
}

// RegisterHandler forwards to the handler registry
func (r *Resolver) RegisterHandler(spec string, factory ports.HandlerFactory) error {
	return r.handlers.Register(spec, factory)
}

// AddRoot remaps a logical root and drops handlers built from it
func (r *Resolver) AddRoot(logical, actual string) {
	r.roots.AddRoot(logical, actual)
	n := r.cache.InvalidateRoot(logical)
	r.log.V(1).Info("root remapped", "logical", logical, "actual", actual, "dropped", n)
}

// Invalidate drops the cached handler of resourceID
func (r *Resolver) Invalidate(resourceID string) int {
	return r.cache.Invalidate(resourceID)
}
