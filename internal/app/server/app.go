package server

import (
	"context"

	"filestore/internal/application/cache"
	"filestore/internal/application/handlers"
	"filestore/internal/application/roots"
	"filestore/internal/application/services"
	"filestore/internal/config"
	"filestore/internal/domain/ports"
	"filestore/internal/formats"
	"filestore/internal/infrastructure/repositories"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// App holds the wired application services
type App struct {
	Registry  ports.Registry
	Store     *services.StoreService
	Handlers  *handlers.Registry
	Roots     *roots.Map
	Cache     *cache.HandlerCache
	Resolver  *services.Resolver
	Relocator *services.Relocator
}

// NewApp connects the configured store, installs the built-in handlers and
// configured root substitutions, and replays relocation history.
func NewApp(ctx context.Context, cfg *config.Config, log logr.Logger, reg prometheus.Registerer) (*App, error) {
	registry, err := repositories.NewFactory(cfg.Store, log).CreateRegistry(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "create store")
	}
	app := &App{
		Registry: registry,
		Store:    services.NewStoreService(registry),
		Handlers: handlers.NewRegistry(),
		Roots:    roots.NewMap(),
	}
	if err = app.init(ctx, cfg, log, reg); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) init(ctx context.Context, cfg *config.Config, log logr.Logger, reg prometheus.Registerer) error {
	if err := formats.RegisterBuiltins(a.Handlers); err != nil {
		return errors.WithMessage(err, "register builtin handlers")
	}
	for _, r := range cfg.Roots {
		a.Roots.AddRoot(r.Logical, r.Actual)
	}

	var err error
	a.Cache, err = cache.New(a.Handlers, a.Roots,
		cache.WithConfig(cfg.Cache),
		cache.WithLogger(log),
		cache.WithRegisterer(reg),
	)
	if err != nil {
		return errors.WithMessage(err, "create handler cache")
	}
	a.Resolver, err = services.NewResolver(a.Store, a.Handlers, a.Roots, a.Cache,
		services.WithResolverLogger(log),
		services.WithResolverRegisterer(reg),
	)
	if err != nil {
		return errors.WithMessage(err, "create resolver")
	}
	if err = a.Resolver.LoadRelocations(ctx); err != nil {
		return errors.WithMessage(err, "load relocations")
	}
	a.Relocator = services.NewRelocator(a.Store, a.Resolver, a.Roots, log)
	return nil
}

// Close releases handlers and the store connection
func (a *App) Close() error {
	var err error
	if a.Resolver != nil {
		err = a.Resolver.Close()
	} else if a.Cache != nil {
		err = a.Cache.Close()
	}
	if cerr := a.Registry.Close(); err == nil {
		err = cerr
	}
	return err
}
