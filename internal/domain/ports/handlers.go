package ports

import (
	"context"

	"filestore/internal/domain/models"
)

type (
	// Handler decodes datums of one resource. Implementations must be safe for
	// concurrent Decode calls unless the cache runs with the per-call policy.
	Handler interface {
		Decode(ctx context.Context, datumKwargs models.Kwargs) (models.Array, error)
		Close() error
	}

	// HandlerFactory builds handlers for resources of one spec
	HandlerFactory interface {
		Construct(ctx context.Context, location models.Location, resourceKwargs models.Kwargs) (Handler, error)
	}

	// HandlerFactoryFunc adapts a function to HandlerFactory
	HandlerFactoryFunc func(ctx context.Context, location models.Location, resourceKwargs models.Kwargs) (Handler, error)

	// FileLister is implemented by handlers that can name the files backing datums
	FileLister interface {
		FileList(datumKwargs []models.Kwargs) ([]string, error)
	}

	// SpecAliaser is implemented by factories able to read resources written under other specs
	SpecAliaser interface {
		Specs() []string
	}
)

// Construct calls f
func (f HandlerFactoryFunc) Construct(ctx context.Context, location models.Location, resourceKwargs models.Kwargs) (Handler, error) {
	return f(ctx, location, resourceKwargs)
}
