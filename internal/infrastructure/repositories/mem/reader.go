package mem

import (
	"context"

	"filestore/internal/domain/models"
	"filestore/internal/domain/ports"

	"github.com/pkg/errors"
)

type reader struct {
	registry *Registry
	ctx      context.Context
}

func (r *reader) Close() error {
	return nil
}

func (r *reader) GetResourceByID(_ context.Context, id string) (*models.Resource, error) {
	res, ok := r.registry.db.resource(id)
	if !ok {
		return nil, errors.Wrapf(ports.ErrNotFound, "resource '%s'", id)
	}
	res.ResourceKwargs = res.ResourceKwargs.Clone()
	return &res, nil
}

func (r *reader) GetDatumByID(_ context.Context, id string) (*models.Datum, error) {
	d, ok := r.registry.db.datum(id)
	if !ok {
		return nil, errors.Wrapf(ports.ErrNotFound, "datum '%s'", id)
	}
	d.DatumKwargs = d.DatumKwargs.Clone()
	return &d, nil
}

func (r *reader) ListDatums(ctx context.Context, consume func(models.Datum) error, scope ports.Scope) error {
	for _, d := range r.registry.db.snapshotDatums(ports.NewResourceScope(ports.ResourceIDsOf(scope)...)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.DatumKwargs = d.DatumKwargs.Clone()
		if err := consume(d); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) ListRelocations(ctx context.Context, consume func(models.Relocation) error, scope ports.Scope) error {
	for _, rl := range r.registry.db.snapshotRelocations(ports.NewResourceScope(ports.ResourceIDsOf(scope)...)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := consume(rl); err != nil {
			return err
		}
	}
	return nil
}
