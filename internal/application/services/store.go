package services

import (
	"context"

	"filestore/internal/application/validation"
	"filestore/internal/domain/models"
	"filestore/internal/domain/ports"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// StoreService is the document facade over a ports.Registry
type StoreService struct {
	registry ports.Registry
}

// NewStoreService creates a new StoreService
func NewStoreService(registry ports.Registry) *StoreService {
	return &StoreService{
		registry: registry,
	}
}

// Registry returns the underlying registry
func (s *StoreService) Registry() ports.Registry {
	return s.registry
}

// GetResource returns ErrNotFound or ErrStoreUnavailable on failure
func (s *StoreService) GetResource(ctx context.Context, id string) (*models.Resource, error) {
	reader, err := s.registry.Reader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reader")
	}
	defer reader.Close() //nolint:errcheck
	return reader.GetResourceByID(ctx, id)
}

// GetDatum returns ErrNotFound or ErrStoreUnavailable on failure
func (s *StoreService) GetDatum(ctx context.Context, id string) (*models.Datum, error) {
	reader, err := s.registry.Reader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reader")
	}
	defer reader.Close() //nolint:errcheck
	return reader.GetDatumByID(ctx, id)
}

// ListDatums returns datums of the given resources in insertion order
func (s *StoreService) ListDatums(ctx context.Context, resourceIDs ...string) ([]models.Datum, error) {
	reader, err := s.registry.Reader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reader")
	}
	defer reader.Close() //nolint:errcheck

	var datums []models.Datum
	err = reader.ListDatums(ctx, func(d models.Datum) error {
		datums = append(datums, d)
		return nil
	}, ports.NewResourceScope(resourceIDs...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list datums")
	}
	return datums, nil
}

// ListRelocations returns relocations in time order
func (s *StoreService) ListRelocations(ctx context.Context, resourceIDs ...string) ([]models.Relocation, error) {
	reader, err := s.registry.Reader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reader")
	}
	defer reader.Close() //nolint:errcheck

	var ret []models.Relocation
	err = reader.ListRelocations(ctx, func(r models.Relocation) error {
		ret = append(ret, r)
		return nil
	}, ports.NewResourceScope(resourceIDs...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list relocations")
	}
	return ret, nil
}

// InsertResource stores res and returns its id; an empty id is replaced with a UUID
func (s *StoreService) InsertResource(ctx context.Context, res models.Resource) (string, error) {
	if err := (validation.ResourceValidator{Resource: res}).Validate(); err != nil {
		return "", err
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.PathSemantics == "" {
		res.PathSemantics = models.PathSemanticsPosix
	}
	res.ResourceKwargs = res.ResourceKwargs.Clone()
	err := s.write(ctx, func(w ports.Writer) error {
		return w.InsertResources(ctx, []models.Resource{res})
	})
	if err != nil {
		return "", errors.WithMessagef(err, "insert resource '%s'", res.ID)
	}
	return res.ID, nil
}

// InsertDatum stores d and returns its id; an empty id is replaced with a UUID
func (s *StoreService) InsertDatum(ctx context.Context, d models.Datum) (string, error) {
	ids, err := s.InsertDatums(ctx, []models.Datum{d})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// InsertDatums stores all datums in one commit
func (s *StoreService) InsertDatums(ctx context.Context, datums []models.Datum) ([]string, error) {
	batch := make([]models.Datum, 0, len(datums))
	ids := make([]string, 0, len(datums))
	for _, d := range datums {
		if err := (validation.DatumValidator{Datum: d}).Validate(); err != nil {
			return nil, err
		}
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		d.DatumKwargs = d.DatumKwargs.Clone()
		batch = append(batch, d)
		ids = append(ids, d.ID)
	}
	err := s.write(ctx, func(w ports.Writer) error {
		return w.InsertDatums(ctx, batch)
	})
	if err != nil {
		return nil, errors.WithMessage(err, "insert datums")
	}
	return ids, nil
}

// InsertRelocation appends a relocation record
func (s *StoreService) InsertRelocation(ctx context.Context, rel models.Relocation) error {
	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	return s.write(ctx, func(w ports.Writer) error {
		return w.InsertRelocations(ctx, []models.Relocation{rel})
	})
}

// InsertResourceWithDatums stores a resource and its datums in one commit
func (s *StoreService) InsertResourceWithDatums(ctx context.Context, res models.Resource, datums []models.Datum) error {
	if err := (validation.ResourceValidator{Resource: res}).Validate(); err != nil {
		return err
	}
	for _, d := range datums {
		if err := (validation.DatumValidator{Datum: d}).Validate(); err != nil {
			return err
		}
	}
	return s.write(ctx, func(w ports.Writer) error {
		if err := w.InsertResources(ctx, []models.Resource{res}); err != nil {
			return err
		}
		return w.InsertDatums(ctx, datums)
	})
}

func (s *StoreService) write(ctx context.Context, fn func(ports.Writer) error) error {
	writer, err := s.registry.Writer(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get writer")
	}
	if err = fn(writer); err != nil {
		writer.Abort()
		return err
	}
	return writer.Commit()
}
