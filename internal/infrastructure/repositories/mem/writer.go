package mem

import (
	"context"

	"filestore/internal/domain/models"
	"filestore/internal/domain/ports"

	"github.com/pkg/errors"
)

type writer struct {
	registry    *Registry
	ctx         context.Context
	resources   []models.Resource
	datums      []models.Datum
	relocations []models.Relocation
	done        bool
}

var errWriterDone = errors.New("writer is already committed or aborted")

func (w *writer) InsertResources(_ context.Context, resources []models.Resource) error {
	if w.done {
		return errWriterDone
	}
	for _, r := range resources {
		if r.ID == "" {
			return errors.New("resource id is empty")
		}
		if r.Spec == "" {
			return errors.Errorf("resource '%s' has no spec", r.ID)
		}
	}
	w.resources = append(w.resources, resources...)
	return nil
}

func (w *writer) InsertDatums(_ context.Context, datums []models.Datum) error {
	if w.done {
		return errWriterDone
	}
	for _, d := range datums {
		if d.ID == "" {
			return errors.New("datum id is empty")
		}
		if d.ResourceID == "" {
			return errors.Errorf("datum '%s' has no resource id", d.ID)
		}
	}
	w.datums = append(w.datums, datums...)
	return nil
}

func (w *writer) InsertRelocations(_ context.Context, relocations []models.Relocation) error {
	if w.done {
		return errWriterDone
	}
	for _, rl := range relocations {
		if rl.ID == "" || rl.ResourceID == "" {
			return errors.New("relocation id and resource id are required")
		}
	}
	w.relocations = append(w.relocations, relocations...)
	return nil
}

// Commit applies the buffered documents atomically and notifies subscribers
func (w *writer) Commit() error {
	if w.done {
		return errWriterDone
	}
	w.done = true
	if err := w.registry.db.apply(w.resources, w.datums, w.relocations); err != nil {
		return errors.WithMessage(err, "commit")
	}
	w.registry.subj.Notify(ports.CommitEvent{
		Resources:   w.resources,
		Datums:      len(w.datums),
		Relocations: w.relocations,
	})
	return nil
}

func (w *writer) Abort() {
	w.done = true
	w.resources, w.datums, w.relocations = nil, nil, nil
}
