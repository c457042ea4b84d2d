package pg

import (
	"context"
	"fmt"

	"filestore/internal/domain/models"
	"filestore/internal/domain/ports"
	"filestore/internal/infrastructure/repositories/tables"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type writer struct {
	registry *Registry
	tx       pgx.Tx
	ctx      context.Context
	event    ports.CommitEvent
}

func table(t tables.TableID) string {
	return fmt.Sprintf("%s.%s", tables.SchemaName, t)
}

func (w *writer) InsertResources(ctx context.Context, resources []models.Resource) error {
	if w.tx == nil {
		return errors.New("writer closed")
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, spec, root, resource_path, resource_kwargs, path_semantics)
		VALUES ($1, $2, $3, $4, $5, $6)`, table(tables.TblResources))
	batch := &pgx.Batch{}
	for _, r := range resources {
		if r.ID == "" || r.Spec == "" {
			return errors.New("resource id and spec are required")
		}
		semantics := r.PathSemantics
		if semantics == "" {
			semantics = models.PathSemanticsPosix
		}
		batch.Queue(q, r.ID, r.Spec, r.Root, r.ResourcePath, r.ResourceKwargs.Clone(), string(semantics))
	}
	if err := w.sendBatch(ctx, batch, "insert resources"); err != nil {
		return err
	}
	w.event.Resources = append(w.event.Resources, resources...)
	return nil
}

func (w *writer) InsertDatums(ctx context.Context, datums []models.Datum) error {
	if w.tx == nil {
		return errors.New("writer closed")
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, resource_id, datum_kwargs) VALUES ($1, $2, $3)`,
		table(tables.TblDatums))
	batch := &pgx.Batch{}
	for _, d := range datums {
		if d.ID == "" || d.ResourceID == "" {
			return errors.New("datum id and resource id are required")
		}
		batch.Queue(q, d.ID, d.ResourceID, d.DatumKwargs.Clone())
	}
	if err := w.sendBatch(ctx, batch, "insert datums"); err != nil {
		return err
	}
	w.event.Datums += len(datums)
	return nil
}

func (w *writer) InsertRelocations(ctx context.Context, relocations []models.Relocation) error {
	if w.tx == nil {
		return errors.New("writer closed")
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, resource_id, cmd, old_root, new_root, removed, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, table(tables.TblRelocations))
	batch := &pgx.Batch{}
	for _, rl := range relocations {
		batch.Queue(q, rl.ID, rl.ResourceID, string(rl.Cmd), rl.OldRoot, rl.NewRoot, rl.Removed, rl.Time)
	}
	if err := w.sendBatch(ctx, batch, "insert relocations"); err != nil {
		return err
	}
	w.event.Relocations = append(w.event.Relocations, relocations...)
	return nil
}

func (w *writer) sendBatch(ctx context.Context, batch *pgx.Batch, what string) error {
	if batch.Len() == 0 {
		return nil
	}
	br := w.tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return classify(err, what)
		}
	}
	return classify(br.Close(), what)
}

// Commit commits the transaction and notifies subscribers
func (w *writer) Commit() error {
	if w.tx == nil {
		return errors.New("writer closed")
	}
	tx := w.tx
	w.tx = nil
	if err := tx.Commit(w.ctx); err != nil {
		_ = tx.Rollback(w.ctx)
		return classify(err, "commit")
	}
	w.registry.subject.Notify(w.event)
	return nil
}

// Abort rolls the transaction back
func (w *writer) Abort() {
	if w.tx != nil {
		_ = w.tx.Rollback(w.ctx)
		w.tx = nil
	}
}
