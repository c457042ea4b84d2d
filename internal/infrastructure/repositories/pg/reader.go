package pg

import (
	"context"
	"fmt"

	"filestore/internal/domain/models"
	"filestore/internal/domain/ports"
	"filestore/internal/infrastructure/repositories/tables"

	"github.com/jackc/pgx/v5"
)

type reader struct {
	tx  pgx.Tx
	ctx context.Context
}

// Close ends the read-only transaction
func (r *reader) Close() error {
	if r.tx == nil {
		return nil
	}
	tx := r.tx
	r.tx = nil
	return tx.Rollback(r.ctx)
}

func (r *reader) GetResourceByID(ctx context.Context, id string) (*models.Resource, error) {
	q := fmt.Sprintf(`SELECT id, spec, root, resource_path, resource_kwargs, path_semantics
		FROM %s WHERE id = $1`, table(tables.TblResources))
	var (
		res       models.Resource
		semantics string
	)
	err := r.tx.QueryRow(ctx, q, id).
		Scan(&res.ID, &res.Spec, &res.Root, &res.ResourcePath, &res.ResourceKwargs, &semantics)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("resource '%s'", id))
	}
	res.PathSemantics = models.PathSemantics(semantics)
	return &res, nil
}

func (r *reader) GetDatumByID(ctx context.Context, id string) (*models.Datum, error) {
	q := fmt.Sprintf(`SELECT id, resource_id, datum_kwargs FROM %s WHERE id = $1`,
		table(tables.TblDatums))
	var d models.Datum
	if err := r.tx.QueryRow(ctx, q, id).Scan(&d.ID, &d.ResourceID, &d.DatumKwargs); err != nil {
		return nil, classify(err, fmt.Sprintf("datum '%s'", id))
	}
	return &d, nil
}

func (r *reader) ListDatums(ctx context.Context, consume func(models.Datum) error, scope ports.Scope) error {
	q := fmt.Sprintf(`SELECT id, resource_id, datum_kwargs FROM %s`, table(tables.TblDatums))
	var args []interface{}
	if ids := ports.ResourceIDsOf(scope); len(ids) > 0 {
		q += ` WHERE resource_id = ANY($1)`
		args = append(args, ids)
	}
	q += ` ORDER BY seq`
	rows, err := r.tx.Query(ctx, q, args...)
	if err != nil {
		return classify(err, "list datums")
	}
	defer rows.Close()
	for rows.Next() {
		var d models.Datum
		if err = rows.Scan(&d.ID, &d.ResourceID, &d.DatumKwargs); err != nil {
			return classify(err, "scan datum")
		}
		if err = consume(d); err != nil {
			return err
		}
	}
	return classify(rows.Err(), "list datums")
}

func (r *reader) ListRelocations(ctx context.Context, consume func(models.Relocation) error, scope ports.Scope) error {
	q := fmt.Sprintf(`SELECT id, resource_id, cmd, old_root, new_root, removed, at FROM %s`,
		table(tables.TblRelocations))
	var args []interface{}
	if ids := ports.ResourceIDsOf(scope); len(ids) > 0 {
		q += ` WHERE resource_id = ANY($1)`
		args = append(args, ids)
	}
	q += ` ORDER BY at, id`
	rows, err := r.tx.Query(ctx, q, args...)
	if err != nil {
		return classify(err, "list relocations")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rl  models.Relocation
			cmd string
		)
		if err = rows.Scan(&rl.ID, &rl.ResourceID, &cmd, &rl.OldRoot, &rl.NewRoot, &rl.Removed, &rl.Time); err != nil {
			return classify(err, "scan relocation")
		}
		rl.Cmd = models.RelocationCmd(cmd)
		if err = consume(rl); err != nil {
			return err
		}
	}
	return classify(rows.Err(), "list relocations")
}
