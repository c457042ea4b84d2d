package mongo

import (
	"context"
	"fmt"

	"filestore/internal/domain/models"
	"filestore/internal/domain/ports"
	"filestore/internal/infrastructure/repositories/tables"

	"github.com/juju/mgo/v3"
	"github.com/juju/mgo/v3/bson"
)

type reader struct {
	db      *mgo.Database
	session *mgo.Session
	ctx     context.Context
}

func (r *reader) Close() error {
	if r.session != nil {
		r.session.Close()
		r.session = nil
	}
	return nil
}

func (r *reader) GetResourceByID(_ context.Context, id string) (*models.Resource, error) {
	var doc resourceDoc
	if err := r.db.C(tables.TblResources.String()).FindId(id).One(&doc); err != nil {
		return nil, classify(err, fmt.Sprintf("resource '%s'", id))
	}
	res := doc.model()
	return &res, nil
}

func (r *reader) GetDatumByID(_ context.Context, id string) (*models.Datum, error) {
	var doc datumDoc
	if err := r.db.C(tables.TblDatums.String()).FindId(id).One(&doc); err != nil {
		return nil, classify(err, fmt.Sprintf("datum '%s'", id))
	}
	d := doc.model()
	return &d, nil
}

func scopeFilter(scope ports.Scope) bson.M {
	if ids := ports.ResourceIDsOf(scope); len(ids) > 0 {
		return bson.M{"resource_id": bson.M{"$in": ids}}
	}
	return bson.M{}
}

func (r *reader) ListDatums(ctx context.Context, consume func(models.Datum) error, scope ports.Scope) error {
	iter := r.db.C(tables.TblDatums.String()).Find(scopeFilter(scope)).Sort("seq").Iter()
	var doc datumDoc
	for iter.Next(&doc) {
		if err := ctx.Err(); err != nil {
			_ = iter.Close()
			return err
		}
		if err := consume(doc.model()); err != nil {
			_ = iter.Close()
			return err
		}
		doc = datumDoc{}
	}
	return classify(iter.Close(), "list datums")
}

func (r *reader) ListRelocations(ctx context.Context, consume func(models.Relocation) error, scope ports.Scope) error {
	iter := r.db.C(tables.TblRelocations.String()).Find(scopeFilter(scope)).Sort("at", "_id").Iter()
	var doc relocationDoc
	for iter.Next(&doc) {
		if err := ctx.Err(); err != nil {
			_ = iter.Close()
			return err
		}
		if err := consume(doc.model()); err != nil {
			_ = iter.Close()
			return err
		}
	}
	return classify(iter.Close(), "list relocations")
}
