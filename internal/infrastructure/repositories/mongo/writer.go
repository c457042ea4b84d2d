package mongo

import (
	"context"
	"time"

	"filestore/internal/domain/models"
	"filestore/internal/domain/ports"
	"filestore/internal/infrastructure/repositories/tables"

	"github.com/juju/mgo/v3"
	"github.com/juju/mgo/v3/bson"
	"github.com/juju/mgo/v3/txn"
	"github.com/pkg/errors"
)

type writer struct {
	registry    *Registry
	session     *mgo.Session
	ctx         context.Context
	resources   []models.Resource
	datums      []models.Datum
	relocations []models.Relocation
}

var errWriterClosed = errors.New("writer closed")

func (w *writer) InsertResources(_ context.Context, resources []models.Resource) error {
	if w.session == nil {
		return errWriterClosed
	}
	for _, r := range resources {
		if r.ID == "" || r.Spec == "" {
			return errors.New("resource id and spec are required")
		}
	}
	w.resources = append(w.resources, resources...)
	return nil
}

func (w *writer) InsertDatums(_ context.Context, datums []models.Datum) error {
	if w.session == nil {
		return errWriterClosed
	}
	for _, d := range datums {
		if d.ID == "" || d.ResourceID == "" {
			return errors.New("datum id and resource id are required")
		}
	}
	w.datums = append(w.datums, datums...)
	return nil
}

func (w *writer) InsertRelocations(_ context.Context, relocations []models.Relocation) error {
	if w.session == nil {
		return errWriterClosed
	}
	w.relocations = append(w.relocations, relocations...)
	return nil
}

func (w *writer) ops() []txn.Op {
	var ops []txn.Op
	resC := tables.TblResources.String()
	for _, r := range w.resources {
		ops = append(ops, txn.Op{C: resC, Id: r.ID, Assert: txn.DocMissing, Insert: toResourceDoc(r)})
	}
	seq := time.Now().UnixNano()
	for i, d := range w.datums {
		ops = append(ops, txn.Op{C: tables.TblDatums.String(), Id: d.ID, Assert: txn.DocMissing, Insert: datumDoc{
			ID:          d.ID,
			Seq:         seq + int64(i),
			ResourceID:  d.ResourceID,
			DatumKwargs: bson.M(d.DatumKwargs.Clone()),
		}})
	}
	for _, rl := range w.relocations {
		ops = append(ops,
			txn.Op{C: resC, Id: rl.ResourceID, Assert: txn.DocExists},
			txn.Op{C: tables.TblRelocations.String(), Id: rl.ID, Assert: txn.DocMissing, Insert: toRelocationDoc(rl)},
		)
	}
	return ops
}

// Commit runs all buffered inserts as one multi-document transaction
func (w *writer) Commit() error {
	if w.session == nil {
		return errWriterClosed
	}
	s := w.session
	w.session = nil
	defer s.Close()

	ops := w.ops()
	if len(ops) > 0 {
		db := s.DB(w.registry.dbName)
		runner := txn.NewRunner(db.C(txnCollection))
		err := runner.Run(ops, "", nil)
		if errors.Is(err, txn.ErrAborted) {
			return w.explainAbort(db)
		}
		if err != nil {
			return classify(err, "commit")
		}
	}
	w.registry.subject.Notify(ports.CommitEvent{
		Resources:   w.resources,
		Datums:      len(w.datums),
		Relocations: w.relocations,
	})
	return nil
}

// explainAbort tells a missing relocation target apart from a duplicate id
func (w *writer) explainAbort(db *mgo.Database) error {
	resC := db.C(tables.TblResources.String())
	for _, rl := range w.relocations {
		n, err := resC.FindId(rl.ResourceID).Count()
		if err != nil {
			return classify(err, "commit")
		}
		if n == 0 {
			return errors.Wrapf(ports.ErrNotFound, "relocation of resource '%s'", rl.ResourceID)
		}
	}
	return errors.Wrap(ports.ErrAlreadyExists, "commit")
}

func (w *writer) Abort() {
	if w.session != nil {
		w.session.Close()
		w.session = nil
	}
	w.resources, w.datums, w.relocations = nil, nil, nil
}
