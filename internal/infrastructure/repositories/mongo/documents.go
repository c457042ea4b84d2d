package mongo

import (
	"time"

	"filestore/internal/domain/models"

	"github.com/juju/mgo/v3/bson"
)

type resourceDoc struct {
	ID             string `bson:"_id"`
	Spec           string `bson:"spec"`
	Root           string `bson:"root"`
	ResourcePath   string `bson:"resource_path"`
	ResourceKwargs bson.M `bson:"resource_kwargs"`
	PathSemantics  string `bson:"path_semantics"`
}

type datumDoc struct {
	ID          string `bson:"_id"`
	Seq         int64  `bson:"seq"`
	ResourceID  string `bson:"resource_id"`
	DatumKwargs bson.M `bson:"datum_kwargs"`
}

type relocationDoc struct {
	ID         string    `bson:"_id"`
	ResourceID string    `bson:"resource_id"`
	Cmd        string    `bson:"cmd"`
	OldRoot    string    `bson:"old_root"`
	NewRoot    string    `bson:"new_root"`
	Removed    bool      `bson:"removed"`
	Time       time.Time `bson:"at"`
}

func toResourceDoc(r models.Resource) resourceDoc {
	semantics := r.PathSemantics
	if semantics == "" {
		semantics = models.PathSemanticsPosix
	}
	return resourceDoc{
		ID:             r.ID,
		Spec:           r.Spec,
		Root:           r.Root,
		ResourcePath:   r.ResourcePath,
		ResourceKwargs: bson.M(r.ResourceKwargs.Clone()),
		PathSemantics:  string(semantics),
	}
}

func (d resourceDoc) model() models.Resource {
	return models.Resource{
		ID:             d.ID,
		Spec:           d.Spec,
		Root:           d.Root,
		ResourcePath:   d.ResourcePath,
		ResourceKwargs: models.Kwargs(d.ResourceKwargs).Clone(),
		PathSemantics:  models.PathSemantics(d.PathSemantics),
	}
}

func (d datumDoc) model() models.Datum {
	return models.Datum{
		ID:          d.ID,
		ResourceID:  d.ResourceID,
		DatumKwargs: models.Kwargs(d.DatumKwargs).Clone(),
	}
}

func toRelocationDoc(r models.Relocation) relocationDoc {
	return relocationDoc{
		ID:         r.ID,
		ResourceID: r.ResourceID,
		Cmd:        string(r.Cmd),
		OldRoot:    r.OldRoot,
		NewRoot:    r.NewRoot,
		Removed:    r.Removed,
		Time:       r.Time.UTC(),
	}
}

func (d relocationDoc) model() models.Relocation {
	return models.Relocation{
		ID:         d.ID,
		ResourceID: d.ResourceID,
		Cmd:        models.RelocationCmd(d.Cmd),
		OldRoot:    d.OldRoot,
		NewRoot:    d.NewRoot,
		Removed:    d.Removed,
		Time:       d.Time,
	}
}
