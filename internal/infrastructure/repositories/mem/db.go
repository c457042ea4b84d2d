package mem

import (
	"sort"
	"sync"

	"filestore/internal/domain/models"
	"filestore/internal/domain/ports"

	"github.com/pkg/errors"
)

// MemDB in-memory append-only document store
type MemDB struct {
	mu          sync.RWMutex
	resources   map[string]models.Resource
	datums      map[string]models.Datum
	datumOrder  []string
	relocations []models.Relocation
}

// NewMemDB creates a new in-memory database
func NewMemDB() *MemDB {
	return &MemDB{
		resources: make(map[string]models.Resource),
		datums:    make(map[string]models.Datum),
	}
}

func (db *MemDB) resource(id string) (models.Resource, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	r, ok := db.resources[id]
	return r, ok
}

func (db *MemDB) datum(id string) (models.Datum, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	d, ok := db.datums[id]
	return d, ok
}

func (db *MemDB) snapshotDatums(scope ports.ResourceScope) []models.Datum {
	db.mu.RLock()
	defer db.mu.RUnlock()
	ret := make([]models.Datum, 0, len(db.datumOrder))
	for _, id := range db.datumOrder {
		d := db.datums[id]
		if scope.Contains(d.ResourceID) {
			ret = append(ret, d)
		}
	}
	return ret
}

func (db *MemDB) snapshotRelocations(scope ports.ResourceScope) []models.Relocation {
	db.mu.RLock()
	defer db.mu.RUnlock()
	ret := make([]models.Relocation, 0, len(db.relocations))
	for _, r := range db.relocations {
		if scope.Contains(r.ResourceID) {
			ret = append(ret, r)
		}
	}
	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].Time.Before(ret[j].Time)
	})
	return ret
}

// apply validates the whole batch first, so a failed commit leaves the db untouched
func (db *MemDB) apply(resources []models.Resource, datums []models.Datum, relocations []models.Relocation) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	newRes := make(map[string]struct{}, len(resources))
	for _, r := range resources {
		if _, dup := db.resources[r.ID]; dup {
			return errors.Wrapf(ports.ErrAlreadyExists, "resource '%s'", r.ID)
		}
		if _, dup := newRes[r.ID]; dup {
			return errors.Wrapf(ports.ErrAlreadyExists, "resource '%s'", r.ID)
		}
		newRes[r.ID] = struct{}{}
	}
	newDat := make(map[string]struct{}, len(datums))
	for _, d := range datums {
		if _, dup := db.datums[d.ID]; dup {
			return errors.Wrapf(ports.ErrAlreadyExists, "datum '%s'", d.ID)
		}
		if _, dup := newDat[d.ID]; dup {
			return errors.Wrapf(ports.ErrAlreadyExists, "datum '%s'", d.ID)
		}
		newDat[d.ID] = struct{}{}
	}
	for _, rl := range relocations {
		_, known := db.resources[rl.ResourceID]
		_, pending := newRes[rl.ResourceID]
		if !known && !pending {
			return errors.Wrapf(ports.ErrNotFound, "relocation of resource '%s'", rl.ResourceID)
		}
	}

	for _, r := range resources {
		r.ResourceKwargs = r.ResourceKwargs.Clone()
		db.resources[r.ID] = r
	}
	for _, d := range datums {
		d.DatumKwargs = d.DatumKwargs.Clone()
		db.datums[d.ID] = d
		db.datumOrder = append(db.datumOrder, d.ID)
	}
	db.relocations = append(db.relocations, relocations...)
	return nil
}
