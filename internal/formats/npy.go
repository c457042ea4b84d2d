package formats

import (
	"context"

	"filestore/internal/domain/models"
	"filestore/internal/domain/ports"

	"github.com/pkg/errors"
)

// SpecNpy single .npy file resources
const SpecNpy = "npy"

type npyParams struct {
	MmapMode string `mapstructure:"mmap_mode"`
}

// NpyFactory loads the whole array at construction
type NpyFactory struct{}

// Construct reads and validates the file
func (NpyFactory) Construct(_ context.Context, loc models.Location, kw models.Kwargs) (ports.Handler, error) {
	var p npyParams
	if err := decodeParams(kw, &p); err != nil {
		return nil, err
	}
	path := loc.Path()
	arr, err := ReadNpyFile(path)
	if err != nil {
		return nil, err
	}
	return &npyHandler{path: path, arr: arr}, nil
}

type npyHandler struct {
	path string
	arr  models.Array
}

// Decode returns the stored array; the resource holds exactly one datum
func (h *npyHandler) Decode(_ context.Context, kw models.Kwargs) (models.Array, error) {
	if len(kw) != 0 {
		return models.Array{}, errors.Errorf("npy datums take no kwargs, got %v", kw.Keys())
	}
	return models.NewArray(h.arr.Shape, h.arr.Dtype, append([]float64(nil), h.arr.Data...))
}

// FileList impl ports.FileLister
func (h *npyHandler) FileList([]models.Kwargs) ([]string, error) {
	return []string{h.path}, nil
}

func (h *npyHandler) Close() error {
	return nil
}
