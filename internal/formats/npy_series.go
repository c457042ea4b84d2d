package formats

import (
	"context"
	"os"
	"path/filepath"

	"filestore/internal/domain/models"
	"filestore/internal/domain/ports"

	"github.com/pkg/errors"
)

// SpecNpySeries a directory of .npy files indexed by one integer kwarg
const SpecNpySeries = "npy_series"

type npySeriesParams struct {
	Template string `mapstructure:"fmt"`
}

// NpySeriesFactory opens files lazily per datum
type NpySeriesFactory struct{}

// Construct checks the directory and the template
func (NpySeriesFactory) Construct(_ context.Context, loc models.Location, kw models.Kwargs) (ports.Handler, error) {
	var p npySeriesParams
	if err := decodeParams(kw, &p); err != nil {
		return nil, err
	}
	if p.Template == "" {
		return nil, errors.New("resource kwarg 'fmt' is required")
	}
	tmpl, err := parseTemplate(p.Template)
	if err != nil {
		return nil, err
	}
	dir := loc.Path()
	st, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, errors.Errorf("'%s' is not a directory", dir)
	}
	return &npySeriesHandler{dir: dir, tmpl: tmpl}, nil
}

type npySeriesHandler struct {
	dir  string
	tmpl fileTemplate
}

func (h *npySeriesHandler) file(kw models.Kwargs) (string, error) {
	n, err := intArg(kw, h.tmpl.Field())
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", errors.Errorf("%s must not be negative", h.tmpl.Field())
	}
	return filepath.Join(h.dir, h.tmpl.Format(n)), nil
}

func (h *npySeriesHandler) Decode(_ context.Context, kw models.Kwargs) (models.Array, error) {
	path, err := h.file(kw)
	if err != nil {
		return models.Array{}, err
	}
	return ReadNpyFile(path)
}

// FileList impl ports.FileLister
func (h *npySeriesHandler) FileList(kws []models.Kwargs) ([]string, error) {
	ret := make([]string, 0, len(kws))
	for _, kw := range kws {
		path, err := h.file(kw)
		if err != nil {
			return nil, err
		}
		ret = append(ret, path)
	}
	return ret, nil
}

func (h *npySeriesHandler) Close() error {
	return nil
}
