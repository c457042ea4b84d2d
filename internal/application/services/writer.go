package services

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"filestore/internal/domain/models"
	"filestore/internal/formats"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// NpyWriter writes exactly one array to a new .npy file and registers it
type NpyWriter struct {
	store  *StoreService
	path   string
	custom models.Kwargs

	mu   sync.Mutex
	used bool
}

// NewNpyWriter fails when path exists or custom holds keys other than mmap_mode
func NewNpyWriter(store *StoreService, path string, custom models.Kwargs) (*NpyWriter, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, errors.Errorf("the requested file '%s' already exists", path)
	}
	for _, k := range custom.Keys() {
		if k != "mmap_mode" {
			return nil, errors.Errorf("the only valid custom key is 'mmap_mode', got %q", k)
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &NpyWriter{
		store:  store,
		path:   abs,
		custom: custom.Clone(),
	}, nil
}

// Add writes arr, inserts the resource and its datum and returns the datum id.
// An empty datumID gets a time based UUID.
func (w *NpyWriter) Add(ctx context.Context, arr models.Array, datumID string, custom models.Kwargs) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.used {
		return "", errors.New("this writer can only write one array and has already been used")
	}
	if len(custom) != 0 {
		return "", errors.New("datum custom kwargs are not supported")
	}
	if datumID == "" {
		id, err := uuid.NewUUID()
		if err != nil {
			return "", err
		}
		datumID = id.String()
	}

	f, err := os.OpenFile(w.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrapf(err, "create '%s'", w.path)
	}
	bw := bufio.NewWriter(f)
	if err = formats.WriteNpy(bw, arr); err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(w.path)
		return "", errors.WithMessagef(err, "write '%s'", w.path)
	}
	w.used = true

	res := models.Resource{
		ID:             uuid.NewString(),
		Spec:           formats.SpecNpy,
		Root:           filepath.Dir(w.path),
		ResourcePath:   filepath.Base(w.path),
		ResourceKwargs: w.custom.Clone(),
		PathSemantics:  models.PathSemanticsPosix,
	}
	err = w.store.InsertResourceWithDatums(ctx, res, []models.Datum{{
		ID:          datumID,
		ResourceID:  res.ID,
		DatumKwargs: models.Kwargs{},
	}})
	if err != nil {
		return "", errors.WithMessage(err, "register written array")
	}
	return datumID, nil
}

// SaveArray writes arr under basePath, or ~/.fs_cache/YYYY-MM-DD when basePath is empty,
// and returns the new datum id
func SaveArray(ctx context.Context, store *StoreService, arr models.Array, basePath string) (string, error) {
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "resolve home directory")
		}
		basePath = filepath.Join(home, ".fs_cache", time.Now().Format("2006-01-02"))
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return "", errors.Wrapf(err, "create '%s'", basePath)
	}
	w, err := NewNpyWriter(store, filepath.Join(basePath, uuid.NewString()+".npy"), nil)
	if err != nil {
		return "", err
	}
	return w.Add(ctx, arr, "", nil)
}
