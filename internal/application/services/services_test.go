package services

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"filestore/internal/application/cache"
	"filestore/internal/application/handlers"
	"filestore/internal/application/roots"
	"filestore/internal/domain/models"
	"filestore/internal/domain/ports"
	"filestore/internal/formats"
	"filestore/internal/infrastructure/repositories/mem"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"golang.org/x/image/tiff"
)

type countingFactory struct {
	inner ports.HandlerFactory
	n     atomic.Int32
}

func (f *countingFactory) Construct(ctx context.Context, loc models.Location, kw models.Kwargs) (ports.Handler, error) {
	f.n.Add(1)
	return f.inner.Construct(ctx, loc, kw)
}

type aliasFactory struct {
	formats.NpyFactory
	aliases []string
}

func (f aliasFactory) Specs() []string {
	return f.aliases
}

type plainHandler struct{}

func (plainHandler) Decode(context.Context, models.Kwargs) (models.Array, error) {
	return models.NewArray([]int{1}, models.DtypeFloat64, []float64{1})
}

func (plainHandler) Close() error { return nil }

type ResolverSuite struct {
	suite.Suite

	ctx      context.Context
	dir      string
	store    *StoreService
	handlers *handlers.Registry
	roots    *roots.Map
	resolver *Resolver
	tiff     *countingFactory
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctx = context.Background()
	s.dir = s.T().TempDir()
	s.store = NewStoreService(mem.NewRegistry())
	s.handlers = handlers.NewRegistry()
	s.Require().NoError(formats.RegisterBuiltins(s.handlers))
	s.tiff = &countingFactory{inner: formats.TiffStackFactory{}}
	s.Require().NoError(s.handlers.Register(formats.SpecTiffStack, s.tiff))
	s.roots = roots.NewMap()

	hc, err := cache.New(s.handlers, s.roots, cache.WithRegisterer(prometheus.NewRegistry()))
	s.Require().NoError(err)
	s.resolver, err = NewResolver(s.store, s.handlers, s.roots, hc,
		WithResolverLogger(logr.Discard()), WithResolverRegisterer(prometheus.NewRegistry()))
	s.Require().NoError(err)
}

func (s *ResolverSuite) TearDownTest() {
	s.Require().NoError(s.resolver.Close())
}

// writeStack writes n 2x2 frames whose pixels are 10*i + k
func (s *ResolverSuite) writeStack(dir string, n int) {
	s.Require().NoError(os.MkdirAll(dir, 0o755))
	for i := 0; i < n; i++ {
		img := image.NewGray(image.Rect(0, 0, 2, 2))
		for k := range img.Pix {
			img.Pix[k] = uint8(10*i + k)
		}
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("%05d.tif", i)))
		s.Require().NoError(err)
		s.Require().NoError(tiff.Encode(f, img, nil))
		s.Require().NoError(f.Close())
	}
}

func (s *ResolverSuite) insertStack(root, path string, n int) (string, []string) {
	resID, err := s.store.InsertResource(s.ctx, models.Resource{
		Spec:           formats.SpecTiffStack,
		Root:           root,
		ResourcePath:   path,
		ResourceKwargs: models.Kwargs{"template": "{index:05}.tif"},
	})
	s.Require().NoError(err)
	datums := make([]models.Datum, n)
	for i := range datums {
		datums[i] = models.Datum{ResourceID: resID, DatumKwargs: models.Kwargs{"index": i}}
	}
	ids, err := s.store.InsertDatums(s.ctx, datums)
	s.Require().NoError(err)
	return resID, ids
}

func (s *ResolverSuite) TestTiffStackScenario() {
	s.writeStack(filepath.Join(s.dir, "stack"), 3)
	_, ids := s.insertStack(s.dir, "stack", 3)

	for i, id := range ids {
		arr, err := s.resolver.GetData(s.ctx, id)
		s.Require().NoError(err)
		s.Equal([]int{2, 2}, arr.Shape)
		b := float64(10 * i)
		s.Equal([]float64{b, b + 1, b + 2, b + 3}, arr.Data)
	}
	s.EqualValues(1, s.tiff.n.Load())

	a, err := s.resolver.GetData(s.ctx, ids[1])
	s.Require().NoError(err)
	b, err := s.resolver.GetData(s.ctx, ids[1])
	s.Require().NoError(err)
	s.True(a.Equal(b))
	s.EqualValues(1, s.tiff.n.Load())
}

func (s *ResolverSuite) TestConcurrentFirstAccess() {
	s.writeStack(filepath.Join(s.dir, "stack"), 2)
	_, ids := s.insertStack(s.dir, "stack", 2)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.resolver.GetData(s.ctx, ids[i%2])
			s.NoError(err)
		}(i)
	}
	wg.Wait()
	s.EqualValues(1, s.tiff.n.Load())
}

func (s *ResolverSuite) TestInvalidateRebuildsOnce() {
	s.writeStack(filepath.Join(s.dir, "stack"), 1)
	resID, ids := s.insertStack(s.dir, "stack", 1)

	_, err := s.resolver.GetData(s.ctx, ids[0])
	s.Require().NoError(err)
	s.Equal(1, s.resolver.Invalidate(resID))
	for i := 0; i < 3; i++ {
		_, err = s.resolver.GetData(s.ctx, ids[0])
		s.Require().NoError(err)
	}
	s.EqualValues(2, s.tiff.n.Load())
}

func (s *ResolverSuite) TestTwoResourcesAreIndependent() {
	s.writeStack(filepath.Join(s.dir, "a"), 1)
	s.writeStack(filepath.Join(s.dir, "b"), 1)
	resA, idsA := s.insertStack(s.dir, "a", 1)
	_, idsB := s.insertStack(s.dir, "b", 1)

	_, err := s.resolver.GetData(s.ctx, idsA[0])
	s.Require().NoError(err)
	_, err = s.resolver.GetData(s.ctx, idsB[0])
	s.Require().NoError(err)
	s.EqualValues(2, s.tiff.n.Load())

	s.resolver.Invalidate(resA)
	_, err = s.resolver.GetData(s.ctx, idsB[0])
	s.Require().NoError(err)
	s.EqualValues(2, s.tiff.n.Load())
	_, err = s.resolver.GetData(s.ctx, idsA[0])
	s.Require().NoError(err)
	s.EqualValues(3, s.tiff.n.Load())
}

func (s *ResolverSuite) TestDatumWithMissingResource() {
	id, err := s.store.InsertDatum(s.ctx, models.Datum{ResourceID: "ghost", DatumKwargs: models.Kwargs{"index": 0}})
	s.Require().NoError(err)
	_, err = s.resolver.GetData(s.ctx, id)
	s.True(errors.Is(err, ports.ErrNotFound))

	_, err = s.resolver.GetData(s.ctx, "no-such-datum")
	s.True(errors.Is(err, ports.ErrNotFound))
}

func (s *ResolverSuite) TestOutOfRangeIsDecodeError() {
	s.writeStack(filepath.Join(s.dir, "stack"), 2)
	resID, _ := s.insertStack(s.dir, "stack", 2)
	id, err := s.store.InsertDatum(s.ctx, models.Datum{ResourceID: resID, DatumKwargs: models.Kwargs{"index": 5}})
	s.Require().NoError(err)

	_, err = s.resolver.GetData(s.ctx, id)
	s.Require().Error(err)
	s.True(errors.Is(err, ports.ErrDecode))
	var de *ports.DecodeError
	s.Require().True(errors.As(err, &de))
	s.Equal(id, de.DatumID)
	s.Equal(resID, de.ResourceID)
	s.Equal(formats.SpecTiffStack, de.Spec)
}

func (s *ResolverSuite) TestUnregisteredSpec() {
	resID, err := s.store.InsertResource(s.ctx, models.Resource{Spec: "HDF5", Root: s.dir, ResourcePath: "x.h5"})
	s.Require().NoError(err)
	id, err := s.store.InsertDatum(s.ctx, models.Datum{ResourceID: resID})
	s.Require().NoError(err)

	_, err = s.resolver.GetData(s.ctx, id)
	s.True(errors.Is(err, ports.ErrUnregisteredSpec))
	var use *ports.UnregisteredSpecError
	s.Require().True(errors.As(err, &use))
	s.Equal("HDF5", use.Spec)
	s.Contains(err.Error(), id)
	s.Contains(err.Error(), resID)

	// registering later makes existing data readable
	s.Require().NoError(s.resolver.RegisterHandler("HDF5", ports.HandlerFactoryFunc(
		func(context.Context, models.Location, models.Kwargs) (ports.Handler, error) {
			return plainHandler{}, nil
		})))
	_, err = s.resolver.GetData(s.ctx, id)
	s.NoError(err)
}

func (s *ResolverSuite) TestConstructionFailure() {
	resID, ids := s.insertStack(s.dir, "missing", 1)
	_, err := s.resolver.GetData(s.ctx, ids[0])
	s.True(errors.Is(err, ports.ErrHandlerConstruction))
	s.Contains(err.Error(), ids[0])
	s.Contains(err.Error(), resID)

	s.writeStack(filepath.Join(s.dir, "missing"), 1)
	_, err = s.resolver.GetData(s.ctx, ids[0])
	s.NoError(err)
	s.EqualValues(2, s.tiff.n.Load())
}

func (s *ResolverSuite) TestGetSpecList() {
	s.Require().NoError(s.handlers.Register("npy_legacy", aliasFactory{aliases: []string{formats.SpecNpy}}))
	resID, err := s.store.InsertResource(s.ctx, models.Resource{Spec: formats.SpecNpy, Root: s.dir, ResourcePath: "a.npy"})
	s.Require().NoError(err)

	specs, err := s.resolver.GetSpecList(s.ctx, resID)
	s.Require().NoError(err)
	s.Equal([]string{formats.SpecNpy, "npy_legacy"}, specs)

	_, err = s.resolver.GetSpecList(s.ctx, "nope")
	s.True(errors.Is(err, ports.ErrNotFound))
}

func (s *ResolverSuite) TestGetFileList() {
	s.writeStack(filepath.Join(s.dir, "stack"), 2)
	resID, _ := s.insertStack(s.dir, "stack", 2)
	files, err := s.resolver.GetFileList(s.ctx, resID)
	s.Require().NoError(err)
	s.Equal([]string{
		filepath.Join(s.dir, "stack", "00000.tif"),
		filepath.Join(s.dir, "stack", "00001.tif"),
	}, files)

	s.Require().NoError(s.handlers.Register("plain", ports.HandlerFactoryFunc(
		func(context.Context, models.Location, models.Kwargs) (ports.Handler, error) {
			return plainHandler{}, nil
		})))
	plainID, err := s.store.InsertResource(s.ctx, models.Resource{Spec: "plain"})
	s.Require().NoError(err)
	_, err = s.resolver.GetFileList(s.ctx, plainID)
	s.True(errors.Is(err, ports.ErrNotSupported))
}

func (s *ResolverSuite) TestAddRootRemapsAndInvalidates() {
	logical := filepath.Join(s.dir, "logical")
	actual := filepath.Join(s.dir, "actual")
	s.writeStack(filepath.Join(logical, "stack"), 1)
	_, ids := s.insertStack(logical, "stack", 1)

	_, err := s.resolver.GetData(s.ctx, ids[0])
	s.Require().NoError(err)

	s.Require().NoError(os.Rename(logical, actual))
	s.resolver.AddRoot(logical, actual)

	arr, err := s.resolver.GetData(s.ctx, ids[0])
	s.Require().NoError(err)
	s.Equal([]float64{0, 1, 2, 3}, arr.Data)
	s.EqualValues(2, s.tiff.n.Load())
}

func (s *ResolverSuite) TestChangeRoot() {
	oldRoot := filepath.Join(s.dir, "old")
	newRoot := filepath.Join(s.dir, "new")
	s.writeStack(filepath.Join(oldRoot, "stack"), 2)
	resID, ids := s.insertStack(oldRoot, "stack", 2)

	_, err := s.resolver.GetData(s.ctx, ids[1])
	s.Require().NoError(err)

	rl := NewRelocator(s.store, s.resolver, s.roots, logr.Discard())
	rec, err := rl.ChangeRoot(s.ctx, resID, newRoot, true)
	s.Require().NoError(err)
	s.Equal(oldRoot, rec.OldRoot)
	s.Equal(models.RelocationChangeRoot, rec.Cmd)

	s.NoFileExists(filepath.Join(oldRoot, "stack", "00001.tif"))
	s.FileExists(filepath.Join(newRoot, "stack", "00001.tif"))

	arr, err := s.resolver.GetData(s.ctx, ids[1])
	s.Require().NoError(err)
	s.Equal([]float64{10, 11, 12, 13}, arr.Data)
	s.EqualValues(2, s.tiff.n.Load())

	res, err := s.store.GetResource(s.ctx, resID)
	s.Require().NoError(err)
	s.Equal(oldRoot, res.Root)

	_, err = rl.ChangeRoot(s.ctx, resID, newRoot, false)
	s.Error(err)

	hist, err := rl.History(s.ctx, resID)
	s.Require().NoError(err)
	s.Require().Len(hist, 1)
	s.Equal(newRoot, hist[0].NewRoot)
	s.True(hist[0].Removed)

	// a fresh resolver over the same store replays the move
	freshRoots := roots.NewMap()
	hc, err := cache.New(s.handlers, freshRoots)
	s.Require().NoError(err)
	fresh, err := NewResolver(s.store, s.handlers, freshRoots, hc)
	s.Require().NoError(err)
	defer fresh.Close()
	s.Require().NoError(fresh.LoadRelocations(s.ctx))
	_, err = fresh.GetData(s.ctx, ids[0])
	s.NoError(err)
}

func (s *ResolverSuite) TestChangeRootRollsBackFailedCopy() {
	oldRoot := filepath.Join(s.dir, "old")
	newRoot := filepath.Join(s.dir, "new")
	s.writeStack(filepath.Join(oldRoot, "stack"), 3)
	resID, ids := s.insertStack(oldRoot, "stack", 3)

	stray := filepath.Join(newRoot, "stack", "00001.tif")
	s.Require().NoError(os.MkdirAll(filepath.Dir(stray), 0o755))
	s.Require().NoError(os.WriteFile(stray, []byte("not a tiff"), 0o644))

	rl := NewRelocator(s.store, s.resolver, s.roots, logr.Discard())
	_, err := rl.ChangeRoot(s.ctx, resID, newRoot, true)
	s.Require().Error(err)
	s.NoFileExists(filepath.Join(newRoot, "stack", "00000.tif"))
	s.NoFileExists(filepath.Join(newRoot, "stack", "00002.tif"))
	s.FileExists(stray)
	s.FileExists(filepath.Join(oldRoot, "stack", "00000.tif"))
	hist, err := rl.History(s.ctx, resID)
	s.Require().NoError(err)
	s.Empty(hist)

	s.Require().NoError(os.Remove(stray))
	_, err = rl.ChangeRoot(s.ctx, resID, newRoot, true)
	s.Require().NoError(err)
	arr, err := s.resolver.GetData(s.ctx, ids[2])
	s.Require().NoError(err)
	s.Equal([]float64{20, 21, 22, 23}, arr.Data)
}

func (s *ResolverSuite) TestChangeRootBackToOrigin() {
	rootA := filepath.Join(s.dir, "a")
	rootB := filepath.Join(s.dir, "b")
	s.writeStack(filepath.Join(rootA, "stack"), 2)
	resID, ids := s.insertStack(rootA, "stack", 2)

	rl := NewRelocator(s.store, s.resolver, s.roots, logr.Discard())
	_, err := rl.ChangeRoot(s.ctx, resID, rootB, false)
	s.Require().NoError(err)
	s.FileExists(filepath.Join(rootA, "stack", "00001.tif"))

	rec, err := rl.ChangeRoot(s.ctx, resID, rootA, false)
	s.Require().NoError(err)
	s.Equal(rootB, rec.OldRoot)
	s.Equal(rootA, rec.NewRoot)

	arr, err := s.resolver.GetData(s.ctx, ids[1])
	s.Require().NoError(err)
	s.Equal([]float64{10, 11, 12, 13}, arr.Data)
	hist, err := rl.History(s.ctx, resID)
	s.Require().NoError(err)
	s.Len(hist, 2)
}

func (s *ResolverSuite) TestSaveArray() {
	arr, err := models.NewArray([]int{2, 2}, models.DtypeFloat64, []float64{1, 2, 3, 4})
	s.Require().NoError(err)

	id, err := SaveArray(s.ctx, s.store, arr, filepath.Join(s.dir, "cache"))
	s.Require().NoError(err)
	got, err := s.resolver.GetData(s.ctx, id)
	s.Require().NoError(err)
	s.True(arr.Equal(got))

	small, err := models.NewArray([]int{3}, models.DtypeUint8, []float64{0, 128, 255})
	s.Require().NoError(err)
	id, err = SaveArray(s.ctx, s.store, small, filepath.Join(s.dir, "cache"))
	s.Require().NoError(err)
	got, err = s.resolver.GetData(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.DtypeUint8, got.Dtype)
	s.True(small.Equal(got))
}

func (s *ResolverSuite) TestNpyWriterSingleUse() {
	path := filepath.Join(s.dir, "one.npy")
	arr, _ := models.NewArray([]int{3}, models.DtypeFloat64, []float64{1, 2, 3})

	_, err := NewNpyWriter(s.store, path, models.Kwargs{"compression": "gzip"})
	s.Error(err)

	w, err := NewNpyWriter(s.store, path, models.Kwargs{"mmap_mode": "r"})
	s.Require().NoError(err)
	id, err := w.Add(s.ctx, arr, "my-datum", nil)
	s.Require().NoError(err)
	s.Equal("my-datum", id)

	_, err = w.Add(s.ctx, arr, "", nil)
	s.Error(err)
	_, err = NewNpyWriter(s.store, path, nil)
	s.Error(err)

	got, err := s.resolver.GetData(s.ctx, id)
	s.Require().NoError(err)
	s.Equal([]float64{1, 2, 3}, got.Data)
}

func (s *ResolverSuite) TestInsertDuplicateID() {
	_, err := s.store.InsertResource(s.ctx, models.Resource{ID: "fixed", Spec: "npy"})
	s.Require().NoError(err)
	_, err = s.store.InsertResource(s.ctx, models.Resource{ID: "fixed", Spec: "npy"})
	s.True(errors.Is(err, ports.ErrAlreadyExists))
}

func newMemRegistry() ports.Registry {
	return mem.NewRegistry()
}
