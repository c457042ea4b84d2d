package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"filestore/internal/application/handlers"
	"filestore/internal/application/roots"
	"filestore/internal/domain/models"
	"filestore/internal/domain/ports"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	id     int32
	root   string
	closed atomic.Bool
}

func (h *fakeHandler) Decode(context.Context, models.Kwargs) (models.Array, error) {
	return models.NewArray([]int{1}, models.DtypeFloat64, []float64{float64(h.id)})
}

func (h *fakeHandler) Close() error {
	h.closed.Store(true)
	return nil
}

type countingFactory struct {
	calls   atomic.Int32
	gate    chan struct{}
	entered chan struct{}
	fail    error
}

func (f *countingFactory) Construct(ctx context.Context, loc models.Location, _ models.Kwargs) (ports.Handler, error) {
	n := f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.fail != nil {
		return nil, f.fail
	}
	return &fakeHandler{id: n, root: loc.Root}, nil
}

func newTestCache(t *testing.T, f ports.HandlerFactory, opts ...Option) (*HandlerCache, *roots.Map) {
	t.Helper()
	reg := handlers.NewRegistry()
	require.NoError(t, reg.Register("fake", f))
	rm := roots.NewMap()
	hc, err := New(reg, rm, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hc.Close() })
	return hc, rm
}

var res1 = models.Resource{ID: "r1", Spec: "fake", Root: "/data", ResourcePath: "a"}
var res2 = models.Resource{ID: "r2", Spec: "fake", Root: "/data", ResourcePath: "b"}

func TestHandlerCache_ReusesHandler(t *testing.T) {
	f := &countingFactory{}
	reg := prometheus.NewRegistry()
	hc, _ := newTestCache(t, f, WithRegisterer(reg))
	ctx := context.Background()

	h1, err := hc.GetHandler(ctx, res1)
	require.NoError(t, err)
	h2, err := hc.GetHandler(ctx, res1)
	require.NoError(t, err)

	assert.Same(t, h1, h2)
	assert.EqualValues(t, 1, f.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(hc.metrics.hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(hc.metrics.misses))
	assert.Equal(t, 1.0, testutil.ToFloat64(hc.metrics.live))
}

func TestHandlerCache_UnregisteredSpec(t *testing.T) {
	hc, _ := newTestCache(t, &countingFactory{})
	_, err := hc.GetHandler(context.Background(), models.Resource{ID: "x", Spec: "HDF5"})
	assert.True(t, errors.Is(err, ports.ErrUnregisteredSpec))
}

func TestHandlerCache_SingleFlight(t *testing.T) {
	f := &countingFactory{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	hc, _ := newTestCache(t, f)

	const callers = 16
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
		got     [callers]ports.Handler
	)
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			h, err := hc.GetHandler(context.Background(), res1)
			assert.NoError(t, err)
			got[i] = h
		}(i)
	}
	started.Wait()
	<-f.entered
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.EqualValues(t, 1, f.calls.Load())
	for i := 1; i < callers; i++ {
		assert.Same(t, got[0], got[i])
	}
}

func TestHandlerCache_FailureSharedAndNotCached(t *testing.T) {
	boom := errors.New("corrupt header")
	f := &countingFactory{gate: make(chan struct{}), entered: make(chan struct{}, 1), fail: boom}
	hc, _ := newTestCache(t, f)

	const callers = 4
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
		errs    [callers]error
	)
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			_, errs[i] = hc.GetHandler(context.Background(), res1)
		}(i)
	}
	started.Wait()
	<-f.entered
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	for _, err := range errs {
		require.Error(t, err)
		assert.True(t, errors.Is(err, ports.ErrHandlerConstruction))
		assert.True(t, errors.Is(err, boom))
		var hce *ports.HandlerConstructionError
		require.True(t, errors.As(err, &hce))
		assert.Equal(t, "r1", hce.ResourceID)
	}
	assert.EqualValues(t, 1, f.calls.Load())
	assert.Zero(t, hc.Len())

	f.entered = nil
	_, err := hc.GetHandler(context.Background(), res1)
	require.Error(t, err)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestHandlerCache_InvalidateRebuildsOnce(t *testing.T) {
	f := &countingFactory{}
	hc, _ := newTestCache(t, f)
	ctx := context.Background()

	h1, err := hc.GetHandler(ctx, res1)
	require.NoError(t, err)
	h2, err := hc.GetHandler(ctx, res2)
	require.NoError(t, err)
	assert.NotSame(t, h1, h2)

	assert.Equal(t, 1, hc.Invalidate("r1"))
	assert.True(t, h1.(*fakeHandler).closed.Load())
	assert.False(t, h2.(*fakeHandler).closed.Load())

	h1b, err := hc.GetHandler(ctx, res1)
	require.NoError(t, err)
	_, err = hc.GetHandler(ctx, res1)
	require.NoError(t, err)
	assert.NotSame(t, h1, h1b)
	assert.EqualValues(t, 3, f.calls.Load())

	h2b, err := hc.GetHandler(ctx, res2)
	require.NoError(t, err)
	assert.Same(t, h2, h2b)
}

func TestHandlerCache_InvalidateRootUsesRemappedRoot(t *testing.T) {
	f := &countingFactory{}
	hc, rm := newTestCache(t, f)
	ctx := context.Background()

	h, err := hc.GetHandler(ctx, res1)
	require.NoError(t, err)
	assert.Equal(t, "/data", h.(*fakeHandler).root)

	rm.AddRoot("/data", "/mnt/data")
	assert.Equal(t, 0, hc.InvalidateRoot("/other"))
	assert.Equal(t, 1, hc.InvalidateRoot("/data"))

	h, err = hc.GetHandler(ctx, res1)
	require.NoError(t, err)
	assert.Equal(t, "/mnt/data", h.(*fakeHandler).root)
}

func TestHandlerCache_InvalidateDuringBuild(t *testing.T) {
	f := &countingFactory{gate: make(chan struct{}, 2), entered: make(chan struct{}, 2)}
	hc, _ := newTestCache(t, f)

	done := make(chan ports.Handler)
	go func() {
		h, err := hc.GetHandler(context.Background(), res1)
		assert.NoError(t, err)
		done <- h
	}()
	<-f.entered
	hc.Invalidate("r1")
	f.gate <- struct{}{}
	<-f.entered
	f.gate <- struct{}{}

	h := <-done
	assert.EqualValues(t, 2, f.calls.Load())
	assert.EqualValues(t, 2, h.(*fakeHandler).id)
	assert.False(t, h.(*fakeHandler).closed.Load())
}

func TestHandlerCache_CallerCancellation(t *testing.T) {
	f := &countingFactory{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	hc, _ := newTestCache(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error)
	go func() {
		_, err := hc.GetHandler(ctx, res1)
		errc <- err
	}()
	<-f.entered
	cancel()
	assert.True(t, errors.Is(<-errc, context.Canceled))

	close(f.gate)
	require.Eventually(t, func() bool { return hc.Len() == 1 }, time.Second, 5*time.Millisecond)

	_, err := hc.GetHandler(context.Background(), res1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestHandlerCache_PerCall(t *testing.T) {
	f := &countingFactory{}
	hc, _ := newTestCache(t, f, WithConfig(Config{Policy: PolicyPerCall}))
	ctx := context.Background()

	_, err := hc.GetHandler(ctx, res1)
	assert.True(t, errors.Is(err, ports.ErrNotSupported))

	h1, release1, err := hc.Acquire(ctx, res1)
	require.NoError(t, err)
	h2, release2, err := hc.Acquire(ctx, res1)
	require.NoError(t, err)
	assert.NotSame(t, h1, h2)

	release1()
	release2()
	assert.True(t, h1.(*fakeHandler).closed.Load())
	assert.True(t, h2.(*fakeHandler).closed.Load())
	assert.Zero(t, hc.Len())
}

func TestHandlerCache_BoundedEvictsAndCloses(t *testing.T) {
	f := &countingFactory{}
	hc, _ := newTestCache(t, f, WithConfig(Config{Size: 1}))
	ctx := context.Background()

	h1, err := hc.GetHandler(ctx, res1)
	require.NoError(t, err)
	_, err = hc.GetHandler(ctx, res2)
	require.NoError(t, err)

	assert.Equal(t, 1, hc.Len())
	assert.True(t, h1.(*fakeHandler).closed.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(hc.metrics.evictions))
}

func slotCount(hc *HandlerCache) int {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	return len(hc.slots)
}

func TestHandlerCache_SlotsFollowLiveHandlers(t *testing.T) {
	f := &countingFactory{}
	hc, _ := newTestCache(t, f, WithConfig(Config{Size: 1}))
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		res := models.Resource{ID: fmt.Sprintf("r%d", i), Spec: "fake", Root: "/data"}
		_, err := hc.GetHandler(ctx, res)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, hc.Len())
	assert.Equal(t, 1, slotCount(hc))

	assert.Equal(t, 1, hc.Invalidate("r49"))
	assert.Zero(t, slotCount(hc))
	assert.Zero(t, hc.Invalidate("never-built"))
	assert.Zero(t, slotCount(hc))

	f.fail = errors.New("boom")
	_, err := hc.GetHandler(ctx, res1)
	require.Error(t, err)
	assert.Zero(t, slotCount(hc))
}

func TestHandlerCache_SlotKeptWhileBuilding(t *testing.T) {
	f := &countingFactory{gate: make(chan struct{}, 1), entered: make(chan struct{}, 1)}
	hc, _ := newTestCache(t, f)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := hc.GetHandler(context.Background(), res1)
		assert.NoError(t, err)
	}()
	<-f.entered
	hc.Invalidate("r1")
	assert.Equal(t, 1, slotCount(hc))
	f.gate <- struct{}{}
	<-f.entered
	f.gate <- struct{}{}
	<-done

	assert.Equal(t, 1, slotCount(hc))
	hc.Invalidate("r1")
	assert.Zero(t, slotCount(hc))
}

func TestHandlerCache_BuildLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	f := ports.HandlerFactoryFunc(func(ctx context.Context, loc models.Location, _ models.Kwargs) (ports.Handler, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return &fakeHandler{root: loc.Root}, nil
	})
	hc, _ := newTestCache(t, f, WithConfig(Config{MaxConcurrentBuilds: 1}))

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := hc.GetHandler(context.Background(), models.Resource{ID: id, Spec: "fake"})
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()
	assert.EqualValues(t, 1, peak.Load())
	assert.Equal(t, 4, hc.Len())
}

func TestHandlerCache_CloseClosesAll(t *testing.T) {
	hc, _ := newTestCache(t, &countingFactory{})
	h, err := hc.GetHandler(context.Background(), res1)
	require.NoError(t, err)
	require.NoError(t, hc.Close())
	assert.True(t, h.(*fakeHandler).closed.Load())
	_, err = hc.GetHandler(context.Background(), res1)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.NoError(t, Config{Policy: PolicyPerCall, Size: 10}.Validate())
	assert.Error(t, Config{Policy: "lfu"}.Validate())
	assert.Error(t, Config{Size: -1}.Validate())
}
