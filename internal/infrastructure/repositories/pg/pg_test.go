package pg

import (
	"context"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"filestore/internal/domain/models"
	"filestore/internal/domain/ports"
	"filestore/internal/patterns"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil, "x"))
	assert.True(t, errors.Is(classify(pgx.ErrNoRows, "x"), ports.ErrNotFound))
	assert.True(t, errors.Is(classify(&pgconn.PgError{Code: pgUniqueViolation}, "x"), ports.ErrAlreadyExists))
	assert.True(t, errors.Is(classify(&pgconn.PgError{Code: pgForeignKeyViolation}, "x"), ports.ErrNotFound))
	assert.False(t, ports.IsTransient(classify(&pgconn.PgError{Code: "42P01"}, "x")))

	dial := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	assert.True(t, errors.Is(classify(dial, "x"), ports.ErrStoreUnavailable))
	assert.True(t, ports.IsTransient(classify(errors.Wrap(syscall.EPIPE, "write"), "x")))
	assert.True(t, ports.IsTransient(classify(io.ErrUnexpectedEOF, "x")))

	_, err := (&ConnectionManager{}).BeginTx(context.Background(), pgx.ReadOnly)
	assert.True(t, ports.IsTransient(classify(err, "begin read tx")))
}

func TestClassify_KeepsCancellationAndScanErrors(t *testing.T) {
	for _, cause := range []error{context.Canceled, context.DeadlineExceeded} {
		err := classify(errors.Wrap(cause, "query"), "list datums")
		assert.True(t, errors.Is(err, cause))
		assert.False(t, ports.IsTransient(err))
		assert.Contains(t, err.Error(), "list datums")
	}

	scan := errors.New("can't scan into dest[1]: cannot scan NULL into *string")
	err := classify(scan, "scan datum")
	assert.True(t, errors.Is(err, scan))
	assert.False(t, ports.IsTransient(err))
	assert.False(t, errors.Is(err, ports.ErrNotFound))
}

func TestMigrationsEmbedded(t *testing.T) {
	body, err := migrationsFS.ReadFile("migrations/0001_init.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "filestore.resource_relocation")
}

func newTestRegistry(t *testing.T) *Registry {
	uri := os.Getenv("FILESTORE_PG_URI")
	if uri == "" {
		t.Skip("FILESTORE_PG_URI is not set")
	}
	cfg := DefaultConnectionConfig()
	cfg.URI = uri
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	reg, err := NewRegistryFromPG(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func TestRegistry_RoundTrip(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	var events []ports.CommitEvent
	require.NoError(t, reg.Subject().Subscribe(patterns.NewObserver(func(ev interface{}) {
		events = append(events, ev.(ports.CommitEvent))
	})))

	resID := uuid.NewString()
	w, err := reg.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.InsertResources(ctx, []models.Resource{{
		ID:             resID,
		Spec:           "npy_series",
		Root:           "/data",
		ResourcePath:   "run1",
		ResourceKwargs: models.Kwargs{"template": "cub_{point_number:05}.npy"},
	}}))
	datID := uuid.NewString()
	require.NoError(t, w.InsertDatums(ctx, []models.Datum{{
		ID: datID, ResourceID: resID, DatumKwargs: models.Kwargs{"point_number": 3},
	}}))
	require.NoError(t, w.Commit())
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Datums)

	rd, err := reg.Reader(ctx)
	require.NoError(t, err)
	defer rd.Close()

	res, err := rd.GetResourceByID(ctx, resID)
	require.NoError(t, err)
	assert.Equal(t, models.PathSemanticsPosix, res.PathSemantics)
	assert.Equal(t, "cub_{point_number:05}.npy", res.ResourceKwargs["template"])

	d, err := rd.GetDatumByID(ctx, datID)
	require.NoError(t, err)
	n, err := d.DatumKwargs.Int("point_number")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = rd.GetDatumByID(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, ports.ErrNotFound))
}

func TestRegistry_Duplicate(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	id := uuid.NewString()

	w, err := reg.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.InsertResources(ctx, []models.Resource{{ID: id, Spec: "npy"}}))
	require.NoError(t, w.Commit())

	w, err = reg.Writer(ctx)
	require.NoError(t, err)
	err = w.InsertResources(ctx, []models.Resource{{ID: id, Spec: "npy"}})
	w.Abort()
	assert.True(t, errors.Is(err, ports.ErrAlreadyExists))
}
