package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"filestore/internal/domain/models"
	"filestore/internal/domain/ports"

	"github.com/google/uuid"
	"github.com/juju/mgo/v3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil, "x"))
	assert.True(t, errors.Is(classify(mgo.ErrNotFound, "x"), ports.ErrNotFound))
	assert.True(t, errors.Is(classify(&mgo.LastError{Code: 11000}, "x"), ports.ErrAlreadyExists))
	assert.True(t, errors.Is(classify(errors.New("no reachable servers"), "x"), ports.ErrStoreUnavailable))
}

func TestDocumentsKeepDefaults(t *testing.T) {
	doc := toResourceDoc(models.Resource{ID: "r", Spec: "npy"})
	assert.Equal(t, string(models.PathSemanticsPosix), doc.PathSemantics)
	assert.NotNil(t, doc.ResourceKwargs)
	assert.Equal(t, models.PathSemanticsPosix, doc.model().PathSemantics)
}

func TestRegistry_RoundTrip(t *testing.T) {
	url := os.Getenv("FILESTORE_MONGO_URL")
	if url == "" {
		t.Skip("FILESTORE_MONGO_URL is not set")
	}
	ctx := context.Background()
	reg, err := NewRegistry(ctx, Config{URL: url, Database: "filestore_test", Timeout: 10 * time.Second})
	require.NoError(t, err)
	defer reg.Close()

	resID, datID := uuid.NewString(), uuid.NewString()
	w, err := reg.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.InsertResources(ctx, []models.Resource{{ID: resID, Spec: "npy", Root: "/a", ResourcePath: "x.npy"}}))
	require.NoError(t, w.InsertDatums(ctx, []models.Datum{{ID: datID, ResourceID: resID, DatumKwargs: models.Kwargs{}}}))
	require.NoError(t, w.Commit())

	w, err = reg.Writer(ctx)
	require.NoError(t, err)
	require.NoError(t, w.InsertResources(ctx, []models.Resource{{ID: resID, Spec: "npy"}}))
	assert.True(t, errors.Is(w.Commit(), ports.ErrAlreadyExists))

	rd, err := reg.Reader(ctx)
	require.NoError(t, err)
	defer rd.Close()
	res, err := rd.GetResourceByID(ctx, resID)
	require.NoError(t, err)
	assert.Equal(t, "x.npy", res.ResourcePath)
	d, err := rd.GetDatumByID(ctx, datID)
	require.NoError(t, err)
	assert.Equal(t, resID, d.ResourceID)
}
