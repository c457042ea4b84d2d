package ports

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	var err error = &UnregisteredSpecError{Spec: "HDF5"}
	err = errors.Wrap(err, "resolve datum d1")
	assert.True(t, errors.Is(err, ErrUnregisteredSpec))
	assert.False(t, errors.Is(err, ErrNotFound))

	var unreg *UnregisteredSpecError
	if assert.True(t, errors.As(err, &unreg)) {
		assert.Equal(t, "HDF5", unreg.Spec)
	}

	err = errors.WithMessage(&HandlerConstructionError{ResourceID: "r1", Spec: "npy", Path: "/x.npy", Err: io.ErrUnexpectedEOF}, "get handler")
	assert.True(t, errors.Is(err, ErrHandlerConstruction))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Contains(t, err.Error(), "r1")

	err = &DecodeError{DatumID: "d1", ResourceID: "r1", Spec: "npy", Err: errors.New("index out of range")}
	assert.True(t, errors.Is(err, ErrDecode))
	assert.False(t, errors.Is(err, ErrHandlerConstruction))
	assert.Contains(t, err.Error(), "d1")
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.Wrap(ErrStoreUnavailable, "get datum")))
	assert.False(t, IsTransient(errors.Wrap(ErrNotFound, "get datum")))
	assert.False(t, IsTransient(nil))
}
