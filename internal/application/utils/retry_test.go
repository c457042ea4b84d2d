package utils

import (
	"context"
	"testing"
	"time"

	"filestore/internal/domain/ports"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func fastRetry() RetryConfig {
	return RetryConfig{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, MaxElapsed: time.Second}
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.True(t, IsRetryableError(errors.Wrap(ports.ErrStoreUnavailable, "pg down")))
	assert.True(t, IsRetryableError(status.Error(codes.Unavailable, "store unavailable")))
	assert.False(t, IsRetryableError(status.Error(codes.InvalidArgument, "decode")))
	assert.False(t, IsRetryableError(&ports.DecodeError{Err: errors.New("bad index")}))
	assert.False(t, IsRetryableError(errors.Wrap(ports.ErrNotFound, "datum")))
}

func TestExecuteWithRetry(t *testing.T) {
	calls := 0
	err := ExecuteWithRetry(context.Background(), fastRetry(), func() error {
		calls++
		if calls < 3 {
			return ports.ErrStoreUnavailable
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = ExecuteWithRetry(context.Background(), fastRetry(), func() error {
		calls++
		return ports.ErrNotFound
	})
	assert.True(t, errors.Is(err, ports.ErrNotFound))
	assert.Equal(t, 1, calls)
}
