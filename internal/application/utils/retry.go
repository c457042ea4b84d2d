package utils

import (
	"context"
	"time"

	"filestore/internal/domain/ports"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RetryConfig defines retry parameters
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxElapsed   time.Duration
}

// DefaultRetryConfig returns the standard retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		MaxElapsed:   30 * time.Second,
	}
}

// IsRetryableError reports whether err is a transient store or transport failure.
// Decode and construction failures are never retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if ports.IsTransient(err) {
		return true
	}
	if st, ok := status.FromError(errors.Cause(err)); ok {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted:
			return !isConstructionStatus(st)
		}
	}
	return false
}

// construction failures travel as Unavailable too, tagged by the server
func isConstructionStatus(st *status.Status) bool {
	for _, d := range st.Details() {
		if info, ok := d.(interface{ GetReason() string }); ok && info.GetReason() == ReasonHandlerConstruction {
			return true
		}
	}
	return false
}

// ReasonHandlerConstruction marks Unavailable statuses caused by handler construction
const ReasonHandlerConstruction = "HANDLER_CONSTRUCTION"

// ExecuteWithRetry runs fn with exponential backoff while it fails with retryable errors
func ExecuteWithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.InitialDelay
	b.MaxInterval = config.MaxDelay
	b.MaxElapsedTime = config.MaxElapsed

	op := func() error {
		err := fn()
		if err != nil && !IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}
