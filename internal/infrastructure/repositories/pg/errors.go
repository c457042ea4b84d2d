package pg

import (
	"context"
	"io"
	"net"
	"syscall"

	"filestore/internal/domain/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// classify maps driver errors onto the store's sentinel errors. Only connection
// and network failures become ErrStoreUnavailable; cancellation and scan or
// query errors keep their own identity.
func classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrap(ports.ErrNotFound, msg)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return errors.Wrapf(ports.ErrAlreadyExists, "%s: %s", msg, pgErr.Detail)
		case pgForeignKeyViolation:
			return errors.Wrapf(ports.ErrNotFound, "%s: %s", msg, pgErr.Detail)
		}
		return errors.WithMessage(err, msg)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.WithMessage(err, msg)
	}
	if isConnectionFailure(err) {
		return errors.Wrapf(ports.ErrStoreUnavailable, "%s: %v", msg, err)
	}
	return errors.WithMessage(err, msg)
}

func isConnectionFailure(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	for _, target := range []error{errNoPool, io.EOF, io.ErrUnexpectedEOF, syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
