package mongo

import (
	"filestore/internal/domain/ports"

	"github.com/juju/mgo/v3"
	"github.com/pkg/errors"
)

func classify(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mgo.ErrNotFound):
		return errors.Wrap(ports.ErrNotFound, msg)
	case mgo.IsDup(err):
		return errors.Wrapf(ports.ErrAlreadyExists, "%s: %v", msg, err)
	}
	var qe *mgo.QueryError
	if errors.As(err, &qe) {
		return errors.WithMessage(err, msg)
	}
	return errors.Wrapf(ports.ErrStoreUnavailable, "%s: %v", msg, err)
}
