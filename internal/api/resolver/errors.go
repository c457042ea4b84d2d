package resolver

import (
	"context"

	"filestore/internal/application/utils"
	"filestore/internal/application/validation"
	"filestore/internal/domain/ports"

	"github.com/pkg/errors"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const errorDomain = "filestore"

// ToStatus maps domain errors onto gRPC statuses
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var (
		verr *validation.ValidationError
		cerr *ports.HandlerConstructionError
		uerr *ports.UnregisteredSpecError
		msg  = err.Error()
	)
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, msg)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, msg)
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, msg)
	case errors.As(err, &cerr):
		return withInfo(codes.Unavailable, msg, utils.ReasonHandlerConstruction, map[string]string{
			"resource_id": cerr.ResourceID,
			"spec":        cerr.Spec,
			"path":        cerr.Path,
		})
	case errors.As(err, &uerr):
		return withInfo(codes.FailedPrecondition, msg, "UNREGISTERED_SPEC", map[string]string{
			"spec": uerr.Spec,
		})
	case errors.Is(err, ports.ErrNotFound):
		return status.Error(codes.NotFound, msg)
	case errors.Is(err, ports.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, msg)
	case errors.Is(err, ports.ErrDecode):
		return status.Error(codes.InvalidArgument, msg)
	case errors.Is(err, ports.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, msg)
	case errors.Is(err, ports.ErrNotSupported):
		return status.Error(codes.Unimplemented, msg)
	}
	return status.Error(codes.Internal, msg)
}

func withInfo(code codes.Code, msg, reason string, meta map[string]string) error {
	st := status.New(code, msg)
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   reason,
		Domain:   errorDomain,
		Metadata: meta,
	})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// ErrorReason returns the ErrorInfo reason attached to a status error, if any
func ErrorReason(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}
