package ports

import (
	"errors"
	"fmt"
)

// Standard repository and resolution errors
var (
	// ErrNotFound is returned when the requested entity is not found
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when an insert reuses an existing identifier
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrStoreUnavailable is returned when the resource store cannot be reached.
	// It is transient and safe to retry.
	ErrStoreUnavailable = errors.New("resource store unavailable")

	// ErrUnregisteredSpec is returned when no handler factory is registered for a spec
	ErrUnregisteredSpec = errors.New("unregistered spec")

	// ErrHandlerConstruction is returned when a handler could not be built from its resource
	ErrHandlerConstruction = errors.New("handler construction failed")

	// ErrDecode is returned when datum parameters do not address valid data
	ErrDecode = errors.New("decode failed")

	// ErrNotSupported is returned when a handler lacks an optional capability
	ErrNotSupported = errors.New("not supported")
)

// UnregisteredSpecError records an attempt to resolve a spec with no handler factory
type UnregisteredSpecError struct {
	Spec string
}

func (e *UnregisteredSpecError) Error() string {
	return fmt.Sprintf("no handler registered for spec %q", e.Spec)
}

// Is makes the error match ErrUnregisteredSpec
func (e *UnregisteredSpecError) Is(target error) bool {
	return target == ErrUnregisteredSpec
}

// HandlerConstructionError wraps a factory failure with the resource it was building
type HandlerConstructionError struct {
	ResourceID string
	Spec       string
	Path       string
	Err        error
}

func (e *HandlerConstructionError) Error() string {
	return fmt.Sprintf("construct %q handler for resource %s at %q: %v", e.Spec, e.ResourceID, e.Path, e.Err)
}

func (e *HandlerConstructionError) Unwrap() error {
	return e.Err
}

// Is makes the error match ErrHandlerConstruction
func (e *HandlerConstructionError) Is(target error) bool {
	return target == ErrHandlerConstruction
}

// DecodeError wraps a handler failure to decode one datum
type DecodeError struct {
	DatumID    string
	ResourceID string
	Spec       string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode datum %s of resource %s (spec %q): %v", e.DatumID, e.ResourceID, e.Spec, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is makes the error match ErrDecode
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// IsTransient reports whether the caller may retry the failed operation
func IsTransient(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
