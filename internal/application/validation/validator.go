package validation

import (
	"strings"

	"filestore/internal/domain/models"
)

// Validator defines a common interface for document checks
type Validator interface {
	Validate() error
}

// ResourceValidator checks a resource before insertion
type ResourceValidator struct {
	Resource models.Resource
}

// Validate impl Validator
func (v ResourceValidator) Validate() error {
	r := v.Resource
	if strings.TrimSpace(r.Spec) == "" {
		return NewValidationError("spec", "must not be empty")
	}
	if r.ID != "" && strings.TrimSpace(r.ID) != r.ID {
		return NewValidationError("resource_id", "must not have surrounding spaces")
	}
	if r.PathSemantics != "" && !r.PathSemantics.IsValid() {
		return NewValidationError("path_semantics", "must be posix or windows, got "+string(r.PathSemantics))
	}
	return nil
}

// DatumValidator checks a datum before insertion. The referenced resource is
// not required to exist yet; the resolver enforces that at read time.
type DatumValidator struct {
	Datum models.Datum
}

// Validate impl Validator
func (v DatumValidator) Validate() error {
	d := v.Datum
	if strings.TrimSpace(d.ResourceID) == "" {
		return NewValidationError("resource_id", "must not be empty")
	}
	if d.ID != "" && strings.TrimSpace(d.ID) != d.ID {
		return NewValidationError("datum_id", "must not have surrounding spaces")
	}
	return nil
}
