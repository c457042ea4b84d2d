package ports

import (
	"context"

	"filestore/internal/domain/models"
	"filestore/internal/patterns"
)

type (
	// Scope defines the scope of list operations
	Scope interface {
		IsEmpty() bool
		String() string
	}

	// Reader defines read operations over resource, datum and relocation documents
	Reader interface {
		// GetResourceByID returns ErrNotFound when the resource does not exist
		GetResourceByID(ctx context.Context, id string) (*models.Resource, error)
		// GetDatumByID returns ErrNotFound when the datum does not exist
		GetDatumByID(ctx context.Context, id string) (*models.Datum, error)
		// ListDatums lists datums, optionally restricted to a ResourceScope
		ListDatums(ctx context.Context, consume func(models.Datum) error, scope Scope) error
		// ListRelocations lists relocations ordered by time, optionally restricted to a ResourceScope
		ListRelocations(ctx context.Context, consume func(models.Relocation) error, scope Scope) error
		Close() error
	}

	// Writer defines append-only write operations. Documents are never updated or deleted.
	Writer interface {
		InsertResources(ctx context.Context, resources []models.Resource) error
		InsertDatums(ctx context.Context, datums []models.Datum) error
		InsertRelocations(ctx context.Context, relocations []models.Relocation) error

		Commit() error
		Abort()
	}

	// Registry defines the resource store
	Registry interface {
		// Subject publishes a CommitEvent after every successful commit
		Subject() patterns.Subject
		Writer(ctx context.Context) (Writer, error)
		Reader(ctx context.Context) (Reader, error)
		Close() error
	}

	// HealthChecker is implemented by stores that can report reachability.
	// Ping returns an ErrStoreUnavailable-wrapped error when the store is down.
	HealthChecker interface {
		Ping(ctx context.Context) error
	}
)

// CommitEvent describes documents made visible by one commit
type CommitEvent struct {
	Resources   []models.Resource
	Datums      int
	Relocations []models.Relocation
}
