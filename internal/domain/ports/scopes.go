package ports

import (
	"fmt"
	"strings"
)

// EmptyScope represents an empty scope
type EmptyScope struct{}

// IsEmpty returns true for EmptyScope
func (EmptyScope) IsEmpty() bool {
	return true
}

// String returns a string representation of EmptyScope
func (EmptyScope) String() string {
	return "empty"
}

// ResourceScope restricts datum and relocation listings to the given resources
type ResourceScope struct {
	ResourceIDs []string
}

// IsEmpty returns true if ResourceScope is empty
func (s ResourceScope) IsEmpty() bool {
	return len(s.ResourceIDs) == 0
}

// String returns a string representation of ResourceScope
func (s ResourceScope) String() string {
	if s.IsEmpty() {
		return "empty"
	}
	return fmt.Sprintf("resources(%s)", strings.Join(s.ResourceIDs, ","))
}

// Contains reports whether the resource id is in scope. An empty scope contains everything.
func (s ResourceScope) Contains(resourceID string) bool {
	if s.IsEmpty() {
		return true
	}
	for _, id := range s.ResourceIDs {
		if id == resourceID {
			return true
		}
	}
	return false
}

// NewResourceScope creates a new ResourceScope
func NewResourceScope(resourceIDs ...string) ResourceScope {
	return ResourceScope{
		ResourceIDs: resourceIDs,
	}
}

// ResourceIDsOf extracts resource ids from a scope; nil means unrestricted
func ResourceIDsOf(scope Scope) []string {
	if scope == nil || scope.IsEmpty() {
		return nil
	}
	if rs, ok := scope.(ResourceScope); ok {
		return rs.ResourceIDs
	}
	return nil
}
