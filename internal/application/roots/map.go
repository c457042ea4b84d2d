package roots

import (
	"sync"

	"filestore/internal/domain/models"
)

// Map substitutes logical roots with actual ones. Resource overrides take precedence.
type Map struct {
	mu        sync.RWMutex
	roots     map[string]string
	resources map[string]string
}

// NewMap creates an empty root map
func NewMap() *Map {
	return &Map{
		roots:     make(map[string]string),
		resources: make(map[string]string),
	}
}

// AddRoot maps logical to actual; a later call for the same logical root replaces it
func (m *Map) AddRoot(logical, actual string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roots[logical] = actual
}

// Resolve returns the actual root, or logical itself when unmapped
func (m *Map) Resolve(logical string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if actual, ok := m.roots[logical]; ok {
		return actual
	}
	return logical
}

// SetResourceRoot pins the root of one resource
func (m *Map) SetResourceRoot(resourceID, root string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[resourceID] = root
}

// ResolveResource returns the root to open res from
func (m *Map) ResolveResource(res models.Resource) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if root, ok := m.resources[res.ID]; ok {
		return root
	}
	if actual, ok := m.roots[res.Root]; ok {
		return actual
	}
	return res.Root
}

// Roots returns a copy of the logical root substitutions
func (m *Map) Roots() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ret := make(map[string]string, len(m.roots))
	for k, v := range m.roots {
		ret[k] = v
	}
	return ret
}
