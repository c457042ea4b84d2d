package cache

import (
	"filestore/internal/domain/ports"

	lru "github.com/hashicorp/golang-lru/v2"
)

type key struct {
	resourceID string
	spec       string
}

func (k key) String() string {
	return k.resourceID + "\x00" + k.spec
}

type entry struct {
	key         key
	logicalRoot string
	actualRoot  string
	handler     ports.Handler
}

// entries holds live handlers. remove and purge close what they drop.
type entries interface {
	get(k key) (*entry, bool)
	peek(k key) (*entry, bool)
	add(e *entry)
	remove(k key) bool
	snapshot() []*entry
	purge()
	len() int
}

type mapEntries struct {
	m       map[key]*entry
	onClose func(*entry)
}

func newMapEntries(onClose func(*entry)) *mapEntries {
	return &mapEntries{m: make(map[key]*entry), onClose: onClose}
}

func (s *mapEntries) get(k key) (*entry, bool) {
	e, ok := s.m[k]
	return e, ok
}

func (s *mapEntries) peek(k key) (*entry, bool) {
	return s.get(k)
}

func (s *mapEntries) add(e *entry) {
	if old, ok := s.m[e.key]; ok && old != e {
		s.onClose(old)
	}
	s.m[e.key] = e
}

func (s *mapEntries) remove(k key) bool {
	e, ok := s.m[k]
	if ok {
		delete(s.m, k)
		s.onClose(e)
	}
	return ok
}

func (s *mapEntries) snapshot() []*entry {
	ret := make([]*entry, 0, len(s.m))
	for _, e := range s.m {
		ret = append(ret, e)
	}
	return ret
}

func (s *mapEntries) purge() {
	for k, e := range s.m {
		delete(s.m, k)
		s.onClose(e)
	}
}

func (s *mapEntries) len() int {
	return len(s.m)
}

type lruEntries struct {
	c *lru.Cache[key, *entry]
}

func newLRUEntries(size int, onClose func(*entry)) (*lruEntries, error) {
	c, err := lru.NewWithEvict[key, *entry](size, func(_ key, e *entry) {
		onClose(e)
	})
	if err != nil {
		return nil, err
	}
	return &lruEntries{c: c}, nil
}

func (s *lruEntries) get(k key) (*entry, bool) {
	return s.c.Get(k)
}

func (s *lruEntries) peek(k key) (*entry, bool) {
	return s.c.Peek(k)
}

func (s *lruEntries) add(e *entry) {
	if old, ok := s.c.Peek(e.key); ok && old != e {
		s.c.Remove(e.key)
	}
	s.c.Add(e.key, e)
}

func (s *lruEntries) remove(k key) bool {
	return s.c.Remove(k)
}

func (s *lruEntries) snapshot() []*entry {
	return s.c.Values()
}

func (s *lruEntries) purge() {
	s.c.Purge()
}

func (s *lruEntries) len() int {
	return s.c.Len()
}
