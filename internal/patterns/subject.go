package patterns

import (
	"errors"
	"sync"
)

// Observer receives events published by a Subject
type Observer interface {
	Observe(event interface{})
}

// NewObserver wraps fn; every call returns a distinct observer
func NewObserver(fn func(event interface{})) Observer {
	return &funcObserver{fn: fn}
}

type funcObserver struct {
	fn func(event interface{})
}

func (o *funcObserver) Observe(event interface{}) {
	o.fn(event)
}

// Subject represents an observable subject
type Subject interface {
	// Subscribe registers an observer
	Subscribe(observer Observer) error
	// Unsubscribe removes an observer
	Unsubscribe(observer Observer) error
	// Notify notifies all observers synchronously, in subscription order
	Notify(event interface{})
}

// ErrObserverNotFound is returned by Unsubscribe for unknown observers
var ErrObserverNotFound = errors.New("observer not found")

// NewSubject returns a Subject safe for concurrent use
func NewSubject() Subject {
	return &subject{}
}

type subject struct {
	mu        sync.RWMutex
	observers []Observer
}

func (s *subject) Subscribe(observer Observer) error {
	if observer == nil {
		return errors.New("nil observer")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observer)
	return nil
}

func (s *subject) Unsubscribe(observer Observer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.observers {
		if o == observer {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return nil
		}
	}
	return ErrObserverNotFound
}

func (s *subject) Notify(event interface{}) {
	s.mu.RLock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	for _, o := range observers {
		o.Observe(event)
	}
}
