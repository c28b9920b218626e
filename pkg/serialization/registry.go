// Package serialization persists workflow trees. Node kinds are created
// through a Registry so decoding never needs reflection over type names.
package serialization

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/wehubfusion/Daedalus/pkg/entity"
)

// ErrUnknownKind is returned when no creator is registered for a node kind.
var ErrUnknownKind = errors.New("unknown component kind")

// Creator builds an empty component of one kind.
type Creator func(name string) entity.Component

// Registry is a thread-safe map of component kinds to creators.
type Registry struct {
	creators map[string]Creator
	mu       sync.RWMutex
}

// NewRegistry creates a registry that knows plain container entities.
func NewRegistry() *Registry {
	r := &Registry{creators: make(map[string]Creator)}
	r.Register(entity.KindEntity, func(name string) entity.Component { return entity.New(name) })
	return r
}

// Register registers a creator for kind, replacing any previous one.
func (r *Registry) Register(kind string, creator Creator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creators[kind] = creator
}

// Create builds a component of kind.
func (r *Registry) Create(kind, name string) (entity.Component, error) {
	r.mu.RLock()
	creator, exists := r.creators[kind]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	c := creator(name)
	if c == nil {
		return nil, fmt.Errorf("creator for %s returned nil", kind)
	}
	if c.Kind() != kind {
		return nil, fmt.Errorf("creator for %s built a %s", kind, c.Kind())
	}
	return c, nil
}

// HasKind checks if a creator exists for kind.
func (r *Registry) HasKind(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.creators[kind]
	return exists
}

// Kinds returns all registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.creators))
	for k := range r.creators {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Unregister removes the creator for kind.
// Returns true if a creator was removed, false if none existed.
func (r *Registry) Unregister(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.creators[kind]; exists {
		delete(r.creators, kind)
		return true
	}
	return false
}
