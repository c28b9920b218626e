package entity

import (
	"errors"
	"fmt"

	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

// ErrNotFound is returned by queries that find no matching component.
var ErrNotFound = errors.New("component not found")

// Entity is a container node that exclusively owns an ordered sequence of
// child components. Children may themselves be entities.
type Entity struct {
	Base
	tag      string
	children []Component
}

// Container is implemented by every component that embeds *Entity.
type Container interface {
	Component
	AsEntity() *Entity
}

// New creates a plain container entity.
func New(name string) *Entity {
	return NewEntity(nil, KindEntity, name)
}

// NewEntity creates the container part of a composite component. self is the
// outer component embedding the returned *Entity; nil means the entity stands
// on its own.
func NewEntity(self Component, kind, name string) *Entity {
	e := &Entity{}
	if self == nil {
		self = e
	}
	e.Base = NewBase(self, kind, name)
	return e
}

// AsEntity returns the container part of the component.
func (e *Entity) AsEntity() *Entity {
	return e
}

// AsEntity returns the container part of c, if c is a container.
func AsEntity(c Component) (*Entity, bool) {
	if c == nil {
		return nil, false
	}
	if ct, ok := c.(Container); ok {
		return ct.AsEntity(), true
	}
	return nil, false
}

// Tag returns the scoping key of the entity.
func (e *Entity) Tag() string {
	return e.tag
}

// SetTag changes the scoping key.
func (e *Entity) SetTag(tag string) {
	e.tag = tag
}

// Children returns a copy of the ordered child sequence.
func (e *Entity) Children() []Component {
	out := make([]Component, len(e.children))
	copy(out, e.children)
	return out
}

// ChildCount returns the number of direct children.
func (e *Entity) ChildCount() int {
	return len(e.children)
}

// IndexOf returns the position of c among the direct children, or -1.
func (e *Entity) IndexOf(c Component) int {
	for i, child := range e.children {
		if sameComponent(child, c) {
			return i
		}
	}
	return -1
}

// AddComponent appends c to the child sequence and makes e its owner.
func (e *Entity) AddComponent(c Component) error {
	return e.InsertComponent(len(e.children), c)
}

// InsertComponent inserts c at index and makes e its owner. A component that
// already has an owner, or an entity that would become its own descendant,
// is rejected.
func (e *Entity) InsertComponent(index int, c Component) error {
	if c == nil {
		return derrors.NewConfigurationError("cannot add a nil component to "+describe(e), nil)
	}
	b := c.base()
	if b.owner != nil {
		return derrors.NewConfigurationError(
			fmt.Sprintf("component %s is already owned by %s", describe(c), describe(b.owner)), nil)
	}
	if ce, ok := AsEntity(c); ok {
		for a := e; a != nil; a = a.owner {
			if a == ce {
				return derrors.NewConfigurationError(
					fmt.Sprintf("adding %s under %s would create a cycle", describe(c), describe(e)), nil)
			}
		}
	}
	if index < 0 || index > len(e.children) {
		return fmt.Errorf("insert index %d out of range [0,%d]", index, len(e.children))
	}

	b.owner = e
	e.children = append(e.children, nil)
	copy(e.children[index+1:], e.children[index:])
	e.children[index] = c
	return nil
}

// RemoveComponent detaches c from the child sequence. The removed subtree is
// disposed and is no longer reachable from e.
func (e *Entity) RemoveComponent(c Component) error {
	idx := e.IndexOf(c)
	if idx < 0 {
		return fmt.Errorf("%w: %s is not a child of %s", ErrNotFound, describe(c), describe(e))
	}

	removed := e.children[idx]
	e.children = append(e.children[:idx], e.children[idx+1:]...)
	removed.base().owner = nil

	Walk(removed, func(n Component) bool {
		if d, ok := Self(n).(Disposable); ok {
			d.Dispose()
		}
		return true
	})
	return nil
}

// MoveComponent moves a direct child to a new position.
func (e *Entity) MoveComponent(c Component, index int) error {
	idx := e.IndexOf(c)
	if idx < 0 {
		return fmt.Errorf("%w: %s is not a child of %s", ErrNotFound, describe(c), describe(e))
	}
	if index < 0 || index >= len(e.children) {
		return fmt.Errorf("move index %d out of range [0,%d)", index, len(e.children))
	}
	child := e.children[idx]
	e.children = append(e.children[:idx], e.children[idx+1:]...)
	e.children = append(e.children, nil)
	copy(e.children[index+1:], e.children[index:])
	e.children[index] = child
	return nil
}

// EnsureChild returns the direct child named name, creating it with create
// when absent. It is the building block for idempotent ResolveDependencies.
func (e *Entity) EnsureChild(name string, create func() Component) (Component, error) {
	for _, child := range e.children {
		if child.Name() == name {
			return child, nil
		}
	}
	c := create()
	if err := e.AddComponent(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ResetHierarchy resets the entity and its entire subtree.
func (e *Entity) ResetHierarchy() {
	ResetHierarchy(e.Self())
}

// ResetHierarchy restores c and, for containers, every descendant to its
// pre-execution state.
func ResetHierarchy(c Component) {
	Walk(c, func(n Component) bool {
		Self(n).Reset()
		return true
	})
}

func sameComponent(a, b Component) bool {
	if a == nil || b == nil {
		return false
	}
	return a.base() == b.base()
}

func describe(c Component) string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %q (%s)", c.Kind(), c.Name(), c.ID())
}
