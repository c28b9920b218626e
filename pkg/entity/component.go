// Package entity provides the workflow's structural model: a homogeneous tree
// of components in which entities own ordered child sequences.
package entity

import (
	"github.com/google/uuid"
)

// KindEntity is the kind of a plain container entity.
const KindEntity = "entity"

// Component is the capability shared by every node in the tree.
//
// Concrete node types satisfy it by embedding Base (leaf components) or
// *Entity (containers); the unexported accessor keeps ownership bookkeeping
// inside this package.
type Component interface {
	// ID returns the stable unique identifier of the component.
	ID() string
	// Name returns the display name.
	Name() string
	// SetName changes the display name.
	SetName(name string)
	// Kind returns the registered kind of the component.
	Kind() string
	// IsEnabled reports whether the engine should visit the component.
	IsEnabled() bool
	// SetEnabled toggles the enabled flag.
	SetEnabled(enabled bool)
	// Owner returns the entity that owns this component, or nil for a root.
	Owner() *Entity
	// Validate checks the component before execution.
	Validate() error
	// Reset restores per-run state of this component only.
	Reset()

	base() *Base
}

// DependencyResolver is implemented by components that lazily create their
// mandatory structural children. Implementations must be idempotent.
type DependencyResolver interface {
	ResolveDependencies()
}

// Disposable is implemented by components that release resources when they
// are removed from the tree.
type Disposable interface {
	Dispose()
}

// Base carries the attributes common to all components.
type Base struct {
	id      string
	name    string
	kind    string
	enabled bool
	owner   *Entity
	self    Component
}

// NewBase creates the common attributes for a component. self is the outer
// component that embeds the returned Base; it is what ancestry queries yield.
func NewBase(self Component, kind, name string) Base {
	return Base{
		id:      uuid.NewString(),
		name:    name,
		kind:    kind,
		enabled: true,
		self:    self,
	}
}

// ID returns the component ID.
func (b *Base) ID() string {
	return b.id
}

// Name returns the display name.
func (b *Base) Name() string {
	return b.name
}

// SetName changes the display name.
func (b *Base) SetName(name string) {
	b.name = name
}

// Kind returns the registered component kind.
func (b *Base) Kind() string {
	return b.kind
}

// IsEnabled reports whether the component takes part in execution.
func (b *Base) IsEnabled() bool {
	return b.enabled
}

// SetEnabled toggles the enabled flag.
func (b *Base) SetEnabled(enabled bool) {
	b.enabled = enabled
}

// Owner returns the owning entity. The reference is non-owning and only
// used for upward traversal.
func (b *Base) Owner() *Entity {
	return b.owner
}

// Self returns the outer component embedding this Base.
func (b *Base) Self() Component {
	if b.self != nil {
		return b.self
	}
	return b
}

// Validate is a no-op by default.
func (b *Base) Validate() error {
	return nil
}

// Reset is a no-op by default.
func (b *Base) Reset() {}

func (b *Base) base() *Base {
	return b
}

// SetID overrides the generated ID. Used when restoring a persisted tree.
func SetID(c Component, id string) {
	if id != "" {
		c.base().id = id
	}
}

// Self returns the outer component for c. It is c itself unless c is an
// embedded Base or Entity reached through a promoted method.
func Self(c Component) Component {
	return c.base().Self()
}
