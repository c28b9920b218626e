package entity

import (
	"fmt"
	"strings"

	"github.com/wehubfusion/Daedalus/pkg/search"
)

// Walk visits c and its descendants in depth-first pre-order. Returning
// false from fn skips the children of the visited component.
func Walk(c Component, fn func(Component) bool) {
	if c == nil {
		return
	}
	if !fn(c) {
		return
	}
	if e, ok := AsEntity(c); ok {
		for _, child := range e.Children() {
			Walk(child, fn)
		}
	}
}

// Descendants returns the full subtree below e in pre-order, excluding e.
func Descendants(e *Entity) []Component {
	var out []Component
	for _, child := range e.children {
		Walk(child, func(n Component) bool {
			out = append(out, n)
			return true
		})
	}
	return out
}

// Ancestors returns the owners of c from the nearest up to the root.
func Ancestors(c Component) []Component {
	var out []Component
	for o := c.Owner(); o != nil; o = o.Owner() {
		out = append(out, o.Self())
	}
	return out
}

// Siblings returns the peers of c sharing its owner, in owner order.
func Siblings(c Component) []Component {
	owner := c.Owner()
	if owner == nil {
		return nil
	}
	out := make([]Component, 0, len(owner.children))
	for _, child := range owner.children {
		if !sameComponent(child, c) {
			out = append(out, child)
		}
	}
	return out
}

// Root returns the topmost ancestor of c, or c itself.
func Root(c Component) Component {
	root := Self(c)
	for o := c.Owner(); o != nil; o = o.Owner() {
		root = o.Self()
	}
	return root
}

// Find collects components around c within scope that satisfy match.
// Ancestors come first (nearest first), then siblings, then the subtree in
// pre-order. A scope with both Children and Descendants walks the subtree once.
func Find(c Component, scope search.Scope, match func(Component) bool) []Component {
	var out []Component
	add := func(n Component) {
		if match == nil || match(n) {
			out = append(out, n)
		}
	}

	if scope.Has(search.Ancestor) {
		for _, a := range Ancestors(c) {
			add(a)
		}
	}
	if scope.Has(search.Sibling) {
		for _, s := range Siblings(c) {
			add(s)
		}
	}
	if e, ok := AsEntity(c); ok {
		switch {
		case scope.Has(search.Descendants):
			for _, d := range Descendants(e) {
				add(d)
			}
		case scope.Has(search.Children):
			for _, child := range e.children {
				add(child)
			}
		}
	}
	return out
}

// GetComponentsByName returns every component named name within scope.
// An empty result is not an error.
func (e *Entity) GetComponentsByName(name string, scope search.Scope) []Component {
	return Find(e.Self(), scope, func(c Component) bool { return c.Name() == name })
}

// GetComponentByName returns the first component named name within scope.
func (e *Entity) GetComponentByName(name string, scope search.Scope) (Component, error) {
	found := e.GetComponentsByName(name, scope)
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: no component named %q within %s of %s", ErrNotFound, name, scope, describe(e.Self()))
	}
	return found[0], nil
}

// GetComponentByID returns the component with the given ID within scope.
func (e *Entity) GetComponentByID(id string, scope search.Scope) (Component, error) {
	found := Find(e.Self(), scope, func(c Component) bool { return c.ID() == id })
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: no component with id %q within %s of %s", ErrNotFound, id, scope, describe(e.Self()))
	}
	return found[0], nil
}

// FindAll returns every component within scope of c that implements T.
// It never fails; zero matches yield an empty slice.
func FindAll[T any](c Component, scope search.Scope) []T {
	out := []T{}
	for _, n := range Find(c, scope, nil) {
		if t, ok := n.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// FindFirst returns the first component within scope of c that implements T.
func FindFirst[T any](c Component, scope search.Scope) (T, error) {
	for _, n := range Find(c, scope, nil) {
		if t, ok := n.(T); ok {
			return t, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: no %T within %s of %s", ErrNotFound, zero, scope, describe(c))
}

// GetAncestor returns the nearest owner of c that implements T.
func GetAncestor[T any](c Component) (T, error) {
	for o := c.Owner(); o != nil; o = o.Owner() {
		if t, ok := o.Self().(T); ok {
			return t, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: no ancestor of type %T above %s", ErrNotFound, zero, describe(c))
}

// GetAncestorOrSelf is GetAncestor that also considers c itself.
func GetAncestorOrSelf[T any](c Component) (T, error) {
	if t, ok := Self(c).(T); ok {
		return t, nil
	}
	return GetAncestor[T](c)
}

// IsDescendantOf reports whether c sits somewhere below ancestor.
func IsDescendantOf(c Component, ancestor Component) bool {
	target, ok := AsEntity(ancestor)
	if !ok {
		return false
	}
	for o := c.Owner(); o != nil; o = o.Owner() {
		if o == target {
			return true
		}
	}
	return false
}

// InheritedTag returns the tag of the nearest entity, starting at c, that
// carries a non-empty tag.
func InheritedTag(c Component) string {
	if e, ok := AsEntity(c); ok && e.tag != "" {
		return e.tag
	}
	for o := c.Owner(); o != nil; o = o.Owner() {
		if o.tag != "" {
			return o.tag
		}
	}
	return ""
}

// PathOf renders the names from the root down to c, separated by '/'.
func PathOf(c Component) string {
	names := []string{c.Name()}
	for o := c.Owner(); o != nil; o = o.Owner() {
		names = append(names, o.Name())
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "/")
}

// ResolveAll calls ResolveDependencies on c and every descendant, including
// children created along the way.
func ResolveAll(c Component) {
	Walk(c, func(n Component) bool {
		if dr, ok := Self(n).(DependencyResolver); ok {
			dr.ResolveDependencies()
		}
		return true
	})
}

// GetComponentsOfType returns every component within scope of c that
// implements T. An empty result is not an error.
func GetComponentsOfType[T any](c Component, scope search.Scope) []T {
	return FindAll[T](c, scope)
}
