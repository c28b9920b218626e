// Package search defines the traversal bounds shared by tree queries and
// relative control lookups.
package search

import (
	"fmt"
	"strings"
)

// Scope is a bitmask over the directions a lookup may travel from its origin.
type Scope uint8

const (
	// Children limits a lookup to direct children of the origin.
	Children Scope = 1 << iota
	// Descendants covers the full subtree below the origin.
	Descendants
	// Sibling covers peers sharing the origin's owner.
	Sibling
	// Ancestor walks owners from the origin up to the root.
	Ancestor
)

// None is the empty scope.
const None Scope = 0

// All combines every direction.
const All = Children | Descendants | Sibling | Ancestor

var scopeNames = []struct {
	flag Scope
	name string
}{
	{Children, "children"},
	{Descendants, "descendants"},
	{Sibling, "sibling"},
	{Ancestor, "ancestor"},
}

// Has reports whether every bit of flag is set in s.
func (s Scope) Has(flag Scope) bool {
	return flag != 0 && s&flag == flag
}

// IsEmpty reports whether no direction is set.
func (s Scope) IsEmpty() bool {
	return s == None
}

// String renders the scope as a pipe separated list, e.g. "children|sibling".
func (s Scope) String() string {
	if s == None {
		return "none"
	}
	parts := make([]string, 0, len(scopeNames))
	for _, n := range scopeNames {
		if s.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Parse converts a pipe or comma separated list of direction names into a Scope.
func Parse(value string) (Scope, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" || value == "none" {
		return None, nil
	}
	var s Scope
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == '|' || r == ',' }) {
		part = strings.TrimSpace(part)
		found := false
		for _, n := range scopeNames {
			if n.name == part {
				s |= n.flag
				found = true
				break
			}
		}
		if !found {
			return None, fmt.Errorf("unknown search scope %q", part)
		}
	}
	return s, nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Scope) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
