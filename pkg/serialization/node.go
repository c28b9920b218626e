package serialization

import (
	"encoding/json"
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/entity"
	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

// Node is the persisted form of one component.
type Node struct {
	Kind       string         `json:"kind" yaml:"kind" toml:"kind"`
	ID         string         `json:"id" yaml:"id" toml:"id"`
	Name       string         `json:"name" yaml:"name" toml:"name"`
	Tag        string         `json:"tag,omitempty" yaml:"tag,omitempty" toml:"tag,omitempty"`
	Enabled    bool           `json:"enabled" yaml:"enabled" toml:"enabled"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty" toml:"properties,omitempty"`
	Children   []*Node        `json:"children,omitempty" yaml:"children,omitempty" toml:"children,omitempty"`
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *Node) Count() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// Encode converts the tree rooted at c into nodes. A component's properties
// are its exported, JSON-tagged fields.
func (r *Registry) Encode(c entity.Component) (*Node, error) {
	if c == nil {
		return nil, derrors.NewConfigurationError("cannot encode a nil component", nil)
	}
	if !r.HasKind(c.Kind()) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, c.Kind())
	}

	props, err := encodeProperties(entity.Self(c))
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s %q: %w", c.Kind(), c.Name(), err)
	}

	n := &Node{
		Kind:       c.Kind(),
		ID:         c.ID(),
		Name:       c.Name(),
		Enabled:    c.IsEnabled(),
		Properties: props,
	}
	if e, ok := entity.AsEntity(c); ok {
		n.Tag = e.Tag()
		for _, child := range e.Children() {
			cn, err := r.Encode(child)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, cn)
		}
	}
	return n, nil
}

// Decode rebuilds the tree described by n, restoring IDs, and then resolves
// structural dependencies across the whole tree.
func (r *Registry) Decode(n *Node) (entity.Component, error) {
	seen := make(map[string]string)
	root, err := r.decode(n, seen)
	if err != nil {
		return nil, err
	}
	entity.ResolveAll(root)
	return root, nil
}

func (r *Registry) decode(n *Node, seen map[string]string) (entity.Component, error) {
	if n == nil {
		return nil, derrors.NewConfigurationError("workflow contains an empty node", nil)
	}
	if n.ID != "" {
		if prev, dup := seen[n.ID]; dup {
			return nil, derrors.NewConfigurationError(
				fmt.Sprintf("duplicate component id %s on %q and %q", n.ID, prev, n.Name), nil)
		}
		seen[n.ID] = n.Name
	}

	c, err := r.Create(n.Kind, n.Name)
	if err != nil {
		return nil, err
	}
	entity.SetID(c, n.ID)
	c.SetEnabled(n.Enabled)
	if err := decodeProperties(n.Properties, c); err != nil {
		return nil, fmt.Errorf("failed to decode %s %q: %w", n.Kind, n.Name, err)
	}

	e, isEntity := entity.AsEntity(c)
	if isEntity {
		e.SetTag(n.Tag)
	}
	if len(n.Children) == 0 {
		return c, nil
	}
	if !isEntity {
		return nil, derrors.NewConfigurationError(
			fmt.Sprintf("%s %q cannot hold children", n.Kind, n.Name), nil)
	}
	for _, cn := range n.Children {
		child, err := r.decode(cn, seen)
		if err != nil {
			return nil, err
		}
		if err := e.AddComponent(child); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func encodeProperties(c entity.Component) (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var props map[string]any
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, err
	}
	if len(props) == 0 {
		return nil, nil
	}
	return props, nil
}

func decodeProperties(props map[string]any, c entity.Component) error {
	if len(props) == 0 {
		return nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, entity.Self(c))
}
