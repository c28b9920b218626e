package fake

import (
	"context"
	"sync"

	"github.com/wehubfusion/Daedalus/pkg/control"
	"github.com/wehubfusion/Daedalus/pkg/search"
)

// Element is a control on the fake screen
type Element struct {
	Name   string
	Parent string
	Box    control.Rect
	Attrs  map[string]string

	// AvailableAfter is the number of lookups that miss before the element appears
	AvailableAfter int
}

func (e *Element) Bounds() control.Rect { return e.Box }

// Provider is an in-memory LookupProvider over a tree of named elements
type Provider struct {
	mu       sync.Mutex
	elements []*Element
	calls    map[string]int
	queries  []control.Query
}

// NewProvider creates a provider holding elements
func NewProvider(elements ...*Element) *Provider {
	return &Provider{elements: elements, calls: make(map[string]int)}
}

// Add places an element on the screen
func (p *Provider) Add(e *Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements = append(p.elements, e)
}

// Calls returns how many lookups were made for name
func (p *Provider) Calls(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}

// Queries returns every query received, in order
func (p *Provider) Queries() []control.Query {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]control.Query(nil), p.queries...)
}

func (p *Provider) Find(ctx context.Context, q control.Query) (control.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	key := q.Identity.Name
	p.calls[key]++
	p.queries = append(p.queries, q)

	var matches []*Element
	for _, e := range p.elements {
		if p.matches(e, q) {
			matches = append(matches, e)
		}
	}
	if q.Identity.Index >= len(matches) {
		return nil, control.ErrNotFound
	}
	found := matches[q.Identity.Index]
	if p.calls[key] <= found.AvailableAfter {
		return nil, control.ErrNotFound
	}
	return found, nil
}

func (p *Provider) matches(e *Element, q control.Query) bool {
	id := q.Identity
	if id.Name != "" && e.Name != id.Name {
		return false
	}
	for _, a := range id.Attributes {
		if e.Attrs[a.Name] != a.Value {
			return false
		}
	}
	anchor, ok := q.Anchor.(*Element)
	if q.Anchor == nil || !ok {
		return true
	}

	if q.Scope.Has(search.Children) && e.Parent == anchor.Name {
		return true
	}
	if q.Scope.Has(search.Descendants) && p.isAncestor(anchor.Name, e) {
		return true
	}
	if q.Scope.Has(search.Sibling) && e != anchor && e.Parent == anchor.Parent {
		return true
	}
	if q.Scope.Has(search.Ancestor) && p.isAncestor(e.Name, anchor) {
		return true
	}
	return false
}

func (p *Provider) isAncestor(name string, e *Element) bool {
	for parent := e.Parent; parent != ""; {
		if parent == name {
			return true
		}
		next := ""
		for _, candidate := range p.elements {
			if candidate.Name == parent {
				next = candidate.Parent
				break
			}
		}
		parent = next
	}
	return false
}
