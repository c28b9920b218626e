package scriptpath

import (
	"sort"
	"sync"

	"github.com/wehubfusion/Daedalus/pkg/argument"
	"github.com/wehubfusion/Daedalus/pkg/entity"
)

// Property is a script-valued property of a component kind. Path returns the
// field holding the script file, or nil when the property does not currently
// take its value from a script.
type Property struct {
	Name string
	Path func(c entity.Component) *string
}

// ArgumentProperty describes an argument that holds a script file while it
// is in scripted mode.
func ArgumentProperty(name string, get func(c entity.Component) *argument.Argument) Property {
	return Property{
		Name: name,
		Path: func(c entity.Component) *string {
			arg := get(c)
			if !arg.IsScripted() {
				return nil
			}
			return &arg.ScriptFile
		},
	}
}

// FileProperty describes a plain script-file field.
func FileProperty(name string, get func(c entity.Component) *string) Property {
	return Property{Name: name, Path: get}
}

// Registry maps component kinds to their script-valued properties.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string][]Property
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string][]Property)}
}

// Register declares the script-valued properties of kind. Registering a kind
// again appends to its properties.
func (r *Registry) Register(kind string, props ...Property) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[kind] = append(r.kinds[kind], props...)
}

// Properties returns the script-valued properties of kind.
func (r *Registry) Properties(kind string) []Property {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Property(nil), r.kinds[kind]...)
}

// IsScriptCapable reports whether c's kind has script-valued properties.
func (r *Registry) IsScriptCapable(c entity.Component) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.kinds[c.Kind()]) > 0
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry used by Register.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register declares script-valued properties on the default registry.
func Register(kind string, props ...Property) {
	defaultRegistry.Register(kind, props...)
}
