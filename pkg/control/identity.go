package control

import (
	"fmt"
	"strings"
	"time"

	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/search"
)

// Attribute is a name/value pair identifying a control
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Identity describes how to locate one control. Next is a fallback link
// looked up relative to the control this link resolves to.
type Identity struct {
	Name          string       `json:"name,omitempty"`
	Index         int          `json:"index"`
	ApplicationID string       `json:"application_id,omitempty"`
	Attributes    []Attribute  `json:"attributes,omitempty"`
	Pivot         Pivot        `json:"pivot"`
	OffsetX       int          `json:"offset_x"`
	OffsetY       int          `json:"offset_y"`
	RetryAttempts int          `json:"retry_attempts"`
	RetryInterval int          `json:"retry_interval"` // milliseconds
	Scope         search.Scope `json:"scope"`
	Next          *Identity    `json:"next,omitempty"`
}

// NewIdentity creates a single-link identity that searches descendants once
func NewIdentity(name string) *Identity {
	return &Identity{
		Name:          name,
		Pivot:         PivotCenter,
		RetryAttempts: 1,
		Scope:         search.Descendants,
	}
}

// WithAttribute appends an attribute and returns the identity
func (id *Identity) WithAttribute(name, value string) *Identity {
	id.Attributes = append(id.Attributes, Attribute{Name: name, Value: value})
	return id
}

// WithRetry sets the number of tries and the pause between them
func (id *Identity) WithRetry(attempts int, interval time.Duration) *Identity {
	id.RetryAttempts = attempts
	id.RetryInterval = int(interval / time.Millisecond)
	return id
}

// Then appends next to the end of the chain and returns the head
func (id *Identity) Then(next *Identity) *Identity {
	id.Last().Next = next
	return id
}

// Attribute returns the value of a named attribute
func (id *Identity) Attribute(name string) (string, bool) {
	for _, a := range id.Attributes {
		if strings.EqualFold(a.Name, name) {
			return a.Value, true
		}
	}
	return "", false
}

// RetryDelay returns the pause between consecutive tries
func (id *Identity) RetryDelay() time.Duration {
	return time.Duration(id.RetryInterval) * time.Millisecond
}

// Tries returns how many lookups a link makes; at least one.
func (id *Identity) Tries() int {
	if id.RetryAttempts < 1 {
		return 1
	}
	return id.RetryAttempts
}

// Links returns the chain as a slice starting at id
func (id *Identity) Links() []*Identity {
	var links []*Identity
	for l := id; l != nil; l = l.Next {
		links = append(links, l)
	}
	return links
}

// Len returns the number of links in the chain
func (id *Identity) Len() int {
	n := 0
	for l := id; l != nil; l = l.Next {
		n++
	}
	return n
}

// Last returns the final link
func (id *Identity) Last() *Identity {
	l := id
	for l.Next != nil {
		l = l.Next
	}
	return l
}

// Clone deep-copies the whole chain
func (id *Identity) Clone() *Identity {
	if id == nil {
		return nil
	}
	c := *id
	if id.Attributes != nil {
		c.Attributes = append([]Attribute(nil), id.Attributes...)
	}
	c.Next = id.Next.Clone()
	return &c
}

// Validate checks every link of the chain
func (id *Identity) Validate() error {
	seen := make(map[*Identity]bool)
	pos := 0
	for l := id; l != nil; l = l.Next {
		pos++
		if seen[l] {
			return derrors.NewConfigurationError(fmt.Sprintf("control identity chain loops back at link %d", pos), nil)
		}
		seen[l] = true

		switch {
		case l.Name == "" && len(l.Attributes) == 0:
			return derrors.NewConfigurationError(fmt.Sprintf("control identity link %d has neither name nor attributes", pos), nil)
		case l.Index < 0:
			return derrors.NewConfigurationError(fmt.Sprintf("control identity link %d has negative index %d", pos, l.Index), nil)
		case l.RetryAttempts < 0:
			return derrors.NewConfigurationError(fmt.Sprintf("control identity link %d has negative retry attempts", pos), nil)
		case l.RetryInterval < 0:
			return derrors.NewConfigurationError(fmt.Sprintf("control identity link %d has negative retry interval", pos), nil)
		}
		if _, ok := pivotNames[l.Pivot]; !ok {
			return derrors.NewConfigurationError(fmt.Sprintf("control identity link %d has unknown pivot", pos), nil)
		}
	}
	return nil
}

// String renders the chain as "name[index] > name[index]"
func (id *Identity) String() string {
	parts := make([]string, 0, id.Len())
	for l := id; l != nil; l = l.Next {
		name := l.Name
		if name == "" && len(l.Attributes) > 0 {
			name = l.Attributes[0].Name + "=" + l.Attributes[0].Value
		}
		parts = append(parts, fmt.Sprintf("%s[%d]", name, l.Index))
	}
	return strings.Join(parts, " > ")
}
