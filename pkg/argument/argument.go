// Package argument models typed value descriptors whose value is resolved at
// execution time from a literal, a script, or a property of the ambient model.
package argument

import (
	"fmt"

	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

// Mode selects the authoritative source of an argument's value.
type Mode string

const (
	// ModeDefault resolves to the literal DefaultValue.
	ModeDefault Mode = "default"
	// ModeScripted resolves by evaluating ScriptFile.
	ModeScripted Mode = "scripted"
	// ModePredicate resolves PropertyPath against the ambient model.
	ModePredicate Mode = "predicate"
)

// Argument is a three-mode value descriptor. Exactly one mode is
// authoritative; the fields of the other modes are kept so an authoring tool
// can switch back, but they are never consulted during resolution.
type Argument struct {
	Mode         Mode   `json:"mode"`
	Type         Type   `json:"type,omitempty"`
	DefaultValue any    `json:"defaultValue,omitempty"`
	ScriptFile   string `json:"scriptFile,omitempty"`
	PropertyPath string `json:"propertyPath,omitempty"`

	// CanChangeType lets an editor alter the declared Type. It has no effect
	// on resolution.
	CanChangeType bool `json:"canChangeType,omitempty"`
}

// Literal creates an argument in default mode.
func Literal(value any) *Argument {
	return &Argument{Mode: ModeDefault, Type: TypeAny, DefaultValue: value}
}

// Script creates an argument in scripted mode.
func Script(scriptFile string) *Argument {
	return &Argument{Mode: ModeScripted, Type: TypeAny, ScriptFile: scriptFile}
}

// Property creates an argument bound to a property path of the ambient model.
func Property(path string) *Argument {
	return &Argument{Mode: ModePredicate, Type: TypeAny, PropertyPath: path}
}

// Typed sets the declared type and returns the argument for chaining.
func (a *Argument) Typed(t Type) *Argument {
	a.Type = t
	return a
}

// SetDefault makes the literal value authoritative.
func (a *Argument) SetDefault(value any) {
	a.Mode = ModeDefault
	a.DefaultValue = value
}

// SetScript makes the script file authoritative.
func (a *Argument) SetScript(scriptFile string) {
	a.Mode = ModeScripted
	a.ScriptFile = scriptFile
}

// SetProperty makes the model property path authoritative.
func (a *Argument) SetProperty(path string) {
	a.Mode = ModePredicate
	a.PropertyPath = path
}

// IsScripted reports whether the argument is evaluated by the script engine.
func (a *Argument) IsScripted() bool {
	return a != nil && a.Mode == ModeScripted
}

// Validate checks that the active mode has a usable source.
func (a *Argument) Validate() error {
	if a == nil {
		return derrors.NewArgumentNotConfiguredError("argument is not set", nil)
	}
	switch a.Mode {
	case ModeDefault:
		return nil
	case ModeScripted:
		if a.ScriptFile == "" {
			return derrors.NewArgumentNotConfiguredError("scripted argument has no script file", nil)
		}
	case ModePredicate:
		if a.PropertyPath == "" {
			return derrors.NewArgumentNotConfiguredError("data-bound argument has no property path", nil)
		}
	default:
		return derrors.NewArgumentNotConfiguredError(fmt.Sprintf("unknown argument mode %q", a.Mode), nil)
	}
	if a.Type != "" && !a.Type.Valid() {
		return derrors.NewArgumentNotConfiguredError(fmt.Sprintf("unknown argument type %q", a.Type), nil)
	}
	return nil
}

// Clone returns a copy that shares no mutable state with a. Slice and map
// literals are copied one level deep.
func (a *Argument) Clone() *Argument {
	if a == nil {
		return nil
	}
	c := *a
	switch v := a.DefaultValue.(type) {
	case []any:
		c.DefaultValue = append([]any(nil), v...)
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, val := range v {
			m[k] = val
		}
		c.DefaultValue = m
	}
	return &c
}

// String describes the argument for logs.
func (a *Argument) String() string {
	if a == nil {
		return "<unset>"
	}
	switch a.Mode {
	case ModeScripted:
		return fmt.Sprintf("script(%s)", a.ScriptFile)
	case ModePredicate:
		return fmt.Sprintf("property(%s)", a.PropertyPath)
	default:
		return fmt.Sprintf("literal(%v)", a.DefaultValue)
	}
}
