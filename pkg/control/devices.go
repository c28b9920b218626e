package control

import (
	"context"
)

// MouseButton identifies a mouse button
type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// Mouse drives the pointer
type Mouse interface {
	Move(ctx context.Context, p Point) error
	Click(ctx context.Context, p Point, button MouseButton, count int) error
}

// Keyboard sends keystrokes to the focused control
type Keyboard interface {
	Type(ctx context.Context, text string) error
	Press(ctx context.Context, keys ...string) error
}

// Application is a running application under automation
type Application interface {
	ID() string
	Name() string
}

// LaunchSpec describes an application to start or attach to
type LaunchSpec struct {
	ID        string   `json:"id"`
	Path      string   `json:"path,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
	Attach    bool     `json:"attach,omitempty"`
}

// ApplicationDriver starts and stops applications
type ApplicationDriver interface {
	Launch(ctx context.Context, spec LaunchSpec) (Application, error)
	Close(ctx context.Context, app Application) error
}

// Keys names special keys for Keyboard.Press and scripts
var Keys = map[string]string{
	"Enter":     "{ENTER}",
	"Tab":       "{TAB}",
	"Escape":    "{ESC}",
	"Backspace": "{BACKSPACE}",
	"Delete":    "{DELETE}",
	"Up":        "{UP}",
	"Down":      "{DOWN}",
	"Left":      "{LEFT}",
	"Right":     "{RIGHT}",
	"Home":      "{HOME}",
	"End":       "{END}",
	"Control":   "{CTRL}",
	"Alt":       "{ALT}",
	"Shift":     "{SHIFT}",
}

// Devices bundles the automation capabilities available to a run. Unset
// members report ErrProviderUnavailable when used.
type Devices struct {
	Lookup       LookupProvider
	Mouse        Mouse
	Keyboard     Keyboard
	Applications ApplicationDriver
}

// WithDefaults fills unset members with unavailable stand-ins
func (d Devices) WithDefaults() Devices {
	if d.Lookup == nil {
		d.Lookup = Unavailable{}
	}
	if d.Mouse == nil {
		d.Mouse = Unavailable{}
	}
	if d.Keyboard == nil {
		d.Keyboard = Unavailable{}
	}
	if d.Applications == nil {
		d.Applications = Unavailable{}
	}
	return d
}

// Unavailable implements every device capability by failing
type Unavailable struct{}

func (Unavailable) Find(context.Context, Query) (Handle, error) { return nil, ErrProviderUnavailable }

func (Unavailable) Move(context.Context, Point) error { return ErrProviderUnavailable }

func (Unavailable) Click(context.Context, Point, MouseButton, int) error {
	return ErrProviderUnavailable
}

func (Unavailable) Type(context.Context, string) error { return ErrProviderUnavailable }

func (Unavailable) Press(context.Context, ...string) error { return ErrProviderUnavailable }

func (Unavailable) Launch(context.Context, LaunchSpec) (Application, error) {
	return nil, ErrProviderUnavailable
}

func (Unavailable) Close(context.Context, Application) error { return ErrProviderUnavailable }
