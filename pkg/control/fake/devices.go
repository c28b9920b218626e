package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/wehubfusion/Daedalus/pkg/control"
)

// Click records one mouse click
type Click struct {
	Point  control.Point
	Button control.MouseButton
	Count  int
}

// Mouse records pointer activity
type Mouse struct {
	mu       sync.Mutex
	Position control.Point
	Clicks   []Click
}

func (m *Mouse) Move(ctx context.Context, p control.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Position = p
	return nil
}

func (m *Mouse) Click(ctx context.Context, p control.Point, button control.MouseButton, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Position = p
	m.Clicks = append(m.Clicks, Click{Point: p, Button: button, Count: count})
	return nil
}

// Keyboard records typed text and key presses
type Keyboard struct {
	mu      sync.Mutex
	Typed   []string
	Pressed [][]string
}

func (k *Keyboard) Type(ctx context.Context, text string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Typed = append(k.Typed, text)
	return nil
}

func (k *Keyboard) Press(ctx context.Context, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Pressed = append(k.Pressed, keys)
	return nil
}

// App is a launched fake application
type App struct {
	Spec   control.LaunchSpec
	Closed bool
}

func (a *App) ID() string   { return a.Spec.ID }
func (a *App) Name() string { return a.Spec.Path }

// Applications is an in-memory ApplicationDriver
type Applications struct {
	mu       sync.Mutex
	Launched []*App
}

func (d *Applications) Launch(ctx context.Context, spec control.LaunchSpec) (control.Application, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("application id is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	app := &App{Spec: spec}
	d.Launched = append(d.Launched, app)
	return app, nil
}

func (d *Applications) Close(ctx context.Context, app control.Application) error {
	a, ok := app.(*App)
	if !ok {
		return fmt.Errorf("unknown application %T", app)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	a.Closed = true
	return nil
}

// Devices returns a control.Devices wired to fresh fakes
func Devices(provider *Provider) (control.Devices, *Mouse, *Keyboard, *Applications) {
	m, k, a := &Mouse{}, &Keyboard{}, &Applications{}
	return control.Devices{Lookup: provider, Mouse: m, Keyboard: k, Applications: a}, m, k, a
}
