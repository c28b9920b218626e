package components

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/argument"
	"github.com/wehubfusion/Daedalus/pkg/control"
	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/entity"
	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

// Variables publishes named values into the run's model. Values are
// resolved in name order, so later names can read earlier ones.
type Variables struct {
	entity.Base
	Values map[string]*argument.Argument `json:"values,omitempty"`
}

// NewVariables creates an empty variable set.
func NewVariables(name string) *Variables {
	v := &Variables{Values: make(map[string]*argument.Argument)}
	v.Base = entity.NewBase(v, KindVariables, name)
	return v
}

// Set adds or replaces a variable and returns v for chaining.
func (v *Variables) Set(name string, arg *argument.Argument) *Variables {
	if v.Values == nil {
		v.Values = make(map[string]*argument.Argument)
	}
	v.Values[name] = arg
	return v
}

func (v *Variables) names() []string {
	names := make([]string, 0, len(v.Values))
	for name := range v.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (v *Variables) Validate() error {
	for _, name := range v.names() {
		if name == "" {
			return derrors.NewArgumentNotConfiguredError("variable with an empty name", nil)
		}
		if err := v.Values[name].Validate(); err != nil {
			return fmt.Errorf("variable %s: %w", name, err)
		}
	}
	return nil
}

func (v *Variables) Publish(ctx context.Context, rc *engine.RunContext) error {
	for _, name := range v.names() {
		value, err := rc.Resolve(ctx, v.Values[name], "")
		if err != nil {
			return fmt.Errorf("variable %s: %w", name, err)
		}
		rc.SetVariable(name, value)
	}
	return nil
}

// Application launches or attaches to an application for its descendants.
// Control actors below it bind their targets to the application's ID.
type Application struct {
	*entity.Entity
	Launch   control.LaunchSpec `json:"application"`
	KeepOpen bool               `json:"keepOpen,omitempty"`

	app  control.Application
	prev control.Application
}

// NewApplication creates an application service.
func NewApplication(name string) *Application {
	a := &Application{}
	a.Entity = entity.NewEntity(a, KindApplication, name)
	return a
}

// Handle returns the running application, or nil outside a run.
func (a *Application) Handle() control.Application {
	return a.app
}

func (a *Application) Validate() error {
	if a.Launch.ID == "" {
		return derrors.NewArgumentNotConfiguredError(fmt.Sprintf("application %q has no id", a.Name()), nil)
	}
	return nil
}

func (a *Application) Start(ctx context.Context, rc *engine.RunContext) error {
	app, err := rc.Devices.Applications.Launch(ctx, a.Launch)
	if err != nil {
		return fmt.Errorf("launch %s: %w", a.Launch.ID, err)
	}
	a.app = app
	a.prev = rc.SetApplication(app)
	rc.Logger.Info("Application started",
		zap.String("application_id", app.ID()),
		zap.Bool("attached", a.Launch.Attach))
	return nil
}

func (a *Application) Stop(ctx context.Context, rc *engine.RunContext) error {
	if a.app == nil {
		return nil
	}
	app := a.app
	rc.SetApplication(a.prev)
	a.app, a.prev = nil, nil

	if a.KeepOpen || a.Launch.Attach {
		return nil
	}
	if err := rc.Devices.Applications.Close(ctx, app); err != nil {
		return fmt.Errorf("close %s: %w", app.ID(), err)
	}
	rc.Logger.Info("Application closed", zap.String("application_id", app.ID()))
	return nil
}

var (
	_ engine.DataComponent = (*Variables)(nil)
	_ engine.Service       = (*Application)(nil)
)
