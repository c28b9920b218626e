package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/argument"
	"github.com/wehubfusion/Daedalus/pkg/control"
	"github.com/wehubfusion/Daedalus/pkg/entity"
	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/scripting"
)

// Environment holds the collaborators of a single run.
type Environment struct {
	// Scripts evaluates scripted arguments and script actors; nil disables scripting
	Scripts *scripting.Engine

	// Devices are the automation capabilities available to control actors
	Devices control.Devices

	// Clock paces control lookup retries; nil uses the wall clock
	Clock control.Clock

	// Model is the data object property paths are read from
	Model map[string]any

	// Globals are extra values exposed to scripts
	Globals map[string]any

	// Listeners receive this run's results in addition to the processor's listeners
	Listeners []Listener
}

// RunContext is the per-run execution context handed to components.
type RunContext struct {
	RunID    string
	Logger   *zap.Logger
	Tracer   trace.Tracer
	Devices  control.Devices
	Controls *control.Resolver
	Clock    control.Clock
	Model    map[string]any
	Globals  map[string]any

	scripts     *scripting.Session
	expressions *scripting.Expressions
	arguments   *argument.Resolver
	application control.Application
	current     entity.Component
	loops       []Loop
}

// Current returns the component being visited.
func (rc *RunContext) Current() entity.Component {
	return rc.current
}

// Application returns the application provided by the nearest service, if any.
func (rc *RunContext) Application() control.Application {
	return rc.application
}

// SetApplication replaces the current application and returns the previous one.
func (rc *RunContext) SetApplication(app control.Application) control.Application {
	prev := rc.application
	rc.application = app
	return prev
}

// Scripts returns the run's script session, or nil when scripting is disabled.
func (rc *RunContext) Scripts() *scripting.Session {
	return rc.scripts
}

// Expressions returns the inline condition evaluator.
func (rc *RunContext) Expressions() *scripting.Expressions {
	return rc.expressions
}

// Ambient returns the argument resolution context for the current component.
func (rc *RunContext) Ambient() argument.Ambient {
	var app any
	if rc.application != nil {
		app = rc.application
	}
	return argument.Ambient{
		Application: app,
		Component:   rc.current,
		Model:       rc.Model,
		Globals:     rc.Globals,
	}
}

// ScriptGlobals returns the globals a script actor is evaluated with.
func (rc *RunContext) ScriptGlobals() map[string]any {
	return rc.Ambient().ScriptGlobals()
}

// ExpressionEnv returns the variables visible to inline conditions: the
// model's entries plus the current component.
func (rc *RunContext) ExpressionEnv() map[string]any {
	env := make(map[string]any, len(rc.Model)+2)
	for k, v := range rc.Model {
		env[k] = v
	}
	env["model"] = rc.Model
	env["component"] = rc.current
	return env
}

// Resolve resolves an argument against the current component's ambient context.
func (rc *RunContext) Resolve(ctx context.Context, arg *argument.Argument, t argument.Type) (any, error) {
	return rc.arguments.Resolve(ctx, arg, t, rc.Ambient())
}

// ResolveString resolves an argument as a string.
func (rc *RunContext) ResolveString(ctx context.Context, arg *argument.Argument) (string, error) {
	return rc.arguments.ResolveString(ctx, arg, rc.Ambient())
}

// ResolveBool resolves an argument as a bool.
func (rc *RunContext) ResolveBool(ctx context.Context, arg *argument.Argument) (bool, error) {
	return rc.arguments.ResolveBool(ctx, arg, rc.Ambient())
}

// ResolveInt resolves an argument as an int.
func (rc *RunContext) ResolveInt(ctx context.Context, arg *argument.Argument) (int, error) {
	return rc.arguments.ResolveInt(ctx, arg, rc.Ambient())
}

// ResolveDuration resolves an argument as a duration.
func (rc *RunContext) ResolveDuration(ctx context.Context, arg *argument.Argument) (time.Duration, error) {
	return rc.arguments.ResolveDuration(ctx, arg, rc.Ambient())
}

// SetVariable stores a value in the run's model.
func (rc *RunContext) SetVariable(name string, value any) {
	rc.Model[name] = value
}

// Variable reads a value from the run's model.
func (rc *RunContext) Variable(name string) (any, bool) {
	v, ok := rc.Model[name]
	return v, ok
}

// ActiveLoop returns the innermost executing loop, or nil.
func (rc *RunContext) ActiveLoop() Loop {
	if len(rc.loops) == 0 {
		return nil
	}
	return rc.loops[len(rc.loops)-1]
}

// RequestExit sets the exit flag of loop. It is only allowed while loop is
// executing and the current component lies inside it.
func (rc *RunContext) RequestExit(loop Loop) error {
	if loop == nil {
		return derrors.NewConfigurationError("no loop to exit", ErrNoEnclosingLoop)
	}
	active := false
	for _, l := range rc.loops {
		if l == loop {
			active = true
			break
		}
	}
	if !active {
		return derrors.NewConfigurationError(fmt.Sprintf("loop %q is not executing", loop.Name()), ErrNotActive)
	}
	if rc.current != nil && !entity.IsDescendantOf(rc.current, loop) {
		return derrors.NewConfigurationError(
			fmt.Sprintf("%q is outside loop %q", rc.current.Name(), loop.Name()), ErrNoEnclosingLoop)
	}
	loop.RequestExit()
	return nil
}

// BreakLoop exits the nearest loop enclosing from. A component outside any
// loop is a configuration error wrapping ErrNoEnclosingLoop.
func BreakLoop(rc *RunContext, from entity.Component) error {
	loop, err := entity.GetAncestor[Loop](from)
	if err != nil {
		return derrors.NewConfigurationError(fmt.Sprintf("break %q is not inside a loop", from.Name()),
			fmt.Errorf("%w: %w", ErrNoEnclosingLoop, err))
	}
	return rc.RequestExit(loop)
}

func (rc *RunContext) pushLoop(l Loop) {
	rc.loops = append(rc.loops, l)
}

func (rc *RunContext) popLoop() {
	rc.loops = rc.loops[:len(rc.loops)-1]
}

// exitRequested reports whether the innermost executing loop should stop.
func (rc *RunContext) exitRequested() bool {
	l := rc.ActiveLoop()
	return l != nil && l.ShouldExit()
}
