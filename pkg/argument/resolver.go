package argument

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"go.uber.org/zap"

	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

// ScriptEvaluator evaluates a script file against a set of globals.
type ScriptEvaluator interface {
	EvaluateFile(ctx context.Context, path string, globals map[string]any) (any, error)
}

// Ambient is the execution context an argument is resolved in.
type Ambient struct {
	// Application is the current application handle, if any.
	Application any
	// Component is the component whose argument is being resolved.
	Component any
	// Model is the data object property paths are read from.
	Model any
	// Extra globals exposed to scripts.
	Globals map[string]any
}

// ScriptGlobals returns the globals a scripted argument is evaluated with.
func (a Ambient) ScriptGlobals() map[string]any {
	globals := make(map[string]any, len(a.Globals)+3)
	for k, v := range a.Globals {
		globals[k] = v
	}
	globals["application"] = a.Application
	globals["component"] = a.Component
	globals["model"] = a.Model
	return globals
}

// Resolver materializes argument values.
type Resolver struct {
	scripts ScriptEvaluator
	logger  *zap.Logger
}

// NewResolver creates a resolver. scripts may be nil when no scripted
// arguments are expected; resolving one then fails with a configuration error.
func NewResolver(scripts ScriptEvaluator, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{scripts: scripts, logger: logger}
}

// Resolve evaluates arg in its authoritative mode and coerces the result to
// expected. An empty expected type falls back to the argument's declared type.
// There is no fallback between modes.
func (r *Resolver) Resolve(ctx context.Context, arg *Argument, expected Type, amb Ambient) (any, error) {
	if err := arg.Validate(); err != nil {
		return nil, err
	}
	if expected == "" {
		expected = arg.Type
	}

	var (
		value any
		err   error
	)
	switch arg.Mode {
	case ModeDefault:
		if arg.DefaultValue == nil && expected != "" && expected != TypeAny {
			return nil, derrors.NewArgumentNotConfiguredError(
				fmt.Sprintf("literal argument has no default value for type %s", expected), nil)
		}
		value = arg.DefaultValue
	case ModeScripted:
		value, err = r.evaluateScript(ctx, arg, amb)
	case ModePredicate:
		value, err = r.readProperty(arg, amb)
	}
	if err != nil {
		return nil, err
	}

	coerced, err := Coerce(value, expected)
	if err != nil {
		if arg.Mode == ModeDefault {
			return nil, derrors.NewArgumentNotConfiguredError("literal argument has an invalid default value", err)
		}
		return nil, fmt.Errorf("argument %s: %w", arg, err)
	}

	r.logger.Debug("Resolved argument",
		zap.String("argument", arg.String()),
		zap.String("type", string(expected)))
	return coerced, nil
}

func (r *Resolver) evaluateScript(ctx context.Context, arg *Argument, amb Ambient) (any, error) {
	if r.scripts == nil {
		return nil, derrors.NewConfigurationError(
			fmt.Sprintf("scripted argument %s cannot be resolved without a script engine", arg.ScriptFile), nil)
	}
	value, err := r.scripts.EvaluateFile(ctx, arg.ScriptFile, amb.ScriptGlobals())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, derrors.NewArgumentNotConfiguredError(
				fmt.Sprintf("script file %s not found", arg.ScriptFile), err)
		}
		return nil, fmt.Errorf("evaluating %s: %w", arg.ScriptFile, err)
	}
	return value, nil
}

func (r *Resolver) readProperty(arg *Argument, amb Ambient) (any, error) {
	value, ok := Lookup(amb.Model, arg.PropertyPath)
	if !ok {
		return nil, derrors.NewConfigurationError(
			fmt.Sprintf("property path %q does not resolve on the ambient model", arg.PropertyPath), nil)
	}
	return value, nil
}

// ResolveString resolves arg as a string.
func (r *Resolver) ResolveString(ctx context.Context, arg *Argument, amb Ambient) (string, error) {
	v, err := r.Resolve(ctx, arg, TypeString, amb)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// ResolveBool resolves arg as a bool.
func (r *Resolver) ResolveBool(ctx context.Context, arg *Argument, amb Ambient) (bool, error) {
	v, err := r.Resolve(ctx, arg, TypeBool, amb)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// ResolveInt resolves arg as an int.
func (r *Resolver) ResolveInt(ctx context.Context, arg *Argument, amb Ambient) (int, error) {
	v, err := r.Resolve(ctx, arg, TypeInt, amb)
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// ResolveFloat resolves arg as a float64.
func (r *Resolver) ResolveFloat(ctx context.Context, arg *Argument, amb Ambient) (float64, error) {
	v, err := r.Resolve(ctx, arg, TypeFloat, amb)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// ResolveDuration resolves arg as a time.Duration.
func (r *Resolver) ResolveDuration(ctx context.Context, arg *Argument, amb Ambient) (time.Duration, error) {
	v, err := r.Resolve(ctx, arg, TypeDuration, amb)
	if err != nil {
		return 0, err
	}
	return v.(time.Duration), nil
}
