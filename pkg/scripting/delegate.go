package scripting

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// Delegate is a compiled script that evaluates to a function and can be
// invoked with host arguments.
type Delegate struct {
	engine  *Engine
	program *goja.Program
	name    string
}

// CreateDelegate compiles src and checks that it evaluates to a function
func (e *Engine) CreateDelegate(ctx context.Context, src Source) (*Delegate, error) {
	program, name, err := e.compile(src)
	if err != nil {
		return nil, err
	}
	d := &Delegate{engine: e, program: program, name: name}
	if err := d.call(ctx, nil, nil, nil); err != nil {
		return nil, err
	}
	return d, nil
}

// Invoke calls the delegate and returns its exported result
func (d *Delegate) Invoke(ctx context.Context, globals map[string]any, args ...any) (any, error) {
	var out any
	err := d.call(ctx, globals, args, func(_ *goja.Runtime, v goja.Value) error {
		out = export(v)
		return nil
	})
	return out, err
}

// Call invokes a delegate and converts its result to T
func Call[T any](ctx context.Context, d *Delegate, globals map[string]any, args ...any) (T, error) {
	var out T
	err := d.call(ctx, globals, args, func(vm *goja.Runtime, v goja.Value) error {
		if export(v) == nil {
			return nil
		}
		if err := vm.ExportTo(v, &out); err != nil {
			return fmt.Errorf("failed to convert result of %s to %T: %w", d.name, out, err)
		}
		return nil
	})
	return out, err
}

// call runs the delegate. A nil result func only resolves the function.
func (d *Delegate) call(ctx context.Context, globals map[string]any, args []any, result func(*goja.Runtime, goja.Value) error) error {
	if err := d.engine.checkOpen(); err != nil {
		return err
	}
	rt, err := d.engine.pool.acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire runtime: %w", err)
	}
	healthy := true
	defer func() { d.engine.pool.release(rt, healthy) }()

	if err := bindGlobals(rt, globals); err != nil {
		return err
	}
	val, err := d.engine.execute(ctx, rt.vm, d.name, func() (goja.Value, error) {
		fnVal, err := rt.vm.RunProgram(d.program)
		if err != nil {
			return nil, err
		}
		fn, ok := goja.AssertFunction(fnVal)
		if !ok {
			return nil, &ScriptError{
				Type:    ErrorTypeRuntime,
				Message: "script does not evaluate to a function",
				Source:  d.name,
			}
		}
		if result == nil {
			return goja.Undefined(), nil
		}
		jsArgs := make([]goja.Value, len(args))
		for i, a := range args {
			jsArgs[i] = rt.vm.ToValue(a)
		}
		return fn(goja.Undefined(), jsArgs...)
	})
	if err != nil {
		var se *ScriptError
		if errors.As(err, &se) && se.Type == ErrorTypeInternal {
			healthy = false
		}
		return err
	}
	if result == nil {
		return nil
	}
	return result(rt.vm, val)
}
