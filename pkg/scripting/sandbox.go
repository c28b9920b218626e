package scripting

import (
	"fmt"

	"github.com/dop251/goja"
)

// hostGlobals are never exposed to workflow scripts
var hostGlobals = []string{
	"require",
	"module",
	"exports",
	"process",
	"global",
	"__dirname",
	"__filename",
	"Buffer",
	"setImmediate",
	"clearImmediate",
}

var frozenBuiltins = []string{
	"Object",
	"Array",
	"Function",
	"String",
	"Number",
	"Boolean",
	"Date",
	"RegExp",
	"Error",
	"Math",
}

// Sandbox applies security restrictions to a runtime
type Sandbox struct {
	securityLevel string
}

// NewSandbox creates a sandbox for the given security level
func NewSandbox(securityLevel string) *Sandbox {
	return &Sandbox{securityLevel: securityLevel}
}

// Apply applies sandbox restrictions to a VM runtime
func (s *Sandbox) Apply(vm *goja.Runtime) error {
	for _, name := range hostGlobals {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}

	if s.securityLevel == SecurityLevelStrict {
		err := vm.Set("eval", func(goja.FunctionCall) goja.Value {
			panic(vm.NewGoError(newSecurityError("eval is not allowed in strict security mode")))
		})
		if err != nil {
			return fmt.Errorf("failed to restrict eval: %w", err)
		}
	}

	if s.securityLevel != SecurityLevelPermissive {
		if err := s.freezeBuiltins(vm); err != nil {
			return fmt.Errorf("failed to freeze built-ins: %w", err)
		}
	}
	return nil
}

func (s *Sandbox) freezeBuiltins(vm *goja.Runtime) error {
	val, err := vm.RunString(`(function(obj) {
		if (obj) {
			Object.freeze(obj);
			if (obj.prototype) {
				Object.freeze(obj.prototype);
			}
		}
	})`)
	if err != nil {
		return err
	}
	freeze, ok := goja.AssertFunction(val)
	if !ok {
		return fmt.Errorf("freeze helper is not a function")
	}
	for _, name := range frozenBuiltins {
		obj := vm.Get(name)
		if obj == nil || goja.IsUndefined(obj) {
			continue
		}
		// Some built-ins refuse freezing; that is not fatal.
		_, _ = freeze(goja.Undefined(), obj)
	}
	return nil
}
