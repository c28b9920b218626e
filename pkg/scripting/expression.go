package scripting

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

const (
	maxExpressionLength = 1000
	maxExpressionNodes  = 200
)

// Expressions evaluates inline conditions. Compiled programs are cached by
// expression text.
type Expressions struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewExpressions creates an expression evaluator with an empty cache
func NewExpressions() *Expressions {
	return &Expressions{programs: make(map[string]*vm.Program)}
}

// Evaluate runs an expression against env
func (x *Expressions) Evaluate(expression string, env map[string]any) (any, error) {
	if len(expression) > maxExpressionLength {
		return nil, fmt.Errorf("expression too long (max %d chars): %d chars", maxExpressionLength, len(expression))
	}
	program, err := x.compile(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", expression, err)
	}
	if env == nil {
		env = map[string]any{}
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression %q: %w", expression, err)
	}
	return out, nil
}

// EvaluateBool runs an expression that must produce a boolean
func (x *Expressions) EvaluateBool(expression string, env map[string]any) (bool, error) {
	out, err := x.Evaluate(expression, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not return boolean: %v", expression, out)
	}
	return b, nil
}

// Check compiles an expression without running it. The compiled program is
// cached for later evaluation.
func (x *Expressions) Check(expression string) error {
	if len(expression) > maxExpressionLength {
		return fmt.Errorf("expression too long (max %d chars): %d chars", maxExpressionLength, len(expression))
	}
	_, err := x.compile(expression)
	return err
}

func (x *Expressions) compile(expression string) (*vm.Program, error) {
	x.mu.RLock()
	program, found := x.programs[expression]
	x.mu.RUnlock()
	if found {
		return program, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if program, found := x.programs[expression]; found {
		return program, nil
	}

	// No Env: variables are resolved from the map at run time.
	program, err := expr.Compile(expression, expr.MaxNodes(maxExpressionNodes))
	if err != nil {
		return nil, err
	}
	x.programs[expression] = program
	return program, nil
}
