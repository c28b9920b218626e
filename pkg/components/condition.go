package components

import (
	"context"
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/argument"
	"github.com/wehubfusion/Daedalus/pkg/engine"
	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/scripting"
)

// expressions compiles inline conditions during validation.
var expressions = scripting.NewExpressions()

// condition is a boolean test given either as an argument or as an inline
// expression over the run's model. Exactly one of the two is set.
type condition struct {
	Condition  *argument.Argument `json:"condition,omitempty"`
	Expression string             `json:"expression,omitempty"`
}

func (c *condition) validateCondition() error {
	switch {
	case c.Condition != nil && c.Expression != "":
		return derrors.NewArgumentNotConfiguredError("condition has both an argument and an expression", nil)
	case c.Condition != nil:
		return c.Condition.Validate()
	case c.Expression != "":
		if err := expressions.Check(c.Expression); err != nil {
			return derrors.NewArgumentNotConfiguredError(
				fmt.Sprintf("condition expression %q does not compile", c.Expression), err)
		}
		return nil
	}
	return derrors.NewArgumentNotConfiguredError("condition is not set", nil)
}

func (c *condition) evaluate(ctx context.Context, rc *engine.RunContext) (bool, error) {
	if c.Expression != "" {
		ok, err := rc.Expressions().EvaluateBool(c.Expression, rc.ExpressionEnv())
		if err != nil {
			return false, fmt.Errorf("condition %q: %w", c.Expression, err)
		}
		return ok, nil
	}
	return rc.ResolveBool(ctx, c.Condition)
}
