package components

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/argument"
	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/entity"
	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/search"
)

// Names of the structural branches of a Conditional.
const (
	ThenBranch = "Then"
	ElseBranch = "Else"
)

// Conditional runs its Then branch when the condition holds and its Else
// branch otherwise. The condition is evaluated once per visit.
type Conditional struct {
	*entity.Entity
	condition

	taken string
}

// NewConditional creates a conditional. The branches are created by
// ResolveDependencies.
func NewConditional(name string) *Conditional {
	c := &Conditional{}
	c.Entity = entity.NewEntity(c, KindConditional, name)
	return c
}

// If creates a conditional over an argument with its branches in place.
func If(name string, cond *argument.Argument) *Conditional {
	c := NewConditional(name)
	c.Condition = cond
	c.ResolveDependencies()
	return c
}

// IfExpr creates a conditional over an inline expression with its branches in place.
func IfExpr(name, expression string) *Conditional {
	c := NewConditional(name)
	c.Expression = expression
	c.ResolveDependencies()
	return c
}

// ResolveDependencies creates the Then and Else branches when absent.
func (c *Conditional) ResolveDependencies() {
	for _, name := range []string{ThenBranch, ElseBranch} {
		_, _ = c.EnsureChild(name, func() entity.Component { return entity.New(name) })
	}
}

// Then returns the branch run when the condition holds.
func (c *Conditional) Then() *entity.Entity {
	return c.branch(ThenBranch)
}

// Else returns the branch run when the condition does not hold.
func (c *Conditional) Else() *entity.Entity {
	return c.branch(ElseBranch)
}

func (c *Conditional) branch(name string) *entity.Entity {
	c.ResolveDependencies()
	child, err := c.GetComponentByName(name, search.Children)
	if err != nil {
		return nil
	}
	e, _ := entity.AsEntity(child)
	return e
}

// Taken returns the branch chosen on the last visit, or an empty string.
func (c *Conditional) Taken() string {
	return c.taken
}

func (c *Conditional) Validate() error {
	return c.validateCondition()
}

func (c *Conditional) Reset() {
	c.taken = ""
}

// SelectBranch evaluates the condition and yields the children of the
// matching branch.
func (c *Conditional) SelectBranch(ctx context.Context, rc *engine.RunContext) ([]entity.Component, error) {
	ok, err := c.evaluate(ctx, rc)
	if err != nil {
		return nil, err
	}

	name := ElseBranch
	if ok {
		name = ThenBranch
	}
	child, err := c.GetComponentByName(name, search.Children)
	if err != nil {
		return nil, derrors.NewMissingComponentError(
			fmt.Sprintf("conditional %q has no %s branch", c.Name(), name), err)
	}
	branch, isEntity := entity.AsEntity(child)
	if !isEntity {
		return nil, derrors.NewMissingComponentError(
			fmt.Sprintf("%s branch of conditional %q is not a container", name, c.Name()), nil)
	}
	c.taken = name

	rc.Logger.Debug("Conditional branch selected",
		zap.String("node_id", c.ID()),
		zap.String("node_name", c.Name()),
		zap.String("branch", name))

	if !branch.IsEnabled() {
		return nil, nil
	}
	return branch.Children(), nil
}

var _ engine.BranchSelector = (*Conditional)(nil)
