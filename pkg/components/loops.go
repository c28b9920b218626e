package components

import (
	"context"
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/argument"
	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/entity"
	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

// loopState carries a loop's exit flag and iteration count.
type loopState struct {
	exit       bool
	iterations int
}

func (s *loopState) RequestExit() { s.exit = true }

func (s *loopState) ShouldExit() bool { return s.exit }

func (s *loopState) ResetExit() { s.exit = false }

// Iterations returns the number of iterations started on the last visit.
func (s *loopState) Iterations() int { return s.iterations }

func (s *loopState) Reset() {
	s.exit = false
	s.iterations = 0
}

func (s *loopState) begin(iteration int) {
	if iteration == 0 {
		s.iterations = 0
	}
	s.iterations++
}

// Loop repeats its children until a Break inside it fires.
type Loop struct {
	*entity.Entity
	loopState
}

// NewLoop creates a loop.
func NewLoop(name string) *Loop {
	l := &Loop{}
	l.Entity = entity.NewEntity(l, KindLoop, name)
	return l
}

func (l *Loop) BeforeIteration(_ context.Context, _ *engine.RunContext, iteration int) (bool, error) {
	l.begin(iteration)
	return true, nil
}

// WhileLoop repeats its children while its condition holds. The condition
// is evaluated before every iteration.
type WhileLoop struct {
	*entity.Entity
	loopState
	condition
}

// NewWhileLoop creates a while loop.
func NewWhileLoop(name string) *WhileLoop {
	l := &WhileLoop{}
	l.Entity = entity.NewEntity(l, KindWhileLoop, name)
	return l
}

// While creates a while loop over an argument.
func While(name string, cond *argument.Argument) *WhileLoop {
	l := NewWhileLoop(name)
	l.Condition = cond
	return l
}

func (l *WhileLoop) Validate() error {
	return l.validateCondition()
}

func (l *WhileLoop) Reset() {
	l.loopState.Reset()
}

func (l *WhileLoop) BeforeIteration(ctx context.Context, rc *engine.RunContext, iteration int) (bool, error) {
	ok, err := l.evaluate(ctx, rc)
	if err != nil || !ok {
		return false, err
	}
	l.begin(iteration)
	return true, nil
}

// RepeatLoop runs its children a fixed number of times. The count is
// resolved once per visit.
type RepeatLoop struct {
	*entity.Entity
	loopState
	Count *argument.Argument `json:"count"`

	limit int
}

// NewRepeatLoop creates a repeat loop with a count of one.
func NewRepeatLoop(name string) *RepeatLoop {
	l := &RepeatLoop{Count: argument.Literal(1).Typed(argument.TypeInt)}
	l.Entity = entity.NewEntity(l, KindRepeatLoop, name)
	return l
}

// Repeat creates a repeat loop with a literal count.
func Repeat(name string, count int) *RepeatLoop {
	l := NewRepeatLoop(name)
	l.Count = argument.Literal(count).Typed(argument.TypeInt)
	return l
}

func (l *RepeatLoop) Validate() error {
	return l.Count.Validate()
}

func (l *RepeatLoop) Reset() {
	l.loopState.Reset()
	l.limit = 0
}

func (l *RepeatLoop) BeforeIteration(ctx context.Context, rc *engine.RunContext, iteration int) (bool, error) {
	if iteration == 0 {
		n, err := rc.ResolveInt(ctx, l.Count)
		if err != nil {
			return false, err
		}
		if n < 0 {
			return false, derrors.NewArgumentNotConfiguredError(
				fmt.Sprintf("repeat count %d of %q is negative", n, l.Name()), nil)
		}
		l.limit = n
	}
	if iteration >= l.limit {
		return false, nil
	}
	l.begin(iteration)
	return true, nil
}

// Break exits the nearest enclosing loop. Siblings after it in the current
// iteration do not run. A Break outside any loop fails the run.
type Break struct {
	entity.Base
}

// NewBreak creates a break.
func NewBreak(name string) *Break {
	b := &Break{}
	b.Base = entity.NewBase(b, KindBreak, name)
	return b
}

func (b *Break) Act(_ context.Context, rc *engine.RunContext) error {
	return engine.BreakLoop(rc, b)
}

var (
	_ engine.Loop                = (*Loop)(nil)
	_ engine.IterationController = (*WhileLoop)(nil)
	_ engine.IterationController = (*RepeatLoop)(nil)
	_ engine.Actor               = (*Break)(nil)
)
