package engine

import (
	"context"

	"github.com/wehubfusion/Daedalus/pkg/entity"
)

// Actor performs an action. The engine awaits Act before moving on.
type Actor interface {
	entity.Component
	Act(ctx context.Context, rc *RunContext) error
}

// ArgumentBinder resolves a component's arguments before it acts.
type ArgumentBinder interface {
	ResolveArguments(ctx context.Context, rc *RunContext) error
}

// Loop repeats its children until its exit flag is set. The flag starts
// cleared on every visit and is set through RunContext.RequestExit from
// inside the loop's subtree.
type Loop interface {
	entity.Container
	RequestExit()
	ShouldExit() bool
	ResetExit()
}

// IterationController lets a loop decide, before each iteration, whether
// to continue. Iterations are numbered from zero.
type IterationController interface {
	BeforeIteration(ctx context.Context, rc *RunContext, iteration int) (bool, error)
}

// BranchSelector yields the children to execute instead of its own children.
type BranchSelector interface {
	entity.Container
	SelectBranch(ctx context.Context, rc *RunContext) ([]entity.Component, error)
}

// EntityProcessor aggregates pass/fail over the actor invocations in its subtree.
type EntityProcessor interface {
	entity.Container
	RecordResult(passed bool)
	Passed() bool
	ResultCount() int
}

// ErrorMode overrides the engine's stop-on-error policy for a subtree.
type ErrorMode string

const (
	ErrorModeInherit  ErrorMode = ""
	ErrorModeContinue ErrorMode = "continue"
	ErrorModeStop     ErrorMode = "stop"
)

// ErrorPolicy is implemented by containers that override the stop-on-error policy.
type ErrorPolicy interface {
	OnError() ErrorMode
}

// DataComponent publishes state into the run's model when visited.
type DataComponent interface {
	entity.Component
	Publish(ctx context.Context, rc *RunContext) error
}

// Service provides a capability to its descendants. Start runs before the
// children, Stop after them, even when a child fails.
type Service interface {
	entity.Container
	Start(ctx context.Context, rc *RunContext) error
	Stop(ctx context.Context, rc *RunContext) error
}
