package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrLoopBoundExceeded is returned when a loop reaches MaxLoopIterations or MaxLoopDuration.
	ErrLoopBoundExceeded = errors.New("loop bound exceeded")

	// ErrNotActive is returned when exiting a loop that is not executing.
	ErrNotActive = errors.New("loop is not executing")

	// ErrNoEnclosingLoop is returned when a loop exit is requested from a
	// component that no executing loop contains. It aborts the run.
	ErrNoEnclosingLoop = errors.New("no enclosing loop")
)

// isFatal reports whether cause must abort the whole run rather than fail
// only the component it occurred in.
func isFatal(cause error) bool {
	return errors.Is(cause, ErrNoEnclosingLoop) || errors.Is(cause, ErrNotActive)
}

// Phase names the step of a visit that failed.
type Phase string

const (
	PhaseValidate  Phase = "validate"
	PhaseArguments Phase = "arguments"
	PhaseAct       Phase = "act"
	PhaseData      Phase = "data"
	PhaseService   Phase = "service"
	PhaseBranch    Phase = "branch"
	PhaseIteration Phase = "iteration"
)

// NodeError wraps an error with the component it occurred in.
type NodeError struct {
	// NodeID is the ID of the component that caused the error
	NodeID string
	// NodeName is the display name of the component
	NodeName string
	// Kind is the registered kind of the component
	Kind string
	// Phase indicates which step of the visit failed
	Phase Phase
	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("%s %q (%s) failed during %s: %v", e.Kind, e.NodeName, e.NodeID, e.Phase, e.Cause)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	return e.Cause
}

// NewNodeError creates a new node error.
func NewNodeError(nodeID, nodeName, kind string, phase Phase, cause error) *NodeError {
	return &NodeError{
		NodeID:   nodeID,
		NodeName: nodeName,
		Kind:     kind,
		Phase:    phase,
		Cause:    cause,
	}
}
