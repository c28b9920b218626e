// Package engine executes a workflow tree.
//
// A Processor walks the tree depth-first in pre-order, visiting only enabled
// components. Each visited component is validated, its arguments are
// resolved, and, depending on the capabilities it implements, it acts,
// publishes data, starts a service for its subtree, selects a branch, or
// repeats its body as a loop. Every actor invocation produces a
// ProcessResult that is delivered to listeners and collected into the
// RunReport returned by Run.
//
// Failures of individual components are recorded and aggregated by the
// nearest EntityProcessor ancestors; a misconfigured component fails like
// any other. Only cancellation and a Break outside every loop abort the
// whole run.
package engine
