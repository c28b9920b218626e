package engine

import (
	"context"
	"sync"
	"time"
)

// Outcome is the result class of a component visit or a run.
type Outcome string

const (
	OutcomePassed    Outcome = "passed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeSkipped   Outcome = "skipped"
)

// ProcessResult describes one actor invocation, or the failure of a
// structural component.
type ProcessResult struct {
	RunID     string        `json:"run_id"`
	NodeID    string        `json:"node_id"`
	NodeName  string        `json:"node_name"`
	Kind      string        `json:"kind"`
	Path      string        `json:"path"`
	Success   bool          `json:"success"`
	Outcome   Outcome       `json:"outcome"`
	Phase     Phase         `json:"phase,omitempty"`
	Message   string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	// Err is the failure, if any
	Err error `json:"-"`
}

// Listener receives process results as they happen.
type Listener interface {
	OnResult(ctx context.Context, result ProcessResult)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, result ProcessResult)

func (f ListenerFunc) OnResult(ctx context.Context, result ProcessResult) { f(ctx, result) }

// Recorder is a Listener that keeps every result in memory.
type Recorder struct {
	mu      sync.Mutex
	results []ProcessResult
}

func (r *Recorder) OnResult(_ context.Context, result ProcessResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

// Results returns the recorded results in order.
func (r *Recorder) Results() []ProcessResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ProcessResult(nil), r.results...)
}

// Names returns the node names of the recorded results in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.results))
	for i, res := range r.results {
		names[i] = res.NodeName
	}
	return names
}

// ProcessorSummary is the aggregate result of an EntityProcessor.
type ProcessorSummary struct {
	NodeID   string `json:"node_id"`
	NodeName string `json:"node_name"`
	Kind     string `json:"kind"`
	Passed   bool   `json:"passed"`
	Results  int    `json:"results"`
}

// RunReport summarizes a run.
type RunReport struct {
	RunID      string             `json:"run_id"`
	Workflow   string             `json:"workflow"`
	Outcome    Outcome            `json:"outcome"`
	StartedAt  time.Time          `json:"started_at"`
	Duration   time.Duration      `json:"duration"`
	Passed     int                `json:"passed"`
	Failed     int                `json:"failed"`
	Cancelled  int                `json:"cancelled"`
	Skipped    int                `json:"skipped"`
	Results    []ProcessResult    `json:"results"`
	Processors []ProcessorSummary `json:"processors,omitempty"`
	// Metrics counts this run only; Processor.Metrics has the totals.
	Metrics Metrics `json:"metrics"`
	Error      string             `json:"error,omitempty"`
}

func (r *RunReport) add(result ProcessResult) {
	r.Results = append(r.Results, result)
	switch result.Outcome {
	case OutcomePassed:
		r.Passed++
	case OutcomeFailed:
		r.Failed++
	case OutcomeCancelled:
		r.Cancelled++
	}
}

// Failures returns the failed results.
func (r *RunReport) Failures() []ProcessResult {
	var out []ProcessResult
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}
