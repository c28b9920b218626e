package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/argument"
	"github.com/wehubfusion/Daedalus/pkg/control"
	"github.com/wehubfusion/Daedalus/pkg/entity"
	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/scripting"
)

// Processor executes workflow trees. A Processor may run several
// independent trees concurrently; each Run owns its own RunContext.
type Processor struct {
	config  Config
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics MetricsCollector

	mu        sync.RWMutex
	listeners []Listener
}

// NewProcessor creates a processor.
func NewProcessor(config Config) *Processor {
	config.Validate()

	var metrics MetricsCollector = &NoOpMetricsCollector{}
	if config.EnableMetrics {
		metrics = NewMetricsCollector()
	}

	return &Processor{
		config:  config,
		logger:  config.Logger,
		tracer:  config.Tracer,
		metrics: metrics,
	}
}

// Config returns the effective configuration.
func (p *Processor) Config() Config {
	return p.config
}

// AddListener registers a listener for every run of this processor.
func (p *Processor) AddListener(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

// Metrics returns the processor's metrics accumulated over all runs.
func (p *Processor) Metrics() Metrics {
	return p.metrics.GetMetrics()
}

// Run executes the tree rooted at root. Component failures are reported in
// the RunReport and do not produce an error; the returned error is non-nil
// only when the run is aborted: a nil root, a Break outside any loop, or
// cancellation.
func (p *Processor) Run(ctx context.Context, root entity.Component, env Environment) (*RunReport, error) {
	if root == nil {
		return nil, derrors.NewConfigurationError("workflow root is not set", nil)
	}

	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID), zap.String("workflow", root.Name()))

	ctx, span := p.tracer.Start(ctx, "engine.Run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("workflow.name", root.Name()),
			attribute.String("workflow.id", root.ID()),
		))
	defer span.End()

	entity.ResolveAll(root)
	entity.ResetHierarchy(root)

	rc := &RunContext{
		RunID:   runID,
		Logger:  logger,
		Tracer:  p.tracer,
		Devices: env.Devices.WithDefaults(),
		Model:   env.Model,
		Globals: env.Globals,
	}
	if rc.Model == nil {
		rc.Model = make(map[string]any)
	}

	var evaluator argument.ScriptEvaluator
	if env.Scripts != nil {
		session, err := env.Scripts.NewSession()
		if err != nil {
			return nil, fmt.Errorf("failed to open script session: %w", err)
		}
		defer session.Close()
		rc.scripts = session
		rc.expressions = env.Scripts.Expressions()
		evaluator = session
	} else {
		rc.expressions = scripting.NewExpressions()
	}
	rc.arguments = argument.NewResolver(evaluator, logger)

	clock := env.Clock
	if clock == nil {
		clock = control.SystemClock{}
	}
	rc.Clock = clock
	rc.Controls = control.NewResolver(rc.Devices.Lookup,
		control.WithClock(clock),
		control.WithLogger(logger.Named("control")))

	p.mu.RLock()
	listeners := append(append([]Listener(nil), p.listeners...), env.Listeners...)
	p.mu.RUnlock()

	rs := &runState{
		p:         p,
		rc:        rc,
		metrics:   newRunMetrics(p.metrics, p.config.EnableMetrics),
		clock:     clock,
		listeners: listeners,
		report: &RunReport{
			RunID:     runID,
			Workflow:  root.Name(),
			StartedAt: time.Now(),
			Results:   []ProcessResult{},
		},
	}

	logger.Info("Run started")
	ok, err := rs.visit(ctx, root)

	report := rs.report
	report.Duration = time.Since(report.StartedAt)
	report.Processors = summarize(root)
	report.Metrics = rs.metrics.GetMetrics()

	switch {
	case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
		report.Outcome = OutcomeCancelled
	case err != nil || !ok:
		report.Outcome = OutcomeFailed
	default:
		report.Outcome = OutcomePassed
	}
	span.SetAttributes(attribute.String("run.outcome", string(report.Outcome)))

	if err != nil {
		report.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Run aborted",
			zap.String("outcome", string(report.Outcome)),
			zap.Duration("duration", report.Duration),
			zap.Error(err))
		return report, err
	}

	span.SetStatus(codes.Ok, "")
	logger.Info("Run finished",
		zap.String("outcome", string(report.Outcome)),
		zap.Int("passed", report.Passed),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// runState is the traversal state of one run.
type runState struct {
	p         *Processor
	rc        *RunContext
	metrics   *runMetrics
	clock     control.Clock
	listeners []Listener
	report    *RunReport
}

// visit processes one component. ok is false when the component failed; err
// is non-nil when the run must stop.
func (rs *runState) visit(ctx context.Context, c entity.Component) (ok bool, err error) {
	if !c.IsEnabled() {
		rs.metrics.RecordSkipped()
		rs.report.Skipped++
		rs.rc.Logger.Debug("Skipping disabled component",
			zap.String("node_id", c.ID()),
			zap.String("node_name", c.Name()))
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	prev := rs.rc.current
	rs.rc.current = c
	defer func() { rs.rc.current = prev }()

	started := time.Now()
	if err := c.Validate(); err != nil {
		return rs.fail(ctx, c, PhaseValidate, err, started)
	}

	switch n := c.(type) {
	case Service:
		return rs.runService(ctx, n)
	case Loop:
		return rs.runLoop(ctx, n)
	case BranchSelector:
		return rs.runBranch(ctx, n)
	case Actor:
		return rs.act(ctx, n)
	case DataComponent:
		return rs.publish(ctx, n)
	}

	if e, isEntity := entity.AsEntity(c); isEntity {
		return rs.runChildren(ctx, e, e.Children())
	}
	return true, nil
}

// runChildren visits children in order. It stops early when the stop policy
// applies to a failure or when the innermost loop has been asked to exit.
func (rs *runState) runChildren(ctx context.Context, owner *entity.Entity, children []entity.Component) (bool, error) {
	ok := true
	for _, child := range children {
		childOK, err := rs.visit(ctx, child)
		if err != nil {
			return false, err
		}
		if !childOK {
			ok = false
			if rs.stopOnError(owner) {
				return false, nil
			}
		}
		if rs.rc.exitRequested() {
			break
		}
	}
	return ok, nil
}

func (rs *runState) act(ctx context.Context, a Actor) (bool, error) {
	started := time.Now()
	ctx, span := rs.p.tracer.Start(ctx, "engine.Act",
		trace.WithAttributes(
			attribute.String("node.id", a.ID()),
			attribute.String("node.name", a.Name()),
			attribute.String("node.kind", a.Kind()),
		))
	defer span.End()

	if b, ok := a.(ArgumentBinder); ok {
		if err := b.ResolveArguments(ctx, rs.rc); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return rs.fail(ctx, a, PhaseArguments, err, started)
		}
	}

	rs.rc.Logger.Debug("Acting",
		zap.String("node_id", a.ID()),
		zap.String("node_name", a.Name()),
		zap.String("kind", a.Kind()))

	if err := a.Act(ctx, rs.rc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return rs.fail(ctx, a, PhaseAct, err, started)
	}

	duration := time.Since(started)
	rs.metrics.RecordActed(duration.Nanoseconds())
	span.SetAttributes(attribute.String("node.outcome", string(OutcomePassed)))
	span.SetStatus(codes.Ok, "")

	rs.emit(ctx, a, ProcessResult{
		Success:   true,
		Outcome:   OutcomePassed,
		StartedAt: started,
		Duration:  duration,
	})
	return true, nil
}

func (rs *runState) publish(ctx context.Context, d DataComponent) (bool, error) {
	started := time.Now()
	if err := d.Publish(ctx, rs.rc); err != nil {
		return rs.fail(ctx, d, PhaseData, err, started)
	}
	return true, nil
}

func (rs *runState) runService(ctx context.Context, s Service) (bool, error) {
	started := time.Now()
	if err := s.Start(ctx, rs.rc); err != nil {
		return rs.fail(ctx, s, PhaseService, err, started)
	}

	body := s.AsEntity()
	ok, err := rs.runChildren(ctx, body, body.Children())

	if stopErr := s.Stop(context.WithoutCancel(ctx), rs.rc); stopErr != nil {
		stopOK, failErr := rs.fail(ctx, s, PhaseService, stopErr, started)
		ok = ok && stopOK
		if err == nil {
			err = failErr
		}
	}
	return ok, err
}

func (rs *runState) runBranch(ctx context.Context, b BranchSelector) (bool, error) {
	started := time.Now()
	children, err := b.SelectBranch(ctx, rs.rc)
	if err != nil {
		return rs.fail(ctx, b, PhaseBranch, err, started)
	}
	return rs.runChildren(ctx, b.AsEntity(), children)
}

// fail records a component failure. Cancellation and a loop exit with no
// enclosing loop are returned as run-stopping errors; any other cause fails
// only c.
func (rs *runState) fail(ctx context.Context, c entity.Component, phase Phase, cause error, started time.Time) (bool, error) {
	nodeErr := NewNodeError(c.ID(), c.Name(), c.Kind(), phase, cause)

	outcome := OutcomeFailed
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(cause, ctxErr) {
		outcome = OutcomeCancelled
	}

	rs.emit(ctx, c, ProcessResult{
		Success:   false,
		Outcome:   outcome,
		Phase:     phase,
		Message:   nodeErr.Error(),
		Err:       nodeErr,
		StartedAt: started,
		Duration:  time.Since(started),
	})

	fields := []zap.Field{
		zap.String("node_id", c.ID()),
		zap.String("node_name", c.Name()),
		zap.String("kind", c.Kind()),
		zap.String("phase", string(phase)),
		zap.Error(cause),
	}

	if outcome == OutcomeCancelled {
		rs.rc.Logger.Info("Component cancelled", fields...)
		return false, nodeErr
	}

	rs.metrics.RecordError()
	if isFatal(cause) {
		rs.rc.Logger.Error("Run aborted by component", fields...)
		return false, nodeErr
	}
	if derrors.IsConfiguration(cause) {
		rs.rc.Logger.Error("Component misconfigured", fields...)
		return false, nil
	}
	rs.rc.Logger.Warn("Component failed", fields...)
	return false, nil
}

// emit completes res for c, feeds processor aggregates and notifies listeners.
func (rs *runState) emit(ctx context.Context, c entity.Component, res ProcessResult) {
	res.RunID = rs.rc.RunID
	res.NodeID = c.ID()
	res.NodeName = c.Name()
	res.Kind = c.Kind()
	res.Path = entity.PathOf(c)

	rs.report.add(res)

	if ep, ok := entity.Self(c).(EntityProcessor); ok {
		ep.RecordResult(res.Success)
	}
	for _, a := range entity.Ancestors(c) {
		if ep, ok := a.(EntityProcessor); ok {
			ep.RecordResult(res.Success)
		}
	}

	for _, l := range rs.listeners {
		l.OnResult(ctx, res)
	}
}

// stopOnError resolves the stop policy for failures among owner's children.
func (rs *runState) stopOnError(owner *entity.Entity) bool {
	for c := owner.Self(); c != nil; {
		if ep, ok := c.(ErrorPolicy); ok {
			switch ep.OnError() {
			case ErrorModeStop:
				return true
			case ErrorModeContinue:
				return false
			}
		}
		o := c.Owner()
		if o == nil {
			break
		}
		c = o.Self()
	}
	return rs.p.config.StopOnError
}

func summarize(root entity.Component) []ProcessorSummary {
	var out []ProcessorSummary
	entity.Walk(root, func(c entity.Component) bool {
		if ep, ok := c.(EntityProcessor); ok {
			out = append(out, ProcessorSummary{
				NodeID:   ep.ID(),
				NodeName: ep.Name(),
				Kind:     ep.Kind(),
				Passed:   ep.Passed(),
				Results:  ep.ResultCount(),
			})
		}
		return true
	})
	return out
}
