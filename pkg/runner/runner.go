// Package runner executes batches of independent workflows concurrently,
// bounded by a limiter and guarded by a circuit breaker.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/entity"
)

// Job is one workflow of a batch. Every job must own its tree.
type Job struct {
	Name string
	Root entity.Component
	Env  engine.Environment
}

// Result is the outcome of one job.
type Result struct {
	Job    string
	Report *engine.RunReport
	Err    error

	// Rejected is set when the circuit breaker refused to start the job
	Rejected bool
}

// Passed reports whether the job ran and passed.
func (r Result) Passed() bool {
	return r.Err == nil && r.Report != nil && r.Report.Outcome == engine.OutcomePassed
}

// Config configures a BatchRunner.
type Config struct {
	// MaxConcurrent is the number of workflows run at once
	MaxConcurrent int

	// RunTimeout bounds each workflow run (0 for no bound)
	RunTimeout time.Duration

	// FailureThreshold is the number of consecutive failed runs that opens the breaker
	FailureThreshold int64

	// ResetTimeout is how long the breaker stays open before probing again
	ResetTimeout time.Duration

	// StopOnAbort cancels the rest of the batch when a run is aborted
	StopOnAbort bool

	Logger *zap.Logger
	Tracer trace.Tracer
}

// DefaultConfig returns defaults sized to the available CPUs.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:    runtime.GOMAXPROCS(0),
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// Validate applies defaults to unset fields.
func (c *Config) Validate() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = runtime.GOMAXPROCS(0)
	}
	if c.RunTimeout < 0 {
		c.RunTimeout = 0
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer("daedalus/runner")
	}
}

// BatchRunner runs jobs on a shared processor.
type BatchRunner struct {
	processor  *engine.Processor
	config     Config
	limiter    *Limiter
	breaker    *CircuitBreaker
	logger     *zap.Logger
	tracer     trace.Tracer
	onComplete func(ctx context.Context, res Result)
}

// NewBatchRunner creates a runner executing jobs with processor.
func NewBatchRunner(processor *engine.Processor, config Config) (*BatchRunner, error) {
	if processor == nil {
		return nil, errors.New("processor cannot be nil")
	}
	config.Validate()

	breaker := NewCircuitBreaker(config.FailureThreshold, config.ResetTimeout)
	return &BatchRunner{
		processor: processor,
		config:    config,
		limiter:   NewLimiter(config.MaxConcurrent, breaker),
		breaker:   breaker,
		logger:    config.Logger,
		tracer:    config.Tracer,
	}, nil
}

// OnComplete registers fn to be called as each job finishes, from the job's goroutine.
func (b *BatchRunner) OnComplete(fn func(ctx context.Context, res Result)) *BatchRunner {
	b.onComplete = fn
	return b
}

// Limiter returns the runner's limiter.
func (b *BatchRunner) Limiter() *Limiter {
	return b.limiter
}

// Breaker returns the runner's circuit breaker.
func (b *BatchRunner) Breaker() *CircuitBreaker {
	return b.breaker
}

// Run executes jobs and returns their results in job order. The error is
// non-nil only when StopOnAbort cancelled the batch or ctx ended.
func (b *BatchRunner) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	ctx, span := b.tracer.Start(ctx, "runner.Batch",
		trace.WithAttributes(attribute.Int("batch.jobs", len(jobs))))
	defer span.End()

	results := make([]Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		g.Go(func() error {
			res := b.runJob(gctx, job)
			results[i] = res
			if b.onComplete != nil {
				b.onComplete(gctx, res)
			}
			if b.config.StopOnAbort && res.Err != nil && !res.Rejected {
				return fmt.Errorf("workflow %s aborted: %w", job.Name, res.Err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	passed := 0
	for _, res := range results {
		if res.Passed() {
			passed++
		}
	}
	b.logger.Info("Batch finished",
		zap.Int("jobs", len(jobs)),
		zap.Int("passed", passed),
		zap.String("breaker", b.breaker.GetState().String()))
	return results, err
}

func (b *BatchRunner) runJob(ctx context.Context, job Job) Result {
	ctx, span := b.tracer.Start(ctx, "runner.Job",
		trace.WithAttributes(attribute.String("job.name", job.Name)))
	defer span.End()

	if err := b.limiter.Acquire(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		b.logger.Warn("Workflow not started", zap.String("job", job.Name), zap.Error(err))
		return Result{Job: job.Name, Err: err, Rejected: errors.Is(err, ErrCircuitOpen)}
	}
	defer b.limiter.Release()

	runCtx := ctx
	if b.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, b.config.RunTimeout)
		defer cancel()
	}

	b.logger.Debug("Workflow started", zap.String("job", job.Name))
	report, err := b.processor.Run(runCtx, job.Root, job.Env)
	res := Result{Job: job.Name, Report: report, Err: err}

	// a batch being cancelled says nothing about the workflow's health
	if ctx.Err() == nil {
		b.limiter.Record(res.Passed())
	}

	if report != nil {
		span.SetAttributes(
			attribute.String("run.id", report.RunID),
			attribute.String("run.outcome", string(report.Outcome)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.Error("Workflow aborted", zap.String("job", job.Name), zap.Error(err))
		return res
	}
	span.SetStatus(codes.Ok, "")
	return res
}
