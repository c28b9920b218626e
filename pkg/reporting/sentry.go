package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/engine"
)

// SentryConfig configures the Sentry reporter.
type SentryConfig struct {
	// DSN of the Sentry project; empty disables delivery
	DSN string

	Environment string
	Release     string

	// SampleRate is the fraction of failures sent, in (0, 1]
	SampleRate float64

	// FlushTimeout bounds Flush
	FlushTimeout time.Duration

	Debug bool
}

// DefaultSentryConfig returns defaults for the Sentry reporter.
func DefaultSentryConfig() SentryConfig {
	return SentryConfig{
		Environment:  "development",
		SampleRate:   1.0,
		FlushTimeout: 5 * time.Second,
	}
}

// SentryReporter captures failed components and aborted runs as Sentry events.
// Every capture goes through a clone of the reporter's hub, so concurrent
// runs never push onto a shared scope stack.
type SentryReporter struct {
	hub          *sentry.Hub
	flushTimeout time.Duration
	logger       *zap.Logger
}

// NewSentryReporter creates a reporter with a client built from config.
func NewSentryReporter(config SentryConfig, logger *zap.Logger) (*SentryReporter, error) {
	if config.SampleRate <= 0 || config.SampleRate > 1 {
		config.SampleRate = 1.0
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         config.DSN,
		Environment: config.Environment,
		Release:     config.Release,
		SampleRate:  config.SampleRate,
		Debug:       config.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}
	r := NewSentryReporterWithHub(sentry.NewHub(client, sentry.NewScope()), logger)
	if config.FlushTimeout > 0 {
		r.flushTimeout = config.FlushTimeout
	}
	return r, nil
}

// NewSentryReporterWithHub creates a reporter capturing through hub.
func NewSentryReporterWithHub(hub *sentry.Hub, logger *zap.Logger) *SentryReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SentryReporter{hub: hub, flushTimeout: 5 * time.Second, logger: logger}
}

// OnResult captures failed results. Passed and cancelled results are ignored.
func (r *SentryReporter) OnResult(_ context.Context, res engine.ProcessResult) {
	if res.Outcome != engine.OutcomeFailed {
		return
	}
	err := res.Err
	if err == nil {
		err = errors.New(res.Message)
	}

	hub := r.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("run_id", res.RunID)
		scope.SetTag("node_id", res.NodeID)
		scope.SetTag("kind", res.Kind)
		scope.SetTag("phase", string(res.Phase))
		scope.SetContext("component", sentry.Context{
			"name":     res.NodeName,
			"path":     res.Path,
			"duration": res.Duration.String(),
		})
	})
	if id := hub.CaptureException(err); id != nil {
		r.logger.Debug("Captured component failure",
			zap.String("event_id", string(*id)),
			zap.String("node_id", res.NodeID))
	}
}

// CaptureReport captures an aborted run. Runs that completed are ignored.
func (r *SentryReporter) CaptureReport(report *engine.RunReport) {
	if report == nil || report.Error == "" {
		return
	}
	hub := r.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("run_id", report.RunID)
		scope.SetTag("workflow", report.Workflow)
		scope.SetTag("outcome", string(report.Outcome))
		scope.SetLevel(sentry.LevelFatal)
	})
	hub.CaptureMessage(fmt.Sprintf("run of %s aborted: %s", report.Workflow, report.Error))
}

// Flush waits for queued events to be delivered.
func (r *SentryReporter) Flush() bool {
	ok := r.hub.Flush(r.flushTimeout)
	if !ok {
		r.logger.Warn("Sentry flush timed out", zap.Duration("timeout", r.flushTimeout))
	}
	return ok
}
