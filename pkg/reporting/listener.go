// Package reporting delivers run results outside the process: structured
// logs, NATS events, Sentry issues and stored run reports.
package reporting

import (
	"context"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/engine"
)

// LogListener writes every process result to a zap logger.
type LogListener struct {
	logger *zap.Logger
}

// NewLogListener creates a listener logging to logger.
func NewLogListener(logger *zap.Logger) *LogListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogListener{logger: logger}
}

func (l *LogListener) OnResult(_ context.Context, res engine.ProcessResult) {
	fields := []zap.Field{
		zap.String("run_id", res.RunID),
		zap.String("node_id", res.NodeID),
		zap.String("node", res.Path),
		zap.String("kind", res.Kind),
		zap.Duration("duration", res.Duration),
	}

	switch res.Outcome {
	case engine.OutcomeFailed:
		fields = append(fields, zap.String("phase", string(res.Phase)), zap.String("error", res.Message))
		l.logger.Warn("Component failed", fields...)
	case engine.OutcomeCancelled:
		l.logger.Info("Component cancelled", fields...)
	default:
		l.logger.Info("Component passed", fields...)
	}
}

// LogReport writes the summary of a finished run.
func LogReport(logger *zap.Logger, report *engine.RunReport) {
	if logger == nil || report == nil {
		return
	}
	fields := []zap.Field{
		zap.String("run_id", report.RunID),
		zap.String("workflow", report.Workflow),
		zap.String("outcome", string(report.Outcome)),
		zap.Int("passed", report.Passed),
		zap.Int("failed", report.Failed),
		zap.Int("cancelled", report.Cancelled),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", report.Duration),
	}
	if report.Error != "" {
		logger.Error("Run aborted", append(fields, zap.String("error", report.Error))...)
		return
	}
	if report.Outcome == engine.OutcomePassed {
		logger.Info("Run completed", fields...)
		return
	}
	logger.Warn("Run completed with failures", fields...)
}
