package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/engine"
)

// DefaultSubject is the subject prefix results are published under.
const DefaultSubject = "daedalus.results"

// MessagePublisher is the part of *nats.Conn the publisher needs.
type MessagePublisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes process results and run reports as JSON.
// Results go to <subject>.<run id>.result and reports to
// <subject>.<run id>.report.
type NATSPublisher struct {
	conn       MessagePublisher
	subject    string
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	published atomic.Int64
	failed    atomic.Int64
}

// NewNATSPublisher creates a publisher on conn. An empty subject uses DefaultSubject.
func NewNATSPublisher(conn MessagePublisher, subject string, logger *zap.Logger) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{
		conn:       conn,
		subject:    subject,
		maxRetries: 3,
		retryDelay: time.Second,
		logger:     logger,
	}
}

// WithRetry sets how many times a failed publish is retried and the delay between tries.
func (p *NATSPublisher) WithRetry(maxRetries int, delay time.Duration) *NATSPublisher {
	if maxRetries < 0 {
		maxRetries = 0
	}
	p.maxRetries = maxRetries
	p.retryDelay = delay
	return p
}

// ResultSubject returns the subject results of runID are published to.
func (p *NATSPublisher) ResultSubject(runID string) string {
	return fmt.Sprintf("%s.%s.result", p.subject, runID)
}

// ReportSubject returns the subject the report of runID is published to.
func (p *NATSPublisher) ReportSubject(runID string) string {
	return fmt.Sprintf("%s.%s.report", p.subject, runID)
}

// OnResult publishes res. Failures are logged and counted; they never fail the run.
func (p *NATSPublisher) OnResult(ctx context.Context, res engine.ProcessResult) {
	data, err := json.Marshal(res)
	if err != nil {
		p.failed.Add(1)
		p.logger.Error("Failed to encode process result", zap.String("node_id", res.NodeID), zap.Error(err))
		return
	}
	if err := p.publish(ctx, p.ResultSubject(res.RunID), data); err != nil {
		p.failed.Add(1)
		p.logger.Error("Failed to publish process result",
			zap.String("run_id", res.RunID),
			zap.String("node_id", res.NodeID),
			zap.Error(err))
	}
}

// PublishReport publishes a finished run's report.
func (p *NATSPublisher) PublishReport(ctx context.Context, report *engine.RunReport) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}
	if err := p.publish(ctx, p.ReportSubject(report.RunID), data); err != nil {
		p.failed.Add(1)
		return err
	}
	return nil
}

// Published returns the number of messages published.
func (p *NATSPublisher) Published() int64 { return p.published.Load() }

// Failed returns the number of messages that could not be published.
func (p *NATSPublisher) Failed() int64 { return p.failed.Load() }

func (p *NATSPublisher) publish(ctx context.Context, subject string, data []byte) error {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("publish to %s cancelled: %w", subject, ctx.Err())
			case <-time.After(p.retryDelay):
			}
			p.logger.Debug("Retrying publish", zap.String("subject", subject), zap.Int("attempt", attempt+1))
		}
		if lastErr = p.conn.Publish(subject, data); lastErr == nil {
			p.published.Add(1)
			return nil
		}
	}
	return fmt.Errorf("publish to %s failed after %d attempts: %w", subject, p.maxRetries+1, lastErr)
}
