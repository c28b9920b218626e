package engine

import (
	"sync/atomic"
	"time"
)

// Metrics holds processing metrics for observability.
type Metrics struct {
	// TotalActed is the count of actor invocations that passed
	TotalActed int64 `json:"total_acted"`
	// TotalErrors is the count of failed components
	TotalErrors int64 `json:"total_errors"`
	// TotalSkipped is the count of disabled components that were skipped
	TotalSkipped int64 `json:"total_skipped"`
	// TotalIterations is the count of loop iterations started
	TotalIterations int64 `json:"total_iterations"`
	// ProcessingTimeNs is the total actor time in nanoseconds
	ProcessingTimeNs int64 `json:"processing_time_ns"`
}

// MetricsCollector collects processing metrics.
type MetricsCollector interface {
	// RecordActed records a passed actor invocation
	RecordActed(durationNs int64)
	// RecordError records a failed component
	RecordError()
	// RecordSkipped records a skipped component
	RecordSkipped()
	// RecordIteration records a started loop iteration
	RecordIteration()
	// GetMetrics returns the current metrics
	GetMetrics() Metrics
	// Reset resets all metrics
	Reset()
}

// DefaultMetricsCollector is a thread-safe implementation of MetricsCollector.
type DefaultMetricsCollector struct {
	acted            atomic.Int64
	errors           atomic.Int64
	skipped          atomic.Int64
	iterations       atomic.Int64
	totalProcessTime atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *DefaultMetricsCollector {
	return &DefaultMetricsCollector{}
}

func (m *DefaultMetricsCollector) RecordActed(durationNs int64) {
	m.acted.Add(1)
	m.totalProcessTime.Add(durationNs)
}

func (m *DefaultMetricsCollector) RecordError() {
	m.errors.Add(1)
}

func (m *DefaultMetricsCollector) RecordSkipped() {
	m.skipped.Add(1)
}

func (m *DefaultMetricsCollector) RecordIteration() {
	m.iterations.Add(1)
}

// GetMetrics returns the current metrics.
func (m *DefaultMetricsCollector) GetMetrics() Metrics {
	return Metrics{
		TotalActed:       m.acted.Load(),
		TotalErrors:      m.errors.Load(),
		TotalSkipped:     m.skipped.Load(),
		TotalIterations:  m.iterations.Load(),
		ProcessingTimeNs: m.totalProcessTime.Load(),
	}
}

// Reset resets all metrics.
func (m *DefaultMetricsCollector) Reset() {
	m.acted.Store(0)
	m.errors.Store(0)
	m.skipped.Store(0)
	m.iterations.Store(0)
	m.totalProcessTime.Store(0)
}

// AverageActTime returns the average time per passed actor invocation.
func (m *DefaultMetricsCollector) AverageActTime() time.Duration {
	acted := m.acted.Load()
	if acted == 0 {
		return 0
	}
	return time.Duration(m.totalProcessTime.Load() / acted)
}

// ErrorRate returns the error rate as a percentage.
func (m *DefaultMetricsCollector) ErrorRate() float64 {
	acted := m.acted.Load()
	errors := m.errors.Load()
	total := acted + errors
	if total == 0 {
		return 0
	}
	return float64(errors) / float64(total) * 100
}

var _ MetricsCollector = (*DefaultMetricsCollector)(nil)

// NoOpMetricsCollector is a metrics collector that does nothing.
type NoOpMetricsCollector struct{}

func (m *NoOpMetricsCollector) RecordActed(durationNs int64) {}
func (m *NoOpMetricsCollector) RecordError()                 {}
func (m *NoOpMetricsCollector) RecordSkipped()               {}
func (m *NoOpMetricsCollector) RecordIteration()             {}
func (m *NoOpMetricsCollector) GetMetrics() Metrics          { return Metrics{} }
func (m *NoOpMetricsCollector) Reset()                       {}

var _ MetricsCollector = (*NoOpMetricsCollector)(nil)

// runMetrics feeds the processor-wide collector and a collector that belongs
// to a single run. GetMetrics and Reset act on the run's collector only.
type runMetrics struct {
	processor MetricsCollector
	run       MetricsCollector
}

func newRunMetrics(processor MetricsCollector, enabled bool) *runMetrics {
	var run MetricsCollector = &NoOpMetricsCollector{}
	if enabled {
		run = NewMetricsCollector()
	}
	return &runMetrics{processor: processor, run: run}
}

func (m *runMetrics) RecordActed(durationNs int64) {
	m.processor.RecordActed(durationNs)
	m.run.RecordActed(durationNs)
}

func (m *runMetrics) RecordError() {
	m.processor.RecordError()
	m.run.RecordError()
}

func (m *runMetrics) RecordSkipped() {
	m.processor.RecordSkipped()
	m.run.RecordSkipped()
}

func (m *runMetrics) RecordIteration() {
	m.processor.RecordIteration()
	m.run.RecordIteration()
}

func (m *runMetrics) GetMetrics() Metrics { return m.run.GetMetrics() }
func (m *runMetrics) Reset()              { m.run.Reset() }

var _ MetricsCollector = (*runMetrics)(nil)
