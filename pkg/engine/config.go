package engine

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config configures the processor.
type Config struct {
	// MaxLoopIterations bounds the iterations of a single loop visit (0 for no bound)
	MaxLoopIterations int

	// MaxLoopDuration bounds the wall time of a single loop visit (0 for no bound)
	MaxLoopDuration time.Duration

	// StopOnError stops executing the remaining siblings after a failure,
	// unless the nearest processor overrides it
	StopOnError bool

	// EnableMetrics enables metrics collection
	EnableMetrics bool

	// Logger for structured logging (nil for no logging)
	Logger *zap.Logger

	// Tracer for run and actor spans (nil for the global tracer)
	Tracer trace.Tracer
}

// DefaultConfig returns sensible defaults for the processor.
func DefaultConfig() Config {
	return Config{
		MaxLoopIterations: 10000,
		MaxLoopDuration:   time.Hour,
		StopOnError:       false,
		EnableMetrics:     true,
	}
}

// Validate validates the configuration and applies defaults.
func (c *Config) Validate() {
	if c.MaxLoopIterations < 0 {
		c.MaxLoopIterations = 0
	}
	if c.MaxLoopDuration < 0 {
		c.MaxLoopDuration = 0
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer("daedalus/engine")
	}
}

// WithMaxLoopIterations sets the loop iteration bound.
func (c Config) WithMaxLoopIterations(n int) Config {
	c.MaxLoopIterations = n
	return c
}

// WithMaxLoopDuration sets the loop duration bound.
func (c Config) WithMaxLoopDuration(d time.Duration) Config {
	c.MaxLoopDuration = d
	return c
}

// WithStopOnError sets whether to stop on the first failure.
func (c Config) WithStopOnError(stop bool) Config {
	c.StopOnError = stop
	return c
}

// WithMetrics sets whether to enable metrics.
func (c Config) WithMetrics(enable bool) Config {
	c.EnableMetrics = enable
	return c
}

// WithLogger sets the logger.
func (c Config) WithLogger(logger *zap.Logger) Config {
	c.Logger = logger
	return c
}

// WithTracer sets the tracer.
func (c Config) WithTracer(tracer trace.Tracer) Config {
	c.Tracer = tracer
	return c
}
