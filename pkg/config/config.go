// Package config loads the application configuration from a file and
// DAEDALUS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	natsconn "github.com/wehubfusion/Daedalus/internal/nats"
	"github.com/wehubfusion/Daedalus/internal/tracing"
	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/reporting"
	"github.com/wehubfusion/Daedalus/pkg/runner"
	"github.com/wehubfusion/Daedalus/pkg/scripting"
)

// EnvPrefix prefixes every environment override, e.g. DAEDALUS_NATS_URL.
const EnvPrefix = "DAEDALUS"

// Config is the complete application configuration.
type Config struct {
	Engine    EngineConfig     `mapstructure:"engine"`
	Scripting scripting.Config `mapstructure:"scripting"`
	Paths     PathsConfig      `mapstructure:"paths"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Tracing   tracing.Config   `mapstructure:"tracing"`
	NATS      NATSConfig       `mapstructure:"nats"`
	Sentry    SentryConfig     `mapstructure:"sentry"`
	Blob      BlobConfig       `mapstructure:"blob"`
	Batch     BatchConfig      `mapstructure:"batch"`
}

// EngineConfig configures the workflow processor.
type EngineConfig struct {
	MaxLoopIterations int           `mapstructure:"max_loop_iterations"`
	MaxLoopDuration   time.Duration `mapstructure:"max_loop_duration"`
	StopOnError       bool          `mapstructure:"stop_on_error"`
	EnableMetrics     bool          `mapstructure:"enable_metrics"`
}

// PathsConfig locates workflow files, scripts and local reports.
type PathsConfig struct {
	WorkingDir string `mapstructure:"working_dir"`
	ScriptsDir string `mapstructure:"scripts_dir"`
	ReportsDir string `mapstructure:"reports_dir"`
}

// LoggingConfig selects the zap logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Encoding    string `mapstructure:"encoding"`
}

// NATSConfig configures result publishing.
type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	Subject       string        `mapstructure:"subject"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Token         string        `mapstructure:"token"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	MaxRetries    int           `mapstructure:"publish_max_retries"`
}

// SentryConfig configures failure capture. An empty DSN disables it.
type SentryConfig struct {
	DSN          string        `mapstructure:"dsn"`
	Environment  string        `mapstructure:"environment"`
	Release      string        `mapstructure:"release"`
	SampleRate   float64       `mapstructure:"sample_rate"`
	FlushTimeout time.Duration `mapstructure:"flush_timeout"`
	Debug        bool          `mapstructure:"debug"`
}

// BlobConfig configures report upload. An empty connection string disables it.
type BlobConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	Container        string `mapstructure:"container"`
}

// BatchConfig configures the batch runner.
type BatchConfig struct {
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	RunTimeout       time.Duration `mapstructure:"run_timeout"`
	FailureThreshold int64         `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
	StopOnAbort      bool          `mapstructure:"stop_on_abort"`
}

func setDefaults(v *viper.Viper) {
	ec := engine.DefaultConfig()
	v.SetDefault("engine.max_loop_iterations", ec.MaxLoopIterations)
	v.SetDefault("engine.max_loop_duration", ec.MaxLoopDuration)
	v.SetDefault("engine.stop_on_error", ec.StopOnError)
	v.SetDefault("engine.enable_metrics", ec.EnableMetrics)

	sc := scripting.DefaultConfig()
	v.SetDefault("scripting.scripts_dir", sc.ScriptsDir)
	v.SetDefault("scripting.timeout", sc.Timeout)
	v.SetDefault("scripting.security_level", sc.SecurityLevel)
	v.SetDefault("scripting.references", sc.References)
	v.SetDefault("scripting.pool_size", sc.PoolSize)
	v.SetDefault("scripting.max_reuse_count", sc.MaxReuseCount)

	v.SetDefault("paths.working_dir", "")
	v.SetDefault("paths.scripts_dir", "scripts")
	v.SetDefault("paths.reports_dir", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.encoding", "json")

	tc := tracing.DefaultConfig("daedalus")
	v.SetDefault("tracing.enabled", tc.Enabled)
	v.SetDefault("tracing.service_name", tc.ServiceName)
	v.SetDefault("tracing.service_version", tc.ServiceVersion)
	v.SetDefault("tracing.environment", tc.Environment)
	v.SetDefault("tracing.otlp_endpoint", tc.OTLPEndpoint)
	v.SetDefault("tracing.insecure", tc.Insecure)
	v.SetDefault("tracing.sample_ratio", tc.SampleRatio)

	nc := natsconn.DefaultConnectionConfig("nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", nc.URL)
	v.SetDefault("nats.name", nc.Name)
	v.SetDefault("nats.subject", reporting.DefaultSubject)
	v.SetDefault("nats.max_reconnects", nc.MaxReconnects)
	v.SetDefault("nats.reconnect_wait", nc.ReconnectWait)
	v.SetDefault("nats.timeout", nc.Timeout)
	v.SetDefault("nats.token", "")
	v.SetDefault("nats.username", "")
	v.SetDefault("nats.password", "")
	v.SetDefault("nats.publish_max_retries", 3)

	sentry := reporting.DefaultSentryConfig()
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", sentry.Environment)
	v.SetDefault("sentry.release", "")
	v.SetDefault("sentry.sample_rate", sentry.SampleRate)
	v.SetDefault("sentry.flush_timeout", sentry.FlushTimeout)
	v.SetDefault("sentry.debug", false)

	v.SetDefault("blob.connection_string", "")
	v.SetDefault("blob.container", "daedalus-reports")

	bc := runner.DefaultConfig()
	v.SetDefault("batch.max_concurrent", bc.MaxConcurrent)
	v.SetDefault("batch.run_timeout", bc.RunTimeout)
	v.SetDefault("batch.failure_threshold", bc.FailureThreshold)
	v.SetDefault("batch.reset_timeout", bc.ResetTimeout)
	v.SetDefault("batch.stop_on_abort", bc.StopOnAbort)
}

// New returns a viper instance carrying the defaults and environment
// bindings. Callers may bind command flags to it before Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. An explicit path must exist; without one,
// daedalus.{yaml,toml,json} is looked up in the working directory and a
// missing file leaves the defaults in place.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = New()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("daedalus")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the configuration and fills derived defaults.
func (c *Config) Validate() error {
	c.Scripting.ApplyDefaults()
	if err := c.Scripting.Validate(); err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Engine.MaxLoopIterations < 0 {
		return fmt.Errorf("engine: max_loop_iterations must not be negative")
	}
	if c.Batch.MaxConcurrent < 0 {
		return fmt.Errorf("batch: max_concurrent must not be negative")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats: url is required when enabled")
	}
	if c.Blob.ConnectionString != "" && c.Blob.Container == "" {
		return fmt.Errorf("blob: container is required")
	}
	return nil
}

// EngineConfig returns the processor configuration.
func (c *Config) EngineConfig(logger *zap.Logger) engine.Config {
	return engine.DefaultConfig().
		WithMaxLoopIterations(c.Engine.MaxLoopIterations).
		WithMaxLoopDuration(c.Engine.MaxLoopDuration).
		WithStopOnError(c.Engine.StopOnError).
		WithMetrics(c.Engine.EnableMetrics).
		WithLogger(logger)
}

// RunnerConfig returns the batch runner configuration.
func (c *Config) RunnerConfig(logger *zap.Logger) runner.Config {
	return runner.Config{
		MaxConcurrent:    c.Batch.MaxConcurrent,
		RunTimeout:       c.Batch.RunTimeout,
		FailureThreshold: c.Batch.FailureThreshold,
		ResetTimeout:     c.Batch.ResetTimeout,
		StopOnAbort:      c.Batch.StopOnAbort,
		Logger:           logger,
	}
}

// SentryConfig returns the Sentry reporter configuration.
func (c *Config) SentryConfig() reporting.SentryConfig {
	return reporting.SentryConfig{
		DSN:          c.Sentry.DSN,
		Environment:  c.Sentry.Environment,
		Release:      c.Sentry.Release,
		SampleRate:   c.Sentry.SampleRate,
		FlushTimeout: c.Sentry.FlushTimeout,
		Debug:        c.Sentry.Debug,
	}
}

// NATSConnection returns the NATS connection configuration.
func (c *Config) NATSConnection() *natsconn.ConnectionConfig {
	nc := natsconn.DefaultConnectionConfig(c.NATS.URL)
	nc.Name = c.NATS.Name
	nc.MaxReconnects = c.NATS.MaxReconnects
	nc.ReconnectWait = c.NATS.ReconnectWait
	nc.Timeout = c.NATS.Timeout
	nc.Token = c.NATS.Token
	nc.Username = c.NATS.Username
	nc.Password = c.NATS.Password
	return nc
}

// NewLogger builds the zap logger described by the logging section.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Logging.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if c.Logging.Encoding != "" {
		zc.Encoding = c.Logging.Encoding
	}
	return zc.Build()
}
