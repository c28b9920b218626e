package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/scripting"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, 10000, c.Engine.MaxLoopIterations)
	assert.Equal(t, time.Hour, c.Engine.MaxLoopDuration)
	assert.True(t, c.Engine.EnableMetrics)
	assert.Equal(t, scripting.SecurityLevelStandard, c.Scripting.SecurityLevel)
	assert.Equal(t, 30*time.Second, c.Scripting.Timeout)
	assert.Equal(t, "scripts", c.Paths.ScriptsDir)
	assert.Equal(t, "info", c.Logging.Level)
	assert.False(t, c.Tracing.Enabled)
	assert.False(t, c.NATS.Enabled)
	assert.Equal(t, "daedalus.results", c.NATS.Subject)
	assert.Empty(t, c.Sentry.DSN)
	assert.Equal(t, "daedalus-reports", c.Blob.Container)
	assert.EqualValues(t, 5, c.Batch.FailureThreshold)
	assert.Positive(t, c.Batch.MaxConcurrent)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "daedalus.yaml", `
engine:
  max_loop_iterations: 50
  stop_on_error: true
scripting:
  timeout: 2s
  security_level: strict
paths:
  scripts_dir: js
nats:
  enabled: true
  url: nats://broker:4222
  subject: qa.results
batch:
  max_concurrent: 3
  run_timeout: 5m
`)

	c, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, 50, c.Engine.MaxLoopIterations)
	assert.True(t, c.Engine.StopOnError)
	assert.Equal(t, 2*time.Second, c.Scripting.Timeout)
	assert.Equal(t, scripting.SecurityLevelStrict, c.Scripting.SecurityLevel)
	assert.Equal(t, "js", c.Paths.ScriptsDir)
	assert.Equal(t, "nats://broker:4222", c.NATSConnection().URL)
	assert.Equal(t, "qa.results", c.NATS.Subject)
	assert.Equal(t, 3, c.Batch.MaxConcurrent)
	assert.Equal(t, 5*time.Minute, c.RunnerConfig(nil).RunTimeout)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "daedalus.toml", `
[sentry]
dsn = "https://key@sentry.example.com/1"
sample_rate = 0.5

[blob]
connection_string = "AccountName=a;AccountKey=b"
container = "runs"
`)

	c, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "https://key@sentry.example.com/1", c.SentryConfig().DSN)
	assert.Equal(t, 0.5, c.SentryConfig().SampleRate)
	assert.Equal(t, "runs", c.Blob.Container)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DAEDALUS_ENGINE_STOP_ON_ERROR", "true")
	t.Setenv("DAEDALUS_NATS_URL", "nats://env:4222")
	t.Setenv("DAEDALUS_LOGGING_LEVEL", "debug")

	path := writeFile(t, "daedalus.yaml", "nats:\n  url: nats://file:4222\n")
	c, err := Load(nil, path)
	require.NoError(t, err)
	assert.True(t, c.Engine.StopOnError)
	assert.Equal(t, "nats://env:4222", c.NATS.URL)
	assert.Equal(t, "debug", c.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad security level", content: "scripting:\n  security_level: lax\n"},
		{name: "bad log level", content: "logging:\n  level: chatty\n"},
		{name: "negative concurrency", content: "batch:\n  max_concurrent: -2\n"},
		{name: "nats without url", content: "nats:\n  enabled: true\n  url: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(nil, writeFile(t, "daedalus.yaml", tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(nil, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_EngineConfig(t *testing.T) {
	c, err := Load(nil, "")
	require.NoError(t, err)
	c.Engine.MaxLoopIterations = 7

	ec := c.EngineConfig(nil)
	assert.Equal(t, 7, ec.MaxLoopIterations)
	assert.True(t, ec.EnableMetrics)
}

func TestConfig_NewLogger(t *testing.T) {
	c, err := Load(nil, "")
	require.NoError(t, err)
	c.Logging.Development = true
	c.Logging.Encoding = "console"

	logger, err := c.NewLogger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
