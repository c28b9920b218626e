package scripting

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func writeScript(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestConfig_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, SecurityLevelStandard, cfg.SecurityLevel)
	assert.Equal(t, []string{"core", "console", "encoding"}, cfg.References)
	assert.NoError(t, cfg.Validate())

	bad := Config{Timeout: time.Second, SecurityLevel: "root"}
	assert.Error(t, bad.Validate())
}

func TestEngine_EvaluateInline(t *testing.T) {
	e := newTestEngine(t, Config{})

	out, err := e.Evaluate(context.Background(), Inline("a + b"), map[string]any{"a": 2, "b": 3})
	require.NoError(t, err)
	assert.EqualValues(t, 5, out)

	out, err = e.Evaluate(context.Background(), Inline("undefined"), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestEngine_GlobalsDoNotLeakBetweenEvaluations(t *testing.T) {
	e := newTestEngine(t, Config{PoolSize: 1})
	ctx := context.Background()

	_, err := e.Evaluate(ctx, Inline("value"), map[string]any{"value": 1})
	require.NoError(t, err)

	out, err := e.Evaluate(ctx, Inline("typeof value"), nil)
	require.NoError(t, err)
	assert.Equal(t, "undefined", out)
}

func TestEngine_EvaluateFile(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "answer.js", "40 + offset")
	e := newTestEngine(t, Config{ScriptsDir: dir})

	out, err := e.EvaluateFile(context.Background(), "answer.js", map[string]any{"offset": 2})
	require.NoError(t, err)
	assert.EqualValues(t, 42, out)
}

func TestEngine_MissingFile(t *testing.T) {
	e := newTestEngine(t, Config{ScriptsDir: t.TempDir()})

	_, err := e.EvaluateFile(context.Background(), "missing.js", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScriptNotFound)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestEngine_RecompilesChangedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "value.js", "1")
	e := newTestEngine(t, Config{ScriptsDir: dir})
	ctx := context.Background()

	out, err := e.EvaluateFile(ctx, path, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, out)

	out, err = e.EvaluateFile(ctx, path, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, out)
	assert.EqualValues(t, 1, e.Stats().Cache.Hits)

	writeScript(t, dir, "value.js", "2")
	out, err = e.EvaluateFile(ctx, path, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, out)
	assert.Equal(t, 1, e.Stats().Cache.Entries)
}

func TestEngine_Errors(t *testing.T) {
	e := newTestEngine(t, Config{Timeout: 200 * time.Millisecond})

	tests := []struct {
		name     string
		script   string
		wantType ErrorType
	}{
		{name: "syntax", script: "var = ;", wantType: ErrorTypeSyntax},
		{name: "runtime", script: "throw new Error('boom')", wantType: ErrorTypeRuntime},
		{name: "reference", script: "notDefined.call()", wantType: ErrorTypeRuntime},
		{name: "timeout", script: "while (true) {}", wantType: ErrorTypeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Evaluate(context.Background(), Inline(tt.script), nil)
			require.Error(t, err)
			var se *ScriptError
			require.True(t, errors.As(err, &se), "expected ScriptError, got %T", err)
			assert.Equal(t, tt.wantType, se.Type)
		})
	}
}

func TestEngine_RuntimeErrorMessage(t *testing.T) {
	e := newTestEngine(t, Config{})

	_, err := e.Evaluate(context.Background(), Inline("throw new Error('boom')"), nil)
	var se *ScriptError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "boom", se.Message)
}

func TestEngine_Cancellation(t *testing.T) {
	e := newTestEngine(t, Config{Timeout: 10 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := e.Evaluate(ctx, Inline("while (true) {}"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsTimeout(err))
}

func TestEngine_RuntimeUsableAfterTimeout(t *testing.T) {
	e := newTestEngine(t, Config{Timeout: 100 * time.Millisecond, PoolSize: 1})
	ctx := context.Background()

	_, err := e.Evaluate(ctx, Inline("while (true) {}"), nil)
	require.True(t, IsTimeout(err))

	out, err := e.Evaluate(ctx, Inline("1 + 1"), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, out)
}

func TestEngine_Closed(t *testing.T) {
	e, err := NewEngine(Config{})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = e.Evaluate(context.Background(), Inline("1"), nil)
	assert.ErrorIs(t, err, ErrEngineClosed)
	_, err = e.NewSession()
	assert.ErrorIs(t, err, ErrEngineClosed)
}

func TestSandbox_HostGlobalsRemoved(t *testing.T) {
	e := newTestEngine(t, Config{})

	out, err := e.Evaluate(context.Background(), Inline("typeof require + ',' + typeof process"), nil)
	require.NoError(t, err)
	assert.Equal(t, "undefined,undefined", out)
}

func TestSandbox_StrictForbidsEval(t *testing.T) {
	e := newTestEngine(t, Config{SecurityLevel: SecurityLevelStrict})

	_, err := e.Evaluate(context.Background(), Inline("eval('1')"), nil)
	var se *ScriptError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ErrorTypeSecurity, se.Type)
}

func TestReferences(t *testing.T) {
	e := newTestEngine(t, Config{}, WithReferences(HostObjects{
		ProviderName: "input",
		Objects:      map[string]any{"Keys": map[string]any{"Enter": "{ENTER}"}},
	}))
	ctx := context.Background()

	out, err := e.Evaluate(ctx, Inline("Keys.Enter"), nil)
	require.NoError(t, err)
	assert.Equal(t, "{ENTER}", out)

	out, err = e.Evaluate(ctx, Inline("atob(btoa('hello'))"), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	out, err = e.Evaluate(ctx, Inline("Point(3, 4).y"), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 4, out)

	out, err = e.Evaluate(ctx, Inline("typeof newId()"), nil)
	require.NoError(t, err)
	assert.Equal(t, "string", out)

	assert.Contains(t, e.References().Names(), "input")
}

func TestReferences_StrictSkipsConsole(t *testing.T) {
	e := newTestEngine(t, Config{SecurityLevel: SecurityLevelStrict})

	out, err := e.Evaluate(context.Background(), Inline("typeof console + ',' + typeof Point"), nil)
	require.NoError(t, err)
	assert.Equal(t, "undefined,function", out)
}

func TestParseStackFrame(t *testing.T) {
	frame := parseStackFrame("check (/scripts/a.js:3:7(12))")
	assert.Equal(t, "check", frame.FunctionName)
	assert.Equal(t, "/scripts/a.js", frame.FileName)
	assert.Equal(t, 3, frame.Line)
	assert.Equal(t, 7, frame.Column)

	frame = parseStackFrame("<inline>:1:1(3)")
	assert.Equal(t, "<inline>", frame.FileName)
	assert.Equal(t, 1, frame.Line)
}
