package scripting

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Source identifies a script by file path or inline text
type Source struct {
	Path string
	Text string
}

// File returns a file source
func File(path string) Source { return Source{Path: path} }

// Inline returns an inline source
func Inline(text string) Source { return Source{Text: text} }

// IsFile reports whether the source refers to a file
func (s Source) IsFile() bool { return s.Path != "" }

func (s Source) String() string {
	if s.IsFile() {
		return s.Path
	}
	return "<inline>"
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithReferences contributes reference providers to every runtime
func WithReferences(providers ...ReferenceProvider) Option {
	return func(e *Engine) {
		e.pending = append(e.pending, providers...)
	}
}

// Engine compiles and evaluates workflow scripts
type Engine struct {
	config      Config
	logger      *zap.Logger
	references  *ReferenceRegistry
	cache       *ProgramCache
	pool        *runtimePool
	expressions *Expressions
	pending     []ReferenceProvider

	mu     sync.RWMutex
	closed bool
}

// EngineStats contains engine statistics
type EngineStats struct {
	Pool  PoolStats  `json:"pool"`
	Cache CacheStats `json:"cache"`
}

// NewEngine creates a script engine
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid script engine config: %w", err)
	}

	e := &Engine{
		config:      cfg,
		logger:      zap.NewNop(),
		cache:       NewProgramCache(),
		expressions: NewExpressions(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.references = NewReferenceRegistry(e.logger)
	for _, p := range e.pending {
		e.references.Contribute(p)
	}
	e.pending = nil
	e.pool = newRuntimePool(cfg.PoolSize, cfg.MaxReuseCount, e.newRuntime)

	e.logger.Debug("Script engine created",
		zap.String("scripts_dir", cfg.ScriptsDir),
		zap.String("security_level", cfg.SecurityLevel),
		zap.Duration("timeout", cfg.Timeout),
		zap.Strings("references", e.references.Names()))
	return e, nil
}

// Config returns the effective configuration
func (e *Engine) Config() Config { return e.config }

// References returns the engine's reference registry
func (e *Engine) References() *ReferenceRegistry { return e.references }

// Expressions returns the inline condition evaluator
func (e *Engine) Expressions() *Expressions { return e.expressions }

// Stats returns engine statistics
func (e *Engine) Stats() EngineStats {
	return EngineStats{Pool: e.pool.stats(), Cache: e.cache.Stats()}
}

// ResolvePath resolves a script path against the scripts directory
func (e *Engine) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.config.ScriptsDir, path)
}

// Compile compiles a source, reusing a cached program when the text is unchanged
func (e *Engine) Compile(src Source) (*goja.Program, error) {
	program, _, err := e.compile(src)
	return program, err
}

func (e *Engine) compile(src Source) (*goja.Program, string, error) {
	name, text, key, err := e.load(src)
	if err != nil {
		return nil, name, err
	}
	fp := fingerprint(text)
	if program, ok := e.cache.Get(key, fp); ok {
		return program, name, nil
	}
	program, err := goja.Compile(name, text, false)
	if err != nil {
		return nil, name, parseSyntaxError(err, name)
	}
	e.cache.Put(key, fp, program)
	return program, name, nil
}

func (e *Engine) load(src Source) (name, text, key string, err error) {
	if !src.IsFile() {
		return "<inline>", src.Text, "inline:" + fingerprint(src.Text), nil
	}
	path := e.ResolvePath(src.Path)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return path, "", "", fmt.Errorf("%w: %s: %w", ErrScriptNotFound, path, err)
		}
		return path, "", "", fmt.Errorf("failed to read script %s: %w", path, err)
	}
	return path, string(data), "file:" + path, nil
}

// Evaluate runs a source on a pooled runtime. Globals are visible only to this evaluation.
func (e *Engine) Evaluate(ctx context.Context, src Source, globals map[string]any) (any, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	program, name, err := e.compile(src)
	if err != nil {
		return nil, err
	}

	rt, err := e.pool.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire runtime: %w", err)
	}
	healthy := true
	defer func() { e.pool.release(rt, healthy) }()

	if err := bindGlobals(rt, globals); err != nil {
		return nil, err
	}
	val, err := e.execute(ctx, rt.vm, name, func() (goja.Value, error) {
		return rt.vm.RunProgram(program)
	})
	if err != nil {
		var se *ScriptError
		if errors.As(err, &se) && se.Type == ErrorTypeInternal {
			healthy = false
		}
		return nil, err
	}
	return export(val), nil
}

// EvaluateFile runs a script file on a pooled runtime
func (e *Engine) EvaluateFile(ctx context.Context, path string, globals map[string]any) (any, error) {
	return e.Evaluate(ctx, File(path), globals)
}

// Close releases pooled runtimes and drops cached programs
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.pool.close()
	e.cache.Clear()
	return nil
}

func (e *Engine) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEngineClosed
	}
	return nil
}

// newRuntime creates a sandboxed runtime with references installed
func (e *Engine) newRuntime() (*goja.Runtime, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	if err := NewSandbox(e.config.SecurityLevel).Apply(vm); err != nil {
		return nil, fmt.Errorf("failed to apply sandbox: %w", err)
	}
	if err := e.references.InstallEnabled(vm, e.config); err != nil {
		return nil, err
	}
	return vm, nil
}

// execute runs fn with the configured timeout. Cancelling ctx or reaching the
// timeout interrupts the runtime.
func (e *Engine) execute(ctx context.Context, vm *goja.Runtime, name string, fn func() (goja.Value, error)) (val goja.Value, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-runCtx.Done():
			vm.Interrupt(runCtx.Err())
		case <-done:
		}
	}()
	defer func() {
		close(done)
		<-exited
		vm.ClearInterrupt()
	}()

	defer func() {
		if r := recover(); r != nil {
			val = nil
			err = newInternalError(name, fmt.Errorf("panic during execution: %v", r))
		}
	}()

	val, err = fn()
	if err != nil {
		return nil, e.classify(ctx, name, err)
	}
	return val, nil
}

func (e *Engine) classify(ctx context.Context, name string, err error) error {
	if se, ok := err.(*ScriptError); ok {
		return se
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if ctx.Err() != nil {
			return fmt.Errorf("script %s cancelled: %w", name, ctx.Err())
		}
		return newTimeoutError(name, fmt.Sprintf("execution timeout after %s", e.config.Timeout))
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return ParseException(exc, name)
	}
	return newInternalError(name, err)
}

func bindGlobals(rt *pooledRuntime, globals map[string]any) error {
	for name, value := range globals {
		if err := rt.vm.Set(name, value); err != nil {
			return fmt.Errorf("failed to set global %s: %w", name, err)
		}
		rt.globals = append(rt.globals, name)
	}
	return nil
}

func export(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}
