package scripting

import (
	"context"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session is a single runtime shared by every evaluation of one workflow run.
// State defined by one script stays visible to later scripts until Close.
type Session struct {
	id     string
	engine *Engine

	mu          sync.Mutex
	vm          *goja.Runtime
	evaluations int
	closed      bool
}

// NewSession creates a session with its own runtime
func (e *Engine) NewSession() (*Session, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	vm, err := e.newRuntime()
	if err != nil {
		return nil, err
	}
	s := &Session{id: uuid.NewString(), engine: e, vm: vm}
	e.logger.Debug("Script session opened", zap.String("session_id", s.id))
	return s, nil
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// Evaluate runs a source in the session runtime. Globals stay defined afterwards.
func (s *Session) Evaluate(ctx context.Context, src Source, globals map[string]any) (any, error) {
	program, name, err := s.engine.compile(src)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrEngineClosed
	}
	for k, v := range globals {
		if err := s.vm.Set(k, v); err != nil {
			return nil, fmt.Errorf("failed to set global %s: %w", k, err)
		}
	}
	s.evaluations++
	val, err := s.engine.execute(ctx, s.vm, name, func() (goja.Value, error) {
		return s.vm.RunProgram(program)
	})
	if err != nil {
		return nil, err
	}
	return export(val), nil
}

// EvaluateFile runs a script file in the session runtime
func (s *Session) EvaluateFile(ctx context.Context, path string, globals map[string]any) (any, error) {
	return s.Evaluate(ctx, File(path), globals)
}

// Set defines a global in the session runtime
func (s *Session) Set(name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrEngineClosed
	}
	return s.vm.Set(name, value)
}

// Get returns the exported value of a global, or nil when undefined
func (s *Session) Get(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return export(s.vm.Get(name))
}

// Evaluations returns the number of evaluations run in the session
func (s *Session) Evaluations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evaluations
}

// Close discards the session runtime
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.vm = nil
	s.engine.logger.Debug("Script session closed",
		zap.String("session_id", s.id),
		zap.Int("evaluations", s.evaluations))
	return nil
}
