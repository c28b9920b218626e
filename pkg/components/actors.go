package components

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wehubfusion/Daedalus/pkg/argument"
	"github.com/wehubfusion/Daedalus/pkg/engine"
	"github.com/wehubfusion/Daedalus/pkg/entity"
	derrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

// ScriptActor runs a script file in the run's script session. The result
// can be stored in the model under ResultVariable.
type ScriptActor struct {
	entity.Base
	ScriptFile     string `json:"scriptFile"`
	ResultVariable string `json:"resultVariable,omitempty"`

	result any
}

// NewScriptActor creates a script actor.
func NewScriptActor(name string) *ScriptActor {
	s := &ScriptActor{}
	s.Base = entity.NewBase(s, KindScript, name)
	return s
}

// Result returns the value produced by the last run.
func (s *ScriptActor) Result() any {
	return s.result
}

func (s *ScriptActor) Validate() error {
	if s.ScriptFile == "" {
		return derrors.NewArgumentNotConfiguredError(fmt.Sprintf("script actor %q has no script file", s.Name()), nil)
	}
	return nil
}

func (s *ScriptActor) Reset() {
	s.result = nil
}

func (s *ScriptActor) Act(ctx context.Context, rc *engine.RunContext) error {
	session := rc.Scripts()
	if session == nil {
		return derrors.NewConfigurationError(
			fmt.Sprintf("script actor %q needs a script engine", s.Name()), nil)
	}
	value, err := session.EvaluateFile(ctx, s.ScriptFile, rc.ScriptGlobals())
	if err != nil {
		return fmt.Errorf("script %s: %w", s.ScriptFile, err)
	}
	s.result = value
	if s.ResultVariable != "" {
		rc.SetVariable(s.ResultVariable, value)
	}
	return nil
}

// Delay suspends the run for a resolved duration. Cancellation ends the
// wait early.
type Delay struct {
	entity.Base
	Duration *argument.Argument `json:"duration"`

	wait time.Duration
}

// NewDelay creates a delay of one second.
func NewDelay(name string) *Delay {
	d := &Delay{Duration: argument.Literal("1s").Typed(argument.TypeDuration)}
	d.Base = entity.NewBase(d, KindDelay, name)
	return d
}

func (d *Delay) Validate() error {
	return d.Duration.Validate()
}

func (d *Delay) ResolveArguments(ctx context.Context, rc *engine.RunContext) error {
	wait, err := rc.ResolveDuration(ctx, d.Duration)
	if err != nil {
		return err
	}
	if wait < 0 {
		return derrors.NewArgumentNotConfiguredError(fmt.Sprintf("delay %s is negative", wait), nil)
	}
	d.wait = wait
	return nil
}

func (d *Delay) Act(ctx context.Context, rc *engine.RunContext) error {
	return rc.Clock.Sleep(ctx, d.wait)
}

// Log writes a resolved message to the run's logger.
type Log struct {
	entity.Base
	Message *argument.Argument `json:"message"`
	Level   string             `json:"level,omitempty"`

	last string
}

// NewLog creates a log actor at info level.
func NewLog(name string) *Log {
	l := &Log{Message: argument.Literal("").Typed(argument.TypeString)}
	l.Base = entity.NewBase(l, KindLog, name)
	return l
}

// LastMessage returns the message written by the last run.
func (l *Log) LastMessage() string {
	return l.last
}

func (l *Log) level() (zapcore.Level, error) {
	if l.Level == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(l.Level)
}

func (l *Log) Validate() error {
	if _, err := l.level(); err != nil {
		return derrors.NewArgumentNotConfiguredError(fmt.Sprintf("log %q has an invalid level", l.Name()), err)
	}
	return l.Message.Validate()
}

func (l *Log) Reset() {
	l.last = ""
}

func (l *Log) ResolveArguments(ctx context.Context, rc *engine.RunContext) error {
	msg, err := rc.ResolveString(ctx, l.Message)
	if err != nil {
		return err
	}
	l.last = msg
	return nil
}

func (l *Log) Act(_ context.Context, rc *engine.RunContext) error {
	lvl, err := l.level()
	if err != nil {
		return err
	}
	if ce := rc.Logger.Check(lvl, l.last); ce != nil {
		ce.Write(zap.String("node_id", l.ID()), zap.String("node_name", l.Name()))
	}
	return nil
}

var (
	_ engine.Actor          = (*ScriptActor)(nil)
	_ engine.ArgumentBinder = (*Delay)(nil)
	_ engine.ArgumentBinder = (*Log)(nil)
)
