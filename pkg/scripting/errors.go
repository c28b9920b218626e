package scripting

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

// ErrScriptNotFound is returned when a script file does not exist. Errors
// wrapping it also match fs.ErrNotExist.
var ErrScriptNotFound = errors.New("script not found")

// ErrEngineClosed is returned by a closed engine or session
var ErrEngineClosed = errors.New("script engine is closed")

// ErrorType categorizes script failures
type ErrorType string

const (
	ErrorTypeSyntax   ErrorType = "syntax_error"
	ErrorTypeRuntime  ErrorType = "runtime_error"
	ErrorTypeTimeout  ErrorType = "timeout_error"
	ErrorTypeSecurity ErrorType = "security_error"
	ErrorTypeInternal ErrorType = "internal_error"
)

// ScriptError is a structured script failure
type ScriptError struct {
	Type       ErrorType    `json:"type"`
	Message    string       `json:"message"`
	Source     string       `json:"source,omitempty"`
	Line       int          `json:"line,omitempty"`
	Column     int          `json:"column,omitempty"`
	StackTrace []StackFrame `json:"stack_trace,omitempty"`

	// Cause is a Go error thrown through the script, if any
	Cause error `json:"-"`
}

// StackFrame represents a single frame in the stack trace
type StackFrame struct {
	FunctionName string `json:"function_name,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	Line         int    `json:"line"`
	Column       int    `json:"column"`
}

// Error implements the error interface
func (e *ScriptError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Type, e.Message)
	if e.Source != "" {
		fmt.Fprintf(&b, " in %s", e.Source)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
		if e.Column > 0 {
			fmt.Fprintf(&b, ", column %d", e.Column)
		}
	}
	return b.String()
}

// Unwrap returns the Go error thrown through the script
func (e *ScriptError) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether err is a script timeout
func IsTimeout(err error) bool {
	var se *ScriptError
	return errors.As(err, &se) && se.Type == ErrorTypeTimeout
}

// ParseException converts a goja exception into a ScriptError
func ParseException(exc *goja.Exception, source string) *ScriptError {
	if exc == nil {
		return &ScriptError{Type: ErrorTypeInternal, Message: "unknown error", Source: source}
	}

	se := &ScriptError{
		Type:    ErrorTypeRuntime,
		Message: exc.Error(),
		Source:  source,
		Cause:   exc.Unwrap(),
	}

	if obj, ok := exc.Value().(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			se.Message = msg.String()
		}
		if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) {
			se.StackTrace = parseStackTrace(stack.String())
		}
	}
	if len(se.StackTrace) == 0 {
		se.StackTrace = parseStackTrace(exc.String())
	}
	for _, frame := range se.StackTrace {
		if frame.Line > 0 {
			se.Line, se.Column = frame.Line, frame.Column
			break
		}
	}

	var secErr *ScriptError
	if errors.As(se.Cause, &secErr) && secErr.Type == ErrorTypeSecurity {
		se.Type = ErrorTypeSecurity
	}
	return se
}

// parseSyntaxError converts a compile failure into a ScriptError
func parseSyntaxError(err error, source string) *ScriptError {
	se := &ScriptError{Type: ErrorTypeSyntax, Message: err.Error(), Source: source}
	var syn *goja.CompilerSyntaxError
	if errors.As(err, &syn) {
		se.Message = syn.Message
		if syn.File != nil {
			pos := syn.File.Position(syn.Offset)
			se.Line, se.Column = pos.Line, pos.Column
		}
	}
	return se
}

func newTimeoutError(source, reason string) *ScriptError {
	return &ScriptError{Type: ErrorTypeTimeout, Message: reason, Source: source}
}

func newSecurityError(message string) *ScriptError {
	return &ScriptError{Type: ErrorTypeSecurity, Message: message}
}

func newInternalError(source string, err error) *ScriptError {
	return &ScriptError{Type: ErrorTypeInternal, Message: err.Error(), Source: source, Cause: err}
}

// parseStackTrace parses a goja stack string into frames
func parseStackTrace(stack string) []StackFrame {
	if stack == "" {
		return nil
	}
	var frames []StackFrame
	for _, line := range strings.Split(stack, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "at ") {
			continue
		}
		frames = append(frames, parseStackFrame(strings.TrimPrefix(line, "at ")))
	}
	return frames
}

// parseStackFrame handles "fn (file:line:col(pc))" and "file:line:col(pc)".
func parseStackFrame(line string) StackFrame {
	var frame StackFrame
	location := line
	if open := strings.Index(line, " ("); open != -1 && strings.HasSuffix(line, ")") {
		frame.FunctionName = strings.TrimSpace(line[:open])
		location = line[open+2 : len(line)-1]
	}
	if paren := strings.Index(location, "("); paren != -1 {
		location = location[:paren]
	}

	parts := strings.Split(location, ":")
	if len(parts) >= 3 {
		frame.FileName = strings.Join(parts[:len(parts)-2], ":")
		frame.Line, _ = strconv.Atoi(parts[len(parts)-2])
		frame.Column, _ = strconv.Atoi(parts[len(parts)-1])
	} else if len(parts) == 2 {
		frame.Line, _ = strconv.Atoi(parts[0])
		frame.Column, _ = strconv.Atoi(parts[1])
	}
	return frame
}
