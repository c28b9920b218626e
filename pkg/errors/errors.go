package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration indicates a structurally invalid workflow, such as a break
	// outside of any loop or a property path that does not resolve.
	ErrConfiguration = errors.New("configuration error")

	// ErrElementNotFound indicates that control resolution exhausted its retries
	ErrElementNotFound = errors.New("element not found")

	// ErrArgumentNotConfigured indicates that an argument's active mode has no usable source
	ErrArgumentNotConfigured = errors.New("argument not configured")

	// ErrMissingComponent indicates that an expected structural child is absent
	ErrMissingComponent = errors.New("missing component")
)

// Error codes carried by Error.Code.
const (
	CodeConfiguration         = "CONFIGURATION"
	CodeElementNotFound       = "ELEMENT_NOT_FOUND"
	CodeArgumentNotConfigured = "ARGUMENT_NOT_CONFIGURED"
	CodeMissingComponent      = "MISSING_COMPONENT"
)

// Error represents a structured workflow error
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error, if any
	Err error

	kind error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the category sentinel the error was created with.
func (e *Error) Is(target error) bool {
	return e.kind != nil && target == e.kind
}

// NewError creates a new error with a code and no category.
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewConfigurationError creates an error matching ErrConfiguration
func NewConfigurationError(message string, err error) *Error {
	return &Error{Code: CodeConfiguration, Message: message, Err: err, kind: ErrConfiguration}
}

// NewElementNotFoundError creates an error matching ErrElementNotFound
func NewElementNotFoundError(message string, err error) *Error {
	return &Error{Code: CodeElementNotFound, Message: message, Err: err, kind: ErrElementNotFound}
}

// NewArgumentNotConfiguredError creates an error matching ErrArgumentNotConfigured
func NewArgumentNotConfiguredError(message string, err error) *Error {
	return &Error{Code: CodeArgumentNotConfigured, Message: message, Err: err, kind: ErrArgumentNotConfigured}
}

// NewMissingComponentError creates an error matching ErrMissingComponent
func NewMissingComponentError(message string, err error) *Error {
	return &Error{Code: CodeMissingComponent, Message: message, Err: err, kind: ErrMissingComponent}
}

// IsConfiguration checks if an error is a configuration error
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsElementNotFound checks if an error is an element-not-found error
func IsElementNotFound(err error) bool {
	return errors.Is(err, ErrElementNotFound)
}

// IsArgumentNotConfigured checks if an error is an argument-not-configured error
func IsArgumentNotConfigured(err error) bool {
	return errors.Is(err, ErrArgumentNotConfigured)
}

// IsMissingComponent checks if an error is a missing-component error
func IsMissingComponent(err error) bool {
	return errors.Is(err, ErrMissingComponent)
}

// CodeOf returns the code of the first structured error in the chain, or an empty string.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
