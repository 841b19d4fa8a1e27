package loop

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes loop errors.
type ErrorCode string

const (
	// ErrCodeUnknownSystem indicates an operation named a system that is
	// not registered.
	ErrCodeUnknownSystem ErrorCode = "UNKNOWN_SYSTEM"

	// ErrCodeInvalidSystem indicates a system definition without a name or
	// without a body.
	ErrCodeInvalidSystem ErrorCode = "INVALID_SYSTEM"

	// ErrCodeStepInProgress indicates a reentrant call from inside a tick
	// that cannot be deferred (Step, Schedule, Replace).
	ErrCodeStepInProgress ErrorCode = "STEP_IN_PROGRESS"

	// ErrCodeClosed indicates the loop has been closed.
	ErrCodeClosed ErrorCode = "CLOSED"
)

// Error is returned by Loop operations that fail as a whole.
// Scheduling failures are returned as *schedule.Error instead.
type Error struct {
	Code    ErrorCode
	Message string
	System  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.System != "" {
		return fmt.Sprintf("%s: %s (system=%s)", e.Code, e.Message, e.System)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnknownSystem returns true if err is an unknown system error.
// Uses errors.As to handle wrapped errors.
func IsUnknownSystem(err error) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == ErrCodeUnknownSystem
	}
	return false
}

func unknownSystem(name string) *Error {
	return &Error{Code: ErrCodeUnknownSystem, Message: "system is not registered", System: name}
}

func stepInProgress(op string) *Error {
	return &Error{Code: ErrCodeStepInProgress, Message: op + " cannot be called while a tick is running"}
}

var errClosed = &Error{Code: ErrCodeClosed, Message: "loop is closed"}

// PanicError wraps a value recovered from a panicking system.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("system panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
