package schedule

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes scheduling errors.
type ErrorCode string

const (
	// ErrCodeCyclicDependency indicates "runs after" edges form a cycle.
	ErrCodeCyclicDependency ErrorCode = "CYCLIC_DEPENDENCY"

	// ErrCodeUnschedulable indicates a system must run after a dependency
	// that has a strictly higher priority.
	ErrCodeUnschedulable ErrorCode = "UNSCHEDULABLE_CONSTRAINT"

	// ErrCodeCrossEvent indicates a dependency on a system in another
	// event group.
	ErrCodeCrossEvent ErrorCode = "CROSS_EVENT_DEPENDENCY"

	// ErrCodeUnknownDependency indicates a dependency on a name that is
	// not part of the system set.
	ErrCodeUnknownDependency ErrorCode = "UNKNOWN_DEPENDENCY"

	// ErrCodeDuplicateSystem indicates two systems share a name.
	ErrCodeDuplicateSystem ErrorCode = "DUPLICATE_SYSTEM"

	// ErrCodeInvalidSystem indicates a malformed node, e.g. an empty name.
	ErrCodeInvalidSystem ErrorCode = "INVALID_SYSTEM"
)

// Error is returned by Resolve. No plan is produced when it is returned.
type Error struct {
	Code ErrorCode

	Message string

	// Event is the event group in which the problem was found, if any.
	Event string

	// Systems names the offending systems. For cycles it is the witness
	// path, first element repeated at the end.
	Systems []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Event != "" {
		fmt.Fprintf(&b, " (event=%s)", e.Event)
	}
	return b.String()
}

// HasCode reports whether err is a scheduling error with the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsCycle returns true if err is a cyclic dependency error.
func IsCycle(err error) bool {
	return HasCode(err, ErrCodeCyclicDependency)
}

// IsUnschedulable returns true if err is a priority conflict error.
func IsUnschedulable(err error) bool {
	return HasCode(err, ErrCodeUnschedulable)
}

// IsCrossEvent returns true if err is a cross-event dependency error.
func IsCrossEvent(err error) bool {
	return HasCode(err, ErrCodeCrossEvent)
}

func newCycleError(event string, path []string) *Error {
	return &Error{
		Code:    ErrCodeCyclicDependency,
		Message: fmt.Sprintf("systems depend on each other: %s", strings.Join(path, " -> ")),
		Event:   event,
		Systems: path,
	}
}
