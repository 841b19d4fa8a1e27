package hook

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes hook errors.
type ErrorCode string

const (
	// ErrCodeNoActiveContext indicates a hook or accessor was used outside
	// a running system.
	ErrCodeNoActiveContext ErrorCode = "NO_ACTIVE_CONTEXT"

	// ErrCodeFrameActive indicates BeginFrame was called while a frame was
	// already open.
	ErrCodeFrameActive ErrorCode = "FRAME_ACTIVE"
)

// ContextError is returned (or panicked, for the Use* hooks) when the
// runtime is in the wrong state for the requested operation.
type ContextError struct {
	Code ErrorCode

	// Op names the operation that failed, e.g. "UseState".
	Op string

	Message string
}

// Error implements the error interface.
func (e *ContextError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNoActiveContext reports whether err is a NoActiveContext error.
func IsNoActiveContext(err error) bool {
	var ce *ContextError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeNoActiveContext
	}
	return false
}

func noActiveContext(op string) *ContextError {
	return &ContextError{
		Code:    ErrCodeNoActiveContext,
		Op:      op,
		Message: "must be called from within a running system",
	}
}

// ReleaseError reports a release policy that failed during a sweep.
// The entry it guarded is removed regardless.
type ReleaseError struct {
	Key Key
	Err error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release %s: %v", e.Key.Short(), e.Err)
}

func (e *ReleaseError) Unwrap() error {
	return e.Err
}
