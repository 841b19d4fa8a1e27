package manifest

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/hashicorp/hcl/v2"
)

// Error code constants.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeMixedFormat = "E007" // Directory holds both CUE and HCL files

	ErrCodeNoSystems    = "E201" // Manifest declares no systems
	ErrCodeInvalidField = "E202" // Field has the wrong type
	ErrCodeUnknownField = "E203" // Field is not part of a system declaration
)

// Error is a manifest problem, with a source position when one is known.
// CUE manifests set Pos, HCL manifests set Subject.
type Error struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
	Subject *hcl.Range
}

func (e *Error) Error() string {
	prefix := e.Code
	if e.Field != "" {
		prefix = e.Code + " " + e.Field
	}
	if e.Subject != nil {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Subject.Filename, e.Subject.Start.Line, e.Subject.Start.Column, prefix, e.Message)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), prefix, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// fromCUE extracts the first positioned error from a CUE error.
func fromCUE(code string, err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Code: code, Message: err.Error()}
	}
	first := errs[0]
	out := &Error{Code: code, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}
