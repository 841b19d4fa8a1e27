package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/topo/internal/manifest"
	"github.com/roach88/topo/loop"
	"github.com/roach88/topo/schedule"
)

// Exit codes shared by every topo command.
const (
	ExitSuccess      = 0 // plan resolved, scenarios passed, run recorded
	ExitFailure      = 1 // the systems themselves are wrong: unschedulable plan, failing scenario
	ExitCommandError = 2 // topo could not do its job: bad path, unparsable manifest, unreadable journal
)

// ExitError carries the process exit code for a command failure.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code of the first ExitError in err's chain, or
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose diagnostics; keeps JSON on Writer clean
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
	RunID  string    `json:"run_id,omitempty"` // journal run, when one was recorded
}

// CLIError is the error part of a CLIResponse. Code is a manifest code
// ("E005", "E203") or a scheduling code ("CYCLIC_DEPENDENCY",
// "UNSCHEDULABLE_CONSTRAINT").
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// describe maps the coded errors of the topo packages onto a CLIError.
// Scheduling errors name the event group and the systems involved so a
// caller can point at the offending declarations.
func describe(err error) *CLIError {
	var se *schedule.Error
	if errors.As(err, &se) {
		details := map[string]any{}
		if se.Event != "" {
			details["event"] = se.Event
		}
		if len(se.Systems) > 0 {
			details["systems"] = se.Systems
		}
		out := &CLIError{Code: string(se.Code), Message: se.Message}
		if len(details) > 0 {
			out.Details = details
		}
		return out
	}

	var me *manifest.Error
	if errors.As(err, &me) {
		out := &CLIError{Code: me.Code, Message: me.Error()}
		if me.Field != "" {
			out.Details = map[string]any{"field": me.Field}
		}
		return out
	}

	var le *loop.Error
	if errors.As(err, &le) {
		out := &CLIError{Code: string(le.Code), Message: le.Message}
		if le.System != "" {
			out.Details = map[string]any{"system": le.System}
		}
		return out
	}

	return &CLIError{Code: manifest.ErrCodeGeneric, Message: err.Error()}
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	return f.SuccessWithRun(data, "")
}

// SuccessWithRun is Success for results recorded under a journal run.
func (f *OutputFormatter) SuccessWithRun(data any, runID string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
			RunID:  runID,
		})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Fail reports err, described by its code, in the configured format.
func (f *OutputFormatter) Fail(err error) error {
	e := describe(err)
	return f.Error(e.Code, e.Message, e.Details)
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a diagnostic line when verbose mode is on, to
// ErrWriter when set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
