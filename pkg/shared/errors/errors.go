package errors

import "fmt"

// RunStatus is the overall outcome of one pipeline task run.
type RunStatus string

const (
	StatusSucceeded           RunStatus = "succeeded"
	StatusSucceededWithIssues RunStatus = "succeeded-with-issues"
	StatusFailed              RunStatus = "failed"
	StatusSkipped             RunStatus = "skipped"
)

// CommandError represents a run failure carrying the process exit code and run status.
type CommandError struct {
	ExitCode int
	Status   RunStatus
	Err      error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	if e.Err == nil {
		return string(e.Status)
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped cause.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a new CommandError with the given status, exit code and cause.
func NewCommandError(status RunStatus, code int, err error) *CommandError {
	return &CommandError{
		ExitCode: code,
		Status:   status,
		Err:      err,
	}
}

// NewConfigurationError marks missing or invalid run-context values. These are
// fatal and abort before any platform mutation.
func NewConfigurationError(format string, args ...interface{}) *CommandError {
	return &CommandError{
		ExitCode: 1,
		Status:   StatusFailed,
		Err:      fmt.Errorf(format, args...),
	}
}
