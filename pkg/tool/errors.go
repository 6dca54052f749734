package tool

import (
	"fmt"
)

// ExecutionError reports a failed tool invocation.
type ExecutionError struct {
	Tool     string
	Cause    error
	NotFound bool
}

func (e *ExecutionError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("tool not found: %s", e.Tool)
	}
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// NotFound builds the error for a call to an unknown tool.
func NotFound(name string) *ExecutionError {
	return &ExecutionError{Tool: name, NotFound: true}
}
