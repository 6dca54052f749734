package agent

import "fmt"

// ConfigurationError reports an invalid agent or run setup. It is raised
// before any external call and is never retried.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

func configError(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// MaxIterationsError is returned when the loop ceiling is reached without a
// tool-free answer.
type MaxIterationsError struct {
	MaxIterations int
}

func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("Agent exceeded maximum iterations: %d", e.MaxIterations)
}
