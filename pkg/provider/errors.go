package provider

import (
	"errors"
	"fmt"
)

// ErrTimeout marks an attempt that exceeded its per-attempt timeout.
var ErrTimeout = errors.New("provider call timed out")

// InvocationError is returned once the primary provider exhausted its retries
// and the fallback, if configured, failed too.
type InvocationError struct {
	Primary     string
	PrimaryErr  error
	Fallback    string
	FallbackErr error
}

func (e *InvocationError) Error() string {
	if e.Fallback == "" {
		return fmt.Sprintf("provider %s failed after retries: %v", e.Primary, e.PrimaryErr)
	}
	return fmt.Sprintf("all providers failed: primary %s: %v; fallback %s: %v",
		e.Primary, e.PrimaryErr, e.Fallback, e.FallbackErr)
}

func (e *InvocationError) Unwrap() []error {
	errs := []error{}
	if e.PrimaryErr != nil {
		errs = append(errs, e.PrimaryErr)
	}
	if e.FallbackErr != nil {
		errs = append(errs, e.FallbackErr)
	}
	return errs
}
