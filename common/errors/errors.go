// Package errors defines the error taxonomy shared across the grading
// orchestrator. Remote-service failures are classified here so that callers
// can pattern-match on error kind instead of string contents.
package errors

import "fmt"

// RateLimitError indicates the remote cluster-job service throttled a call.
// Always transient: callers retry with backoff rather than surfacing it.
type RateLimitError struct {
	Err string
}

func (e *RateLimitError) Error() string {
	if e == nil {
		return ""
	}
	return e.Err
}

func NewRateLimit(format string, args ...interface{}) *RateLimitError {
	return &RateLimitError{Err: fmt.Sprintf(format, args...)}
}

// Returns true if an error is of type RateLimitError
func IsRateLimit(err error) bool {
	_, ok := err.(*RateLimitError)
	return ok
}

// AlreadyRunningError indicates a submitter already has an active remote job.
type AlreadyRunningError struct {
	Err string
}

func (e *AlreadyRunningError) Error() string {
	if e == nil {
		return ""
	}
	return e.Err
}

func NewAlreadyRunning(format string, args ...interface{}) *AlreadyRunningError {
	return &AlreadyRunningError{Err: fmt.Sprintf(format, args...)}
}

func IsAlreadyRunning(err error) bool {
	_, ok := err.(*AlreadyRunningError)
	return ok
}

// NotRunningError indicates an operation that requires an active remote job
// was invoked when none exists.
type NotRunningError struct {
	Err string
}

func (e *NotRunningError) Error() string {
	if e == nil {
		return ""
	}
	return e.Err
}

func NewNotRunning(format string, args ...interface{}) *NotRunningError {
	return &NotRunningError{Err: fmt.Sprintf(format, args...)}
}

func IsNotRunning(err error) bool {
	_, ok := err.(*NotRunningError)
	return ok
}

// ConfigurationError indicates grading parameters outside their required
// bounds. Fatal to scoring for the offending submitter only.
type ConfigurationError struct {
	Err string
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Err
}

func NewConfiguration(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Err: fmt.Sprintf(format, args...)}
}

func IsConfiguration(err error) bool {
	_, ok := err.(*ConfigurationError)
	return ok
}

// MalformedOutputError indicates a produced ranking entry that cannot be
// matched against the reference data. Scoring converts these to the maximal
// per-entry penalty instead of propagating.
type MalformedOutputError struct {
	Err string
}

func (e *MalformedOutputError) Error() string {
	if e == nil {
		return ""
	}
	return e.Err
}

func NewMalformedOutput(format string, args ...interface{}) *MalformedOutputError {
	return &MalformedOutputError{Err: fmt.Sprintf(format, args...)}
}

func IsMalformedOutput(err error) bool {
	_, ok := err.(*MalformedOutputError)
	return ok
}
