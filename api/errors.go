package api

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingParameter is returned when a strategy is constructed without a
	// required parameter
	ErrMissingParameter = errors.New("required parameter is missing")
	// ErrDuplicateInstance is returned when a run request contains two
	// instances with the same (name, type) pair
	ErrDuplicateInstance = errors.New("duplicate (name, type) evaluation instance")
	// ErrNoScore marks records that never reached the scoring phase
	ErrNoScore = errors.New("evaluation did not produce a score")
)

// ConfigurationError reports an invalid evaluation instance declaration, such
// as an invalid regex or a missing required parameter. It is detected at
// construction time and aborts only that instance's runs.
type ConfigurationError struct {
	Type  string // strategy type being constructed
	Param string // offending parameter, when known
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("invalid configuration for %s (parameter %q): %v", e.Type, e.Param, e.Err)
	}
	return fmt.Sprintf("invalid configuration for %s: %v", e.Type, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// UnknownTypeError reports a registry resolution failure for a declared
// instance type. The orchestrator skips the pair and records a failed result.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown evaluation type %q", e.Type)
}

// ModelCallError reports a model invocation that could not produce output:
// either the retry budget was exhausted on transient failures, or the call
// failed with a permanent error.
type ModelCallError struct {
	Provider string
	Model    string
	Attempts int
	// Transient reports whether the final failure was classified retriable
	Transient bool
	Err       error
}

func (e *ModelCallError) Error() string {
	kind := "permanent failure"
	if e.Transient {
		kind = "retries exhausted"
	}
	return fmt.Sprintf("model call to %s/%s failed after %d attempt(s) (%s): %v",
		e.Provider, e.Model, e.Attempts, kind, e.Err)
}

func (e *ModelCallError) Unwrap() error { return e.Err }
