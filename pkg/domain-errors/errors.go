// Package dErrors provides coded domain errors for the dealroom kernel.
//
// Domain errors carry a machine-readable Code so callers can branch on the
// failure class without string matching, plus optional key/value attributes
// for diagnostics. Infrastructure facts (not found, unavailable) live in
// pkg/platform/sentinel; services wrap those sentinels into domain errors at
// the service boundary.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeInvalidInput: caller-supplied value failed validation at a trust boundary.
	CodeInvalidInput Code = "invalid_input"
	// CodeInvalidName: name normalization produced an empty result. The
	// triggering observation must be dropped, never filed under a wildcard key.
	CodeInvalidName Code = "invalid_name"
	// CodeEntityMismatch: an observation's entity disagrees with its target
	// aggregate's entity. Fatal to that call; never auto-corrected.
	CodeEntityMismatch Code = "entity_mismatch"
	// CodeNotFound: the referenced aggregate or record does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict: the operation conflicts with existing state.
	CodeConflict Code = "conflict"
	// CodeInvariantViolation: an internal invariant was broken; indicates a bug.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeUnavailable: a backing resource is temporarily unavailable.
	CodeUnavailable Code = "unavailable"
	// CodeInternal: unexpected internal failure.
	CodeInternal Code = "internal"
)

// Error is a domain error with a classification code and optional attributes.
type Error struct {
	Code    Code
	Message string
	Err     error
	attrs   map[string]any
}

// New constructs a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is / errors.As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped error to the errors package.
func (e *Error) Unwrap() error {
	return e.Err
}

// Add attaches a diagnostic key/value pair and returns the error for chaining.
// Attributes are for logging only; they never participate in equality.
func (e *Error) Add(key string, value any) *Error {
	if e.attrs == nil {
		e.attrs = make(map[string]any)
	}
	e.attrs[key] = value
	return e
}

// Load returns a previously attached attribute, or nil.
func (e *Error) Load(key string) any {
	return e.attrs[key]
}

// Add attaches an attribute to err if it is (or wraps) a domain error.
// No-op otherwise so call sites stay unconditional.
func Add(err error, key string, value any) error {
	var de *Error
	if errors.As(err, &de) {
		de.Add(key, value)
	}
	return err
}

// Load reads an attribute from err's domain error, or nil.
func Load(err error, key string) any {
	var de *Error
	if errors.As(err, &de) {
		return de.Load(key)
	}
	return nil
}

// HasCode reports whether err is (or wraps) a domain error with the code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is reports whether err is a domain error at all.
func Is(err error) bool {
	var de *Error
	return errors.As(err, &de)
}
