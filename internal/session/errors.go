package session

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned by every operation after Close.
var ErrSessionClosed = errors.New("session is closed")

// ExecutionError reports a command the store rejected or could not run:
// constraint violations, lost connections, malformed filter text.
type ExecutionError struct {
	// Op names the session operation ("save changes", "load", "query").
	Op string

	// SQL is the failing statement, empty for connection and transaction failures.
	SQL string

	Err error
}

func (e *ExecutionError) Error() string {
	if e.SQL != "" {
		return fmt.Sprintf("%s: execute %q: %v", e.Op, e.SQL, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// SerializationError reports a payload that could not be produced or consumed.
type SerializationError struct {
	Type string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize %s: %v", e.Type, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// IsExecution reports whether err is or wraps an ExecutionError.
func IsExecution(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// IsSerialization reports whether err is or wraps a SerializationError.
func IsSerialization(err error) bool {
	var se *SerializationError
	return errors.As(err, &se)
}
