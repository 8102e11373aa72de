package mapping

import (
	"errors"
	"fmt"
)

// UnregisteredTypeError is returned when storage is requested for a type
// that was never registered.
type UnregisteredTypeError struct {
	Type string
}

func (e *UnregisteredTypeError) Error() string {
	return fmt.Sprintf("document type %s is not registered", e.Type)
}

// IdentityMissingError is returned when a document (or a bare id) has no
// usable identity value.
type IdentityMissingError struct {
	Type   string
	Field  string
	Reason string
}

func (e *IdentityMissingError) Error() string {
	return fmt.Sprintf("document type %s: identity %s %s", e.Type, e.Field, e.Reason)
}

// IsUnregistered reports whether err is or wraps an UnregisteredTypeError.
func IsUnregistered(err error) bool {
	var ue *UnregisteredTypeError
	return errors.As(err, &ue)
}

// IsIdentityMissing reports whether err is or wraps an IdentityMissingError.
func IsIdentityMissing(err error) bool {
	var ie *IdentityMissingError
	return errors.As(err, &ie)
}
