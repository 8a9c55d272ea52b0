// Package validation defines the field-level errors returned to API clients.
package validation

import (
	"errors"
	"fmt"
)

// Error is a business-rule violation attached to a request field.
type Error struct {
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a validation error wrapping sentinel.
func New(field string, sentinel error, format string, args ...interface{}) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...), Err: sentinel}
}

// As extracts a validation error from err.
func As(err error) (*Error, bool) {
	var vErr *Error
	if errors.As(err, &vErr) {
		return vErr, true
	}
	return nil, false
}
