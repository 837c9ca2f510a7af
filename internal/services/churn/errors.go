package churn

import (
	"errors"
	"fmt"
)

// ErrorKind classifies request-level failures.
type ErrorKind string

const (
	KindInvalidNumeric ErrorKind = "InvalidNumeric"
)

var (
	// ErrInvalidNumeric matches any ValidationError of kind InvalidNumeric.
	ErrInvalidNumeric = errors.New("invalid numeric field")
	// ErrModelLoad wraps every failure to load or accept a model artifact.
	ErrModelLoad = errors.New("model load failure")
)

// ValidationError rejects a single request. It is never retried.
type ValidationError struct {
	Kind   ErrorKind
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: field %q value %q: %s", e.Kind, e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidNumeric && e.Kind == KindInvalidNumeric
}

func invalidNumeric(field, value string, cause error) *ValidationError {
	return &ValidationError{
		Kind:   KindInvalidNumeric,
		Field:  field,
		Value:  value,
		Reason: cause.Error(),
		Err:    cause,
	}
}

func modelLoadError(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrModelLoad, fmt.Sprintf(format, a...))
}
