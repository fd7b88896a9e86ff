package exam

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("invalid request")
	ErrGeneration    = errors.New("question generation failed")
	ErrUnavailable   = errors.New("service unavailable")
	ErrConflict      = errors.New("conflict")
	ErrSessionClosed = errors.New("session closed")

	// ErrCodeTaken is returned by Store.PutTemplate when the code already exists.
	ErrCodeTaken = errors.New("access code already issued")
)

// ValidationError names the offending field. errors.Is(err, ErrValidation) holds.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// unavailable wraps a backend failure unless it already carries a taxonomy error.
func unavailable(op string, err error) error {
	for _, known := range []error{ErrNotFound, ErrValidation, ErrGeneration, ErrUnavailable, ErrConflict, ErrSessionClosed, ErrCodeTaken} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
