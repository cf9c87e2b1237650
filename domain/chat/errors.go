package chat

import (
	"errors"
	"fmt"
)

// ValidationError reports bad caller input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError reports a missing resource. Resources hidden by ownership
// rules are reported the same way.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// AuthError reports a missing credential, or an invalid one when Forbidden is set.
type AuthError struct {
	Message   string
	Forbidden bool
}

func (e *AuthError) Error() string { return e.Message }

// ConflictError reports a uniqueness violation such as a taken username.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// PersistenceError wraps a storage failure. Only Op is safe to show clients.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// UpstreamError carries a failure from the completion API, status included.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
}

// NewValidationError returns a *ValidationError with the given message.
func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}

// NewNotFoundError returns a *NotFoundError with the given message.
func NewNotFoundError(msg string) error {
	return &NotFoundError{Message: msg}
}

// WrapPersistence tags err as a storage failure during op.
// Errors that already belong to the taxonomy pass through unchanged.
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTyped(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsNotFound reports whether err is a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsTyped reports whether err already carries a taxonomy type.
func IsTyped(err error) bool {
	var (
		ve *ValidationError
		nf *NotFoundError
		ae *AuthError
		ce *ConflictError
		pe *PersistenceError
		ue *UpstreamError
	)
	return errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &ae) ||
		errors.As(err, &ce) || errors.As(err, &pe) || errors.As(err, &ue)
}
