package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing principal or balance.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate principal (email taken).
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation signals malformed client input.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden signals a policy denial.
	ErrForbidden = errors.New("forbidden")
	// ErrInsufficientCredits signals that the balance cannot cover the operation.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrStorageUnavailable signals a transient storage fault. Callers may retry.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrUnauthorized signals a missing, invalid or expired credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials signals a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken signals a malformed, expired or already used one-off token.
	ErrInvalidToken = errors.New("invalid token")
)

// ValidationError wraps ErrValidation with the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a validation error for a field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsRetryable reports whether err is a transient infrastructure fault.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
