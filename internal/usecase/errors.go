package usecase

import (
	"errors"
	"fmt"

	"lms-backend/pkg/utils"
)

var (
	ErrNotFound = errors.New("not found")

	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrCourseNotFound     = fmt.Errorf("course %w", ErrNotFound)
	ErrEnrollmentNotFound = fmt.Errorf("enrollment %w", ErrNotFound)

	ErrAlreadyEnrolled     = errors.New("already enrolled in this course")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrAccountDisabled     = errors.New("account is deactivated")
)

// publicErrors are sentinels whose text is safe to return to clients.
var publicErrors = []error{
	ErrUserNotFound,
	ErrCourseNotFound,
	ErrEnrollmentNotFound,
	ErrAlreadyEnrolled,
	ErrPaymentNotCompleted,
	ErrEmailTaken,
	ErrInvalidCredentials,
	ErrAccountDisabled,
}

// PublicMessage returns the client-facing text of the first known sentinel in
// err's chain, or "" when there is none.
func PublicMessage(err error) string {
	for _, known := range publicErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ""
}

// ValidationError reports rejected request fields.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func invalidField(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + utils.FormatValidationErrors(e.Fields)
}
