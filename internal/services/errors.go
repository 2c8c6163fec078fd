package services

import (
	"errors"

	apperrors "github.com/SAP-F-2025/assessment-runner/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Taxonomy shared with the backend client and the media resolver
	ErrAuthRequired    = apperrors.ErrAuthRequired
	ErrNotFound        = apperrors.ErrNotFound
	ErrNetwork         = apperrors.ErrNetwork
	ErrUpload          = apperrors.ErrUpload
	ErrUnsupportedType = apperrors.ErrUnsupportedType

	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")

	// Session specific errors
	ErrSessionNotFound     = errors.New("session not found")
	ErrTestNotFound        = errors.New("no test matches selector")
	ErrQuestionNotInTest   = errors.New("question does not belong to this session")
	ErrAlreadySubmitted    = errors.New("attempt already submitted")
	ErrSessionAccessDenied = errors.New("session belongs to another client")

	errAttemptWithoutID = errors.New("backend returned an attempt without an id")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrTestNotFound) ||
		errors.Is(err, ErrQuestionNotInTest)
}

// IsAuthRequired checks if the participant has to log in again
func IsAuthRequired(err error) bool {
	return errors.Is(err, ErrAuthRequired)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrSessionAccessDenied)
}

// IsNetwork checks if the backend could not be reached or failed
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

func IsUpload(err error) bool {
	return errors.Is(err, ErrUpload)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) || errors.Is(err, ErrBadRequest) || errors.Is(err, ErrUnsupportedType) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsConflict checks if error represents a state conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadySubmitted)
}
