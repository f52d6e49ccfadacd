package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a namespaced error code for skill-fleet errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Database error codes
const (
	DB_OPEN_FAILED      ErrorCode = "DB_OPEN_FAILED"
	DB_MIGRATION_FAILED ErrorCode = "DB_MIGRATION_FAILED"
	DB_QUERY_FAILED     ErrorCode = "DB_QUERY_FAILED"
)

// Taxonomy repository error codes
const (
	TAXONOMY_PATH_INVALID  ErrorCode = "TAXONOMY_PATH_INVALID"
	TAXONOMY_WRITE_FAILED  ErrorCode = "TAXONOMY_WRITE_FAILED"
	TAXONOMY_READ_FAILED   ErrorCode = "TAXONOMY_READ_FAILED"
	TAXONOMY_SKILL_EXISTS  ErrorCode = "TAXONOMY_SKILL_EXISTS"
	TAXONOMY_SKILL_MISSING ErrorCode = "TAXONOMY_SKILL_MISSING"
)

// FleetError is a structured error with a code, message, and optional cause.
// It supports error wrapping and carries a retryability hint used by the
// inference gateway to decide whether an operation is worth reattempting.
type FleetError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
// Format: "[CODE] message" or "[CODE] message: cause" if a cause exists.
func (e *FleetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *FleetError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so errors.Is works across wrapped instances.
func (e *FleetError) Is(target error) bool {
	var fleetErr *FleetError
	if errors.As(target, &fleetErr) {
		return e.Code == fleetErr.Code
	}
	return false
}

// NewError creates a non-retryable FleetError.
func NewError(code ErrorCode, message string) *FleetError {
	return &FleetError{
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// NewRetryableError creates a retryable FleetError. Use this for transient
// failures that may succeed on retry, such as network timeouts.
func NewRetryableError(code ErrorCode, message string) *FleetError {
	return &FleetError{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// WrapError creates a non-retryable FleetError wrapping an existing error.
func WrapError(code ErrorCode, message string, cause error) *FleetError {
	return &FleetError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}
