package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Qredence/skill-fleet/internal/types"
)

// LLM error codes follow the skill-fleet namespaced error pattern.
const (
	// Provider errors
	ErrProviderNotFound      types.ErrorCode = "LLM_PROVIDER_NOT_FOUND"
	ErrProviderInitFailed    types.ErrorCode = "LLM_PROVIDER_INIT_FAILED"
	ErrProviderUnavailable   types.ErrorCode = "LLM_PROVIDER_UNAVAILABLE"
	ErrProviderUnauthorized  types.ErrorCode = "LLM_PROVIDER_UNAUTHORIZED"
	ErrProviderRateLimited   types.ErrorCode = "LLM_PROVIDER_RATE_LIMITED"
	ErrProviderInvalidInput  types.ErrorCode = "LLM_PROVIDER_INVALID_INPUT"
	ErrProviderAlreadyExists types.ErrorCode = "LLM_PROVIDER_ALREADY_EXISTS"

	// Request errors
	ErrInvalidRequest types.ErrorCode = "LLM_INVALID_REQUEST"

	// Completion errors
	ErrCompletionFailed    types.ErrorCode = "LLM_COMPLETION_FAILED"
	ErrStreamingFailed     types.ErrorCode = "LLM_STREAMING_FAILED"
	ErrResponseParseFailed types.ErrorCode = "LLM_RESPONSE_PARSE_FAILED"
	ErrTimeoutExceeded     types.ErrorCode = "LLM_TIMEOUT_EXCEEDED"
	ErrContextCanceled     types.ErrorCode = "LLM_CONTEXT_CANCELED"

	// Network errors
	ErrNetworkFailed types.ErrorCode = "LLM_NETWORK_FAILED"
)

// IsRetryable determines whether an error is transient and may succeed on
// retry. The inference gateway uses this to drive its backoff loop.
func IsRetryable(err error) bool {
	var fleetErr *types.FleetError
	if !errors.As(err, &fleetErr) {
		return false
	}

	if fleetErr.Retryable {
		return true
	}

	switch fleetErr.Code {
	// Transient transport and capacity failures
	case ErrNetworkFailed, ErrProviderRateLimited, ErrProviderUnavailable, ErrTimeoutExceeded:
		return true

	// Malformed model output may differ on a fresh sample
	case ErrResponseParseFailed:
		return true

	// User-initiated cancellation and auth failures never retry
	case ErrContextCanceled, ErrProviderUnauthorized:
		return false

	default:
		return false
	}
}

// NewProviderNotFoundError creates an error for an unknown provider name.
func NewProviderNotFoundError(providerName string) *types.FleetError {
	return types.NewError(ErrProviderNotFound, "provider not found: "+providerName)
}

// NewProviderUnavailableError creates a retryable error for a provider that
// is temporarily unreachable.
func NewProviderUnavailableError(providerName string, cause error) *types.FleetError {
	return &types.FleetError{
		Code:      ErrProviderUnavailable,
		Message:   "provider temporarily unavailable: " + providerName,
		Retryable: true,
		Cause:     cause,
	}
}

// NewRateLimitError creates a retryable error for rate limiting.
func NewRateLimitError(providerName string) *types.FleetError {
	return &types.FleetError{
		Code:      ErrProviderRateLimited,
		Message:   "rate limit exceeded for provider: " + providerName,
		Retryable: true,
	}
}

// NewAuthError creates an authentication error for a provider.
func NewAuthError(providerName string, cause error) *types.FleetError {
	return &types.FleetError{
		Code:    ErrProviderUnauthorized,
		Message: fmt.Sprintf("provider %q authentication failed", providerName),
		Cause:   cause,
	}
}

// NewInvalidRequestError creates an error for invalid requests.
func NewInvalidRequestError(message string) *types.FleetError {
	return types.NewError(ErrInvalidRequest, message)
}

// NewCompletionError creates an error for completion failures.
func NewCompletionError(message string, cause error) *types.FleetError {
	return types.WrapError(ErrCompletionFailed, message, cause)
}

// NewParseError creates a retryable error for model output that failed
// schema decoding. A fresh sample from the model may parse cleanly.
func NewParseError(message string, cause error) *types.FleetError {
	return &types.FleetError{
		Code:      ErrResponseParseFailed,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// NewTimeoutError creates a retryable error for timeout failures.
func NewTimeoutError(message string) *types.FleetError {
	return &types.FleetError{
		Code:      ErrTimeoutExceeded,
		Message:   message,
		Retryable: true,
	}
}

// NewNetworkError creates a retryable error for network failures.
func NewNetworkError(message string, cause error) *types.FleetError {
	return &types.FleetError{
		Code:      ErrNetworkFailed,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// TranslateError classifies generic provider errors into fleet errors based
// on message content. Errors that are already FleetErrors pass through.
func TranslateError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var fleetErr *types.FleetError
	if errors.As(err, &fleetErr) {
		return err
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "authentication") || strings.Contains(lower, "api key"):
		return NewAuthError(provider, err)
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests"):
		return NewRateLimitError(provider)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return NewTimeoutError(msg)
	case strings.Contains(lower, "network") || strings.Contains(lower, "connection"):
		return NewNetworkError(msg, err)
	case strings.Contains(lower, "not found"):
		return NewProviderNotFoundError(provider)
	default:
		return NewProviderUnavailableError(provider, err)
	}
}
