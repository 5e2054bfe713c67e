package errors

import (
	"net/http"

	"backer/internal/errors"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	return e.message
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() string {
	return e.details
}

// WithDetails adds detailed error information
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// Predefined error types
var (
	// Session-related errors
	ErrUnauthenticated = NewBaseError(
		http.StatusUnauthorized,
		"UNAUTHENTICATED",
		"no active session",
		"",
	)

	ErrInvalidCredentials = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_CREDENTIALS",
		"email or password is incorrect",
		"",
	)

	ErrIncompleteTokenPair = NewBaseError(
		http.StatusBadRequest,
		"INCOMPLETE_TOKEN_PAIR",
		"both an access token and a refresh token are required",
		"",
	)

	// Refresh-related errors
	ErrNoRefreshToken = NewBaseError(
		http.StatusUnauthorized,
		"NO_REFRESH_TOKEN",
		"no refresh token is stored",
		"",
	)

	ErrRefreshFailed = NewBaseError(
		http.StatusUnauthorized,
		"REFRESH_FAILED",
		"the refresh token was rejected",
		"",
	)

	// Permission-related errors
	ErrPermissionFetchFailed = NewBaseError(
		http.StatusBadGateway,
		"PERMISSION_FETCH_FAILED",
		"permissions could not be fetched",
		"",
	)

	// Storage-related errors
	ErrStorageUnavailable = NewBaseError(
		http.StatusInternalServerError,
		"STORAGE_UNAVAILABLE",
		"credential storage is unavailable",
		"",
	)

	// Remote logout failed but local state was cleared anyway.
	ErrRemoteLogoutFailed = NewBaseError(
		http.StatusBadGateway,
		"REMOTE_LOGOUT_FAILED",
		"the server-side logout call failed; the local session was cleared",
		"",
	)

	// Validation-related errors
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"input validation failed",
		"",
	)
)

// APIError represents a non-success response from the platform API,
// implementing the AppError interface. It preserves the original HTTP
// status and the server's business error code so callers can decide on
// user-visible messaging.
type APIError struct {
	statusCode int
	errorCode  string
	message    string
	details    string
}

// NewAPIError creates an error from a platform API response.
func NewAPIError(statusCode int, errorCode, message, details string) *APIError {
	if message == "" {
		message = http.StatusText(statusCode)
	}

	return &APIError{
		statusCode: statusCode,
		errorCode:  errorCode,
		message:    message,
		details:    details,
	}
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.errorCode != "" {
		return "api: " + e.errorCode + ": " + e.message
	}

	return "api: " + e.message
}

// HTTPCode returns the HTTP status code
func (e *APIError) HTTPCode() int {
	return e.statusCode
}

// ErrorCode returns the business error code
func (e *APIError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *APIError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *APIError) Details() string {
	return e.details
}

// IsUnauthorized reports whether err carries an HTTP 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.statusCode == http.StatusUnauthorized
	}

	return false
}
