package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeApplication  ErrorType = "application"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeCanceled     ErrorType = "canceled"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInternal     ErrorType = "internal"
)

// User-facing messages shown in the widget's error area.
const (
	MsgNotImage      = "Please upload an image file."
	MsgLoginRequired = "You need to be logged in to upload images."
	MsgUploadFailed  = "An error occurred while uploading the image."
	MsgUploadAborted = "The upload was cancelled."
)

// MsgBatchLimit formats the message shown when a selection exceeds the batch limit.
func MsgBatchLimit(limit int) string {
	return fmt.Sprintf("You can upload a maximum of %d images at once.", limit)
}

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewNetworkError creates a new network error. statusCode is the upstream
// status when one was received, zero when the request never completed.
func NewNetworkError(message string, statusCode int, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeNetwork,
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// NewUnauthorizedError creates an error for a rejected (401/403) upload
func NewUnauthorizedError(message string, statusCode int, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// NewApplicationError wraps an error reported by the analysis server in an
// otherwise successful response. The message is shown verbatim.
func NewApplicationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeApplication,
		Message:    message,
		StatusCode: http.StatusOK,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeTimeout,
		Message:    message,
		StatusCode: http.StatusGatewayTimeout,
		Cause:      cause,
	}
}

// NewCanceledError creates an error for an upload aborted by its batch
func NewCanceledError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeCanceled,
		Message:    message,
		StatusCode: 499,
		Cause:      cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
		Cause:      cause,
	}
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if appErr, ok := As(err); ok {
		return appErr.Type == errorType
	}
	return false
}

// As finds the first *AppError in err's tree, including joined errors
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	if appErr, ok := As(err); ok && appErr.StatusCode >= 400 && appErr.StatusCode < 600 {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// UserMessage returns the text the widget shows for err.
func UserMessage(err error) string {
	appErr, ok := As(err)
	if !ok {
		return MsgUploadFailed
	}
	switch appErr.Type {
	case ErrorTypeValidation, ErrorTypeApplication, ErrorTypeUnauthorized:
		return appErr.Message
	case ErrorTypeCanceled:
		return MsgUploadAborted
	default:
		return MsgUploadFailed
	}
}
