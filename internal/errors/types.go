package errors

import (
	stderrors "errors"
	"net/http"
	"strings"
)

// ErrorCode classifies an AppError and fixes its HTTP status
type ErrorCode string

const (
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// settings store
	ErrCodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	ErrCodeDatabaseQuery      ErrorCode = "DATABASE_QUERY"

	// media devices
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrCodeDeviceNotFound   ErrorCode = "DEVICE_NOT_FOUND"
	ErrCodeDeviceBusy       ErrorCode = "DEVICE_BUSY"
	ErrCodeUnsupported      ErrorCode = "UNSUPPORTED"
	ErrCodeDeviceError      ErrorCode = "DEVICE_ERROR"
	ErrCodeAcquireCancelled ErrorCode = "ACQUIRE_CANCELLED"

	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeTimeout       ErrorCode = "TIMEOUT"
)

var codeStatus = map[ErrorCode]int{
	ErrCodeInvalidConfig:      http.StatusBadRequest,
	ErrCodeInvalidInput:       http.StatusBadRequest,
	ErrCodeValidationFailed:   http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeTimeout:            http.StatusRequestTimeout,
	ErrCodePermissionDenied:   http.StatusForbidden,
	ErrCodeDeviceNotFound:     http.StatusConflict,
	ErrCodeDeviceBusy:         http.StatusConflict,
	ErrCodeDeviceError:        http.StatusConflict,
	ErrCodeUnsupported:        http.StatusNotImplemented,
	ErrCodeDatabaseConnection: http.StatusServiceUnavailable,
	ErrCodeDatabaseQuery:      http.StatusServiceUnavailable,
}

// HTTPStatus is the response status for errors of this code. Unknown codes
// and ACQUIRE_CANCELLED are internal errors.
func (c ErrorCode) HTTPStatus() int {
	if status, ok := codeStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

const defaultUserMessage = "An internal error occurred"

// AppError is an error with a code, optional cause and context, and the text
// shown to the user
type AppError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Cause       error                  `json:"-"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Retryable   bool                   `json:"retryable"`
	UserMessage string                 `json:"user_message,omitempty"`
}

// Error renders "CODE: message[: cause]"
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair and returns e for chaining
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{}, 1)
	}
	e.Context[key] = value
	return e
}

// WithUserMessage sets the text shown to the user
func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches code and message to a cause, which may be nil
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// WrapRetryable is Wrap for failures worth another attempt
func WrapRetryable(err error, code ErrorCode, message string) *AppError {
	appErr := Wrap(err, code, message)
	appErr.Retryable = true
	return appErr
}

// As finds the first AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsRetryable(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Retryable
}

// GetCode returns err's code, INTERNAL_ERROR when err is not an AppError
func GetCode(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrCodeInternalError
}

// HasCode reports whether err carries the given code
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// GetUserMessage returns the text to show for err, never internal details
func GetUserMessage(err error) string {
	if appErr, ok := As(err); ok && appErr.UserMessage != "" {
		return appErr.UserMessage
	}
	return defaultUserMessage
}
