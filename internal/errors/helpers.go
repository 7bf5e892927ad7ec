package errors

import (
	"fmt"
	"strings"
)

// Fallback text shown when a device failure carries no message of its own
const defaultDeviceUserMessage = "Could not access media devices."

// Common error creators for frequent use cases

// NewValidationError creates a validation error with field context
func NewValidationError(field, value, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithContext("value", value).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewConfigError reports an unusable configuration value
func NewConfigError(key string, cause error) *AppError {
	return Wrap(cause, ErrCodeInvalidConfig, fmt.Sprintf("invalid %s", key)).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Database operation failed")
}

// NewNotFoundError reports a missing resource. The identifier is shown to the
// user, so callers pass a display form of it.
func NewNotFoundError(resource, identifier string, cause error) *AppError {
	return Wrap(cause, ErrCodeNotFound, fmt.Sprintf("%s not found", strings.ToLower(resource))).
		WithContext("resource", resource).
		WithUserMessage(fmt.Sprintf("%s not found: %s", resource, identifier))
}

// Media device errors. The user messages are what the call panel renders.

// NewPermissionDeniedError reports that the host refused capture access
func NewPermissionDeniedError(cause error) *AppError {
	return Wrap(cause, ErrCodePermissionDenied, "media capture permission denied").
		WithUserMessage("Camera/mic permission denied.")
}

// NewDeviceNotFoundError reports that no matching capture device exists
func NewDeviceNotFoundError(cause error) *AppError {
	return Wrap(cause, ErrCodeDeviceNotFound, "no capture device found").
		WithUserMessage("No camera or microphone found.")
}

// NewDeviceBusyError reports that the device is held by another process
func NewDeviceBusyError(cause error) *AppError {
	return Wrap(cause, ErrCodeDeviceBusy, "capture device not readable").
		WithUserMessage("Camera/mic is already in use by another app.")
}

// NewUnsupportedError reports that the host has no media API at all
func NewUnsupportedError() *AppError {
	return New(ErrCodeUnsupported, "media devices unavailable").
		WithUserMessage("Media devices are not supported on this host.")
}

// NewDeviceError wraps any other device failure, surfacing its message
func NewDeviceError(cause error) *AppError {
	userMsg := defaultDeviceUserMessage
	if cause != nil && strings.TrimSpace(cause.Error()) != "" {
		userMsg = cause.Error()
	}
	return Wrap(cause, ErrCodeDeviceError, "media device failure").
		WithUserMessage(userMsg)
}

// NewAcquireCancelledError reports an acquisition whose result arrived after
// the call was torn down
func NewAcquireCancelledError(cause error) *AppError {
	return Wrap(cause, ErrCodeAcquireCancelled, "media acquisition cancelled")
}

// IsDeviceError reports whether err belongs to the device taxonomy
func IsDeviceError(err error) bool {
	switch GetCode(err) {
	case ErrCodePermissionDenied, ErrCodeDeviceNotFound, ErrCodeDeviceBusy,
		ErrCodeUnsupported, ErrCodeDeviceError:
		return true
	default:
		return false
	}
}

// HTTP helpers

// HTTPStatusCode is the response status for err
func HTTPStatusCode(err error) int {
	return GetCode(err).HTTPStatus()
}

// HTTPErrorResponse is the standardized HTTP error body
type HTTPErrorResponse struct {
	Error struct {
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Context interface{} `json:"context,omitempty"`
	} `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ToHTTPResponse converts an error to a standardized HTTP response
func ToHTTPResponse(err error, requestID string) HTTPErrorResponse {
	response := HTTPErrorResponse{
		RequestID: requestID,
	}

	if appErr, ok := As(err); ok {
		response.Error.Code = appErr.Code
		response.Error.Message = GetUserMessage(err)
		if len(appErr.Context) > 0 {
			publicContext := make(map[string]interface{})
			for k, v := range appErr.Context {
				if k != "password" && k != "token" && k != "secret" {
					publicContext[k] = v
				}
			}
			if len(publicContext) > 0 {
				response.Error.Context = publicContext
			}
		}
	} else {
		response.Error.Code = ErrCodeInternalError
		response.Error.Message = GetUserMessage(err)
	}

	return response
}
