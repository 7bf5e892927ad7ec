package media

import (
	"context"
	stderrors "errors"

	"roomchat/internal/errors"
)

// Constraints selects the kinds of media to capture
type Constraints struct {
	Audio bool
	Video bool
}

// Devices is the host media subsystem
type Devices interface {
	// GetUserMedia blocks until the host grants or refuses capture
	GetUserMedia(ctx context.Context, constraints Constraints) (*Stream, error)
}

// Failures a Devices implementation reports. Any other error is treated as a
// generic device failure.
var (
	ErrNotAllowed  = stderrors.New("media capture not allowed")
	ErrNotFound    = stderrors.New("requested capture device not found")
	ErrNotReadable = stderrors.New("capture device could not be read")
	ErrUnsupported = stderrors.New("media capture not supported")
)

// Classify maps a host failure onto the device error taxonomy
func Classify(err error) *errors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := errors.As(err); ok &&
		(errors.IsDeviceError(appErr) || appErr.Code == errors.ErrCodeAcquireCancelled) {
		return appErr
	}

	switch {
	case stderrors.Is(err, ErrNotAllowed):
		return errors.NewPermissionDeniedError(err)
	case stderrors.Is(err, ErrNotFound):
		return errors.NewDeviceNotFoundError(err)
	case stderrors.Is(err, ErrNotReadable):
		return errors.NewDeviceBusyError(err)
	case stderrors.Is(err, ErrUnsupported):
		return errors.NewUnsupportedError()
	case stderrors.Is(err, context.Canceled):
		return errors.NewAcquireCancelledError(err)
	default:
		return errors.NewDeviceError(err)
	}
}
