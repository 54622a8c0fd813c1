package acquisition

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrDeviceOpenFailed is returned when the device cannot be opened.
	ErrDeviceOpenFailed = errors.New("acquisition: device open failed")

	// ErrStreamStartFailed is returned when the stream cannot be started.
	ErrStreamStartFailed = errors.New("acquisition: stream start failed")

	// ErrAcquisitionFailed matches every *AcquisitionError.
	ErrAcquisitionFailed = errors.New("acquisition: acquisition failed")

	// ErrTimeout matches an *AcquisitionError with StatusTimeout.
	ErrTimeout = errors.New("acquisition: wait timed out")

	// ErrFrameReleased is returned when a frame is read after its lease ended.
	ErrFrameReleased = errors.New("acquisition: frame buffer released")

	// ErrNotStarted is returned when waiting on a session that was never started.
	ErrNotStarted = errors.New("acquisition: stream not started")

	// ErrStopped is returned when using a session after Stop.
	ErrStopped = errors.New("acquisition: session stopped")
)

// WaitStatus is the outcome code of a wait on the device.
type WaitStatus int

const (
	StatusOK WaitStatus = iota
	StatusTimeout
	StatusAbort
	StatusDeviceLost
)

// String returns the status name.
func (s WaitStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTimeout:
		return "timeout"
	case StatusAbort:
		return "abort"
	case StatusDeviceLost:
		return "device_lost"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// AcquisitionError reports a non-OK wait status.
type AcquisitionError struct {
	// Status is the wait status the device reported.
	Status WaitStatus

	// Err is the backend error, if any.
	Err error
}

// Error implements the error interface.
func (e *AcquisitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("acquisition: acq error %d (%s): %v", int(e.Status), e.Status, e.Err)
	}
	return fmt.Sprintf("acquisition: acq error %d (%s)", int(e.Status), e.Status)
}

// Unwrap returns the backend error.
func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// Is matches ErrAcquisitionFailed, and ErrTimeout for timeouts.
func (e *AcquisitionError) Is(target error) bool {
	switch target {
	case ErrAcquisitionFailed:
		return true
	case ErrTimeout:
		return e.Status == StatusTimeout
	}
	return false
}
