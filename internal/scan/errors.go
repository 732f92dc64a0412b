package scan

import "errors"

// Acquisition failures. Each maps to its own user-facing message; the session
// never retries on its own.
var (
	ErrPermissionDenied         = errors.New("camera permission denied")
	ErrDeviceNotFound           = errors.New("camera not found")
	ErrDeviceBusy               = errors.New("camera is in use by another application")
	ErrConstraintsUnsatisfiable = errors.New("no camera satisfies the requested constraints")
)

// Stream failures that end a running session.
var (
	ErrDeviceLost  = errors.New("camera disconnected")
	ErrStreamEnded = errors.New("camera stream ended")
)

// Lifecycle errors.
var (
	ErrSessionActive  = errors.New("scan session already active")
	ErrSessionStopped = errors.New("scan session stopped during start")
)

// IsAcquisitionError reports whether err is one of the categorized acquisition
// failures.
func IsAcquisitionError(err error) bool {
	return errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrDeviceNotFound) ||
		errors.Is(err, ErrDeviceBusy) ||
		errors.Is(err, ErrConstraintsUnsatisfiable)
}

// UserMessage returns the message shown to a volunteer for err.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Camera access was denied. Allow camera access in your browser or system settings and try again."
	case errors.Is(err, ErrDeviceNotFound):
		return "No camera was found on this device."
	case errors.Is(err, ErrDeviceBusy):
		return "The camera is being used by another application. Close it and try again."
	case errors.Is(err, ErrConstraintsUnsatisfiable):
		return "The selected camera is not available. Choose another camera and try again."
	case errors.Is(err, ErrDeviceLost), errors.Is(err, ErrStreamEnded):
		return "The camera stopped unexpectedly. Start scanning again."
	case errors.Is(err, ErrSessionActive):
		return "Scanning is already running."
	default:
		return "The camera could not be started."
	}
}
