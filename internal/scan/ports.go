package scan

import (
	"context"
	"image"
)

// Facing is a camera facing-mode hint.
type Facing string

const (
	FacingAny         Facing = ""
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// Device describes a camera the platform can open.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// Facing is the platform's own hint, when it has one.
	Facing Facing `json:"facing,omitempty"`
	// RearFacing is derived from Facing and Label; rear cameras are listed first.
	RearFacing bool `json:"rear_facing"`
}

// Constraints select the camera to open. DeviceID wins over Facing.
type Constraints struct {
	DeviceID string
	Facing   Facing
}

// MediaDevices is the camera capability the session consumes.
type MediaDevices interface {
	// EnumerateDevices lists cameras. Platforms may require a prior permission
	// grant and return ErrPermissionDenied otherwise.
	EnumerateDevices(ctx context.Context) ([]Device, error)
	// Open acquires an exclusive stream. Failures should wrap one of the
	// acquisition sentinels so callers can tell them apart.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an open camera. Close releases the hardware and must be safe to
// call while ReadFrame is blocked.
type Stream interface {
	ReadFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// TorchController is implemented by streams whose track exposes a torch.
type TorchController interface {
	SetTorch(ctx context.Context, on bool) error
}

// Decoder finds a QR code in a frame. ok is false when the frame holds no
// readable code; that is not an error.
type Decoder interface {
	Decode(frame image.Image) (text string, ok bool)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(frame image.Image) (string, bool)

func (f DecoderFunc) Decode(frame image.Image) (string, bool) {
	return f(frame)
}
