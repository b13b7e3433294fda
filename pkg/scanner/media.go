package scanner

import (
	"context"
	"image"
)

type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionPrompt  PermissionState = "prompt"
	PermissionDenied  PermissionState = "denied"
)

// Grantable reports whether opening a stream may still succeed.
func (p PermissionState) Grantable() bool {
	return p == PermissionGranted || p == PermissionPrompt
}

type FacingMode string

const (
	FacingEnvironment FacingMode = "environment"
	FacingUser        FacingMode = "user"
)

// Constraints are soft preferences. Devices pick the closest mode they support.
type Constraints struct {
	FacingMode  FacingMode `json:"facing_mode"`
	IdealWidth  int        `json:"ideal_width"`
	IdealHeight int        `json:"ideal_height"`
}

func DefaultConstraints() Constraints {
	return Constraints{
		FacingMode:  FacingEnvironment,
		IdealWidth:  640,
		IdealHeight: 480,
	}
}

// MediaDevices is the camera capability the CameraScanner acquires streams from.
type MediaDevices interface {
	HasVideoInput(ctx context.Context) (bool, error)
	Permission(ctx context.Context) (PermissionState, error)
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a live video source. ReadFrame returns ErrFrameNotReady until the
// first frame has been buffered.
type Stream interface {
	ReadFrame() (image.Image, error)
	Stop()
	Live() bool
}
