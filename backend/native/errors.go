package native

import "errors"

// Errors returned by Device.
var (
	// ErrNilDevice is returned by New without a HAL device or queue.
	ErrNilDevice = errors.New("native: device is nil")

	// ErrNoGPU is returned by Open when no adapter is available.
	ErrNoGPU = errors.New("native: no GPU adapter available")

	// ErrNoHAL is returned by NewFromProvider when the provider does not
	// expose HAL objects.
	ErrNoHAL = errors.New("native: provider does not expose HAL device and queue")

	// ErrUnknownResource is returned for IDs the device never issued or
	// already destroyed.
	ErrUnknownResource = errors.New("native: unknown resource")

	// ErrNoRenderTarget is returned by draws without a color or depth target.
	ErrNoRenderTarget = errors.New("native: no render target bound")

	// ErrNoProgram is returned by draws without vertex and fragment modules.
	ErrNoProgram = errors.New("native: no shader program bound")

	// ErrOutOfBounds is returned when a region exceeds its texture level.
	ErrOutOfBounds = errors.New("native: region out of bounds")

	// ErrFormatMismatch is returned by copies between incompatible textures.
	ErrFormatMismatch = errors.New("native: texture formats differ")

	// ErrShortData is returned by uploads with fewer bytes than the region.
	ErrShortData = errors.New("native: short texture data")

	// ErrTimeout is returned when the GPU does not finish within the fence timeout.
	ErrTimeout = errors.New("native: GPU wait timed out")
)
