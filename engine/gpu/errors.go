package gpu

import "errors"

var (
	// ErrNoCompatibleAdapter is returned by Initialize when no adapter satisfies the requested backend.
	ErrNoCompatibleAdapter = errors.New("gpu: no compatible adapter")

	// ErrDeviceCreationFailed is returned by Initialize when the adapter refuses to create a device.
	ErrDeviceCreationFailed = errors.New("gpu: device creation failed")

	// ErrContextDestroyed is returned by any Context operation after Destroy.
	ErrContextDestroyed = errors.New("gpu: context destroyed")

	// ErrSurfaceLost reports a swapchain that must be reconfigured before it can be used again.
	ErrSurfaceLost = errors.New("gpu: surface lost or outdated")

	// ErrSurfaceTimeout reports a swapchain image that was not available in time.
	ErrSurfaceTimeout = errors.New("gpu: surface acquire timed out")
)
