package surface

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
)

var (
	// ErrSurfaceLost is returned by AcquireFrame when the platform invalidated the surface.
	// Recover by calling Reconfigure.
	ErrSurfaceLost = gpu.ErrSurfaceLost

	// ErrTimeout is returned by AcquireFrame when no image became available in time. Skip the frame.
	ErrTimeout = gpu.ErrSurfaceTimeout

	// ErrFrameInFlight is returned when a FrameTarget is still live.
	ErrFrameInFlight = errors.New("surface: frame target already acquired")

	// ErrFrameNotLive is returned by Present for a target that was already presented or discarded.
	ErrFrameNotLive = errors.New("surface: frame target is not live")

	// ErrReleased is returned by every operation after Release.
	ErrReleased = errors.New("surface: released")
)
