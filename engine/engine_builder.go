package engine

import (
	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
	"github.com/Carmen-Shannon/oxy-runtime/engine/scheduler"
	"github.com/Carmen-Shannon/oxy-runtime/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithWindow sets a custom configured window for the engine to use rather than allowing the engine
// to create and manage one internally. The engine does not close windows it did not create.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithScene registers a scene at the given z-index key during engine construction.
// Scenes update and record in ascending key order.
//
// Parameters:
//   - key: the z-index determining render order (lower renders first)
//   - s: the Scene to register
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(key int, s scheduler.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scenes[key] = s
	}
}

// WithSetup registers a function run after startup and before the first frame. Setups typically create
// pipelines and register scenes that need the registry. An error aborts Run with ExitInitFailure.
//
// Parameters:
//   - fn: the setup function
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSetup(fn func(rt *Runtime) error) EngineBuilderOption {
	return func(e *engine) {
		e.setups = append(e.setups, fn)
	}
}

// WithGPUDriver sets the driver the GPU context is created on, typically gpu.NewHeadlessDriver().
//
// Parameters:
//   - d: the GPU driver
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithGPUDriver(d gpu.Driver) EngineBuilderOption {
	return func(e *engine) {
		e.gpuDriver = d
	}
}

// WithFrameDriver sets the driver deciding when frames tick. The default is the platform's
// scheduler.DefaultDriver().
//
// Parameters:
//   - d: the frame driver
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFrameDriver(d scheduler.Driver) EngineBuilderOption {
	return func(e *engine) {
		e.frameDriver = d
	}
}

// WithSchedulerOptions passes extra options to the frame scheduler.
//
// Parameters:
//   - options: scheduler options, applied after the ones derived from Config
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSchedulerOptions(options ...scheduler.SchedulerBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.schedOptions = append(e.schedOptions, options...)
	}
}
