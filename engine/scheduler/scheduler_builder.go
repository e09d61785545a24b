package scheduler

import (
	"time"

	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
	"github.com/Carmen-Shannon/oxy-runtime/engine/loader"
	"github.com/Carmen-Shannon/oxy-runtime/engine/profiler"
)

// SchedulerBuilderOption is a functional option for configuring a Scheduler via New.
type SchedulerBuilderOption func(*scheduler)

// WithLoader sets the content loader whose completed prefetches are uploaded during the update phase.
// The scheduler closes the loader on shutdown.
//
// Parameters:
//   - l: the loader
//
// Returns:
//   - SchedulerBuilderOption: option function to apply
func WithLoader(l loader.Loader) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.loader = l
	}
}

// WithProfiler sets the profiler that receives a span per frame phase.
//
// Parameters:
//   - p: the profiler, nil disables profiling
//
// Returns:
//   - SchedulerBuilderOption: option function to apply
func WithProfiler(p *profiler.Profiler) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.profiler = p
	}
}

// WithPhaseObserver registers a function called as each frame phase begins.
//
// Parameters:
//   - fn: called with the frame number and the phase
//
// Returns:
//   - SchedulerBuilderOption: option function to apply
func WithPhaseObserver(fn func(frame uint64, p Phase)) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.observer = fn
	}
}

// WithFrameLimit sets an optional frame rate cap in frames per second. Drivers sleep out the remainder
// of each frame. Pass 0 to uncap (default).
//
// Parameters:
//   - fps: maximum frames per second (0 = uncapped)
//
// Returns:
//   - SchedulerBuilderOption: option function to apply
func WithFrameLimit(fps float64) SchedulerBuilderOption {
	return func(s *scheduler) {
		if fps <= 0 {
			s.limit = 0
			return
		}
		s.limit = time.Duration(float64(time.Second) / fps)
	}
}

// WithMaxFrames shuts the scheduler down after n frames. Zero runs until a close request.
//
// Parameters:
//   - n: the frame count
//
// Returns:
//   - SchedulerBuilderOption: option function to apply
func WithMaxFrames(n uint64) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.maxFrames = n
	}
}

// WithClearColor sets the color the frame target is cleared to before scenes record.
//
// Parameters:
//   - c: the clear color
//
// Returns:
//   - SchedulerBuilderOption: option function to apply
func WithClearColor(c gpu.Color) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.clear = c
	}
}
