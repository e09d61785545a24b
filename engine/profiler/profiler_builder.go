package profiler

import (
	"sync/atomic"
	"time"
)

type ProfilerBuilderOption func(*Profiler)

// WithEnabled turns recording on or off. A disabled profiler records nothing and never logs.
//
// Parameters:
//   - enabled: whether the profiler records
//
// Returns:
//   - ProfilerBuilderOption: a function that sets the enabled flag
func WithEnabled(enabled bool) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.enabled = enabled
	}
}

// WithInterval sets how often Tick logs statistics.
//
// Parameters:
//   - d: the report interval
//
// Returns:
//   - ProfilerBuilderOption: a function that sets the interval
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.updateInterval = d
	}
}

// WithCapacity sets the number of samples the span ring holds. Values below 1 are ignored.
//
// Parameters:
//   - n: the ring size
//
// Returns:
//   - ProfilerBuilderOption: a function that sets the ring size
func WithCapacity(n int) ProfilerBuilderOption {
	return func(p *Profiler) {
		if n > 0 {
			p.ring = make([]atomic.Pointer[Sample], n)
		}
	}
}

// WithClock replaces time.Now.
//
// Parameters:
//   - now: the clock function
//
// Returns:
//   - ProfilerBuilderOption: a function that sets the clock
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
	}
}
