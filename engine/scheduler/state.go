package scheduler

import "fmt"

// State is the scheduler's lifecycle state.
type State int

const (
	// StateUninitialized is the state before the GPU context and surface exist.
	StateUninitialized State = iota
	// StateReady waits for the next tick.
	StateReady
	// StateRendering is held for the duration of one tick.
	StateRendering
	// StateShuttingDown releases registry entries, the surface and the device.
	StateShuttingDown
	// StateTerminated is final. Ticks do nothing.
	StateTerminated
)

var stateNames = [...]string{
	StateUninitialized: "uninitialized",
	StateReady:         "ready",
	StateRendering:     "rendering",
	StateShuttingDown:  "shutting-down",
	StateTerminated:    "terminated",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Phase is one step of a frame. Phases always run in declaration order.
type Phase int

const (
	PhaseEventPump Phase = iota
	PhaseUpdate
	PhaseRecord
	PhasePresent
)

var phaseNames = [...]string{
	PhaseEventPump: "event-pump",
	PhaseUpdate:    "update",
	PhaseRecord:    "record",
	PhasePresent:   "present",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Status is the outcome of one Tick.
type Status int

const (
	// StatusPresented means the frame ran every phase and was presented.
	StatusPresented Status = iota
	// StatusSkipped means no frame target was available; the next tick retries.
	StatusSkipped
	// StatusShuttingDown means a fatal error stopped the frame; the next tick tears down.
	StatusShuttingDown
	// StatusTerminated means the scheduler has released everything.
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusPresented:
		return "presented"
	case StatusSkipped:
		return "skipped"
	case StatusShuttingDown:
		return "shutting-down"
	case StatusTerminated:
		return "terminated"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// TickResult reports what one Tick did. Err holds the per-frame error, if any; it never escapes the tick
// in any other way.
type TickResult struct {
	Status Status
	Frame  uint64
	Err    error
}
