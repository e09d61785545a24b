package scheduler

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
	"github.com/Carmen-Shannon/oxy-runtime/engine/loader"
	"github.com/Carmen-Shannon/oxy-runtime/engine/resource"
	"github.com/Carmen-Shannon/oxy-runtime/engine/surface"
	"github.com/Carmen-Shannon/oxy-runtime/engine/window"
)

// TimeUniform is the per-frame time block shaders read as TimeUniform (8 bytes).
type TimeUniform struct {
	DeltaTime            float32
	TimeSinceStartMillis uint32
}

// newTimeUniform derives the uniform from the frame's clock. Milliseconds wrap at math.MaxUint32.
func newTimeUniform(start, now time.Time, delta time.Duration) TimeUniform {
	ms := now.Sub(start).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return TimeUniform{
		DeltaTime:            float32(delta.Seconds()),
		TimeSinceStartMillis: uint32(uint64(ms) % math.MaxUint32),
	}
}

// Marshal serializes the uniform into little-endian bytes for upload.
func (t TimeUniform) Marshal() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(t.DeltaTime))
	binary.LittleEndian.PutUint32(buf[4:], t.TimeSinceStartMillis)
	return buf
}

// Loaded is content that arrived from the loader during this frame's update phase.
// Handle is zero for shader sources, which are not uploaded. The handle belongs to the scheduler;
// Retain it to keep the resource.
type Loaded struct {
	Content loader.Content
	Handle  resource.Handle
}

// FrameState is the transient data of one frame. It is created at the start of a tick and must not be
// kept past it.
type FrameState struct {
	Frame uint64
	Now   time.Time
	Delta time.Duration
	Time  TimeUniform

	// Input is the snapshot taken during the event pump.
	Input window.Input

	// Loaded lists content uploaded during this frame's update phase.
	Loaded []Loaded

	Registry resource.Registry

	// Size is the surface size at the start of the frame.
	Size surface.Descriptor

	// Target, Encoder and Pass are only set during the record phase.
	Target  *surface.FrameTarget
	Encoder gpu.CommandEncoder
	Pass    gpu.RenderPass
}
