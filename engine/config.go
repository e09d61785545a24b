package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
)

// Target selects what the engine presents to.
type Target int

const (
	// TargetNativeWindow opens a desktop window.
	TargetNativeWindow Target = iota
	// TargetWebCanvas binds to a canvas element on the web target.
	TargetWebCanvas
)

func (t Target) String() string {
	if t == TargetWebCanvas {
		return "web-canvas"
	}
	return "native-window"
}

// ParseTarget converts "native-window" / "native" or "web-canvas" / "canvas" into a Target.
//
// Parameters:
//   - s: the case-insensitive target name
//
// Returns:
//   - Target: the parsed target
//   - error: an error if the name is not recognized
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "native", "native-window", "window":
		return TargetNativeWindow, nil
	case "web", "canvas", "web-canvas":
		return TargetWebCanvas, nil
	}
	return TargetNativeWindow, fmt.Errorf("engine: unknown target %q", s)
}

// Config is everything Run needs to start the runtime.
type Config struct {
	Backend gpu.Backend
	Power   gpu.PowerPreference

	// Width and Height are the initial window size in pixels.
	Width  int
	Height int

	// CanvasID is the id of the canvas element when Target is TargetWebCanvas.
	Target   Target
	CanvasID string

	Title       string
	PresentMode gpu.PresentMode
	ClearColor  gpu.Color

	// FrameLimit caps frames per second, 0 is uncapped. MaxFrames stops the run after that many
	// frames, 0 runs until closed.
	FrameLimit float64
	MaxFrames  uint64
	Profiling  bool

	// ContentPath is a content directory or a .oxa archive; empty disables loading. Prefetch lists
	// assets queued on the loader right after startup.
	ContentPath string
	Prefetch    []string
}

// DefaultConfig returns a 1280x720 vsync native window on the automatically selected backend.
func DefaultConfig() Config {
	return Config{
		Backend:     gpu.BackendAuto,
		Power:       gpu.PowerPreferenceHighPerformance,
		Width:       1280,
		Height:      720,
		Target:      TargetNativeWindow,
		CanvasID:    "oxy",
		Title:       "oxy",
		PresentMode: gpu.PresentModeVSync,
		ClearColor:  gpu.Color{R: 0.1, G: 0.1, B: 0.12, A: 1},
	}
}

// Validate reports configuration errors that would make startup fail.
func (c Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("engine: initial size %dx%d must be positive", c.Width, c.Height))
	}
	if c.Target == TargetWebCanvas && c.CanvasID == "" {
		errs = append(errs, errors.New("engine: web-canvas target needs a canvas id"))
	}
	if c.FrameLimit < 0 {
		errs = append(errs, fmt.Errorf("engine: frame limit %v is negative", c.FrameLimit))
	}
	return errors.Join(errs...)
}
