package window

import (
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// ScriptedWindow is a Window without a platform surface that replays a fixed event script.
// It backs headless runs and tests; pair it with the headless GPU driver.
type ScriptedWindow struct {
	mu         sync.Mutex
	width      int
	height     int
	closeAfter int
	pumps      int
	script     map[int][]func(*eventQueue)
	queue      eventQueue
	closed     bool
}

var _ Window = &ScriptedWindow{}

// ScriptOption adds an entry to a ScriptedWindow's script.
type ScriptOption func(*ScriptedWindow)

// CloseAfter makes the window request close once n pumps have completed, so exactly n frames run.
// Zero never closes.
//
// Parameters:
//   - n: the number of pumps before close is requested
//
// Returns:
//   - ScriptOption: the script entry
func CloseAfter(n int) ScriptOption {
	return func(w *ScriptedWindow) {
		w.closeAfter = n
	}
}

// ResizeAt delivers a resize during the given pump (1-based).
//
// Parameters:
//   - pump: the pump that delivers the event
//   - width, height: the new framebuffer size
//
// Returns:
//   - ScriptOption: the script entry
func ResizeAt(pump, width, height int) ScriptOption {
	return func(w *ScriptedWindow) {
		w.at(pump, func(q *eventQueue) { q.resize(width, height) })
	}
}

// KeyAt delivers a key transition during the given pump (1-based).
//
// Parameters:
//   - pump: the pump that delivers the event
//   - code: the key code
//   - down: true for press, false for release
//
// Returns:
//   - ScriptOption: the script entry
func KeyAt(pump int, code uint32, down bool) ScriptOption {
	return func(w *ScriptedWindow) {
		w.at(pump, func(q *eventQueue) { q.key(code, down) })
	}
}

// NewScriptedWindow creates a ScriptedWindow with the given framebuffer size.
//
// Parameters:
//   - width, height: the initial framebuffer size
//   - options: script entries
//
// Returns:
//   - *ScriptedWindow: the window
func NewScriptedWindow(width, height int, options ...ScriptOption) *ScriptedWindow {
	w := &ScriptedWindow{width: width, height: height, script: make(map[int][]func(*eventQueue))}
	for _, option := range options {
		option(w)
	}
	return w
}

func (w *ScriptedWindow) at(pump int, event func(*eventQueue)) {
	w.script[pump] = append(w.script[pump], event)
}

// SurfaceDescriptor returns nil; scripted windows have no platform surface.
func (w *ScriptedWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return nil
}

func (w *ScriptedWindow) FramebufferSize() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

func (w *ScriptedWindow) PumpEvents() Events {
	w.mu.Lock()
	w.pumps++
	events := w.script[w.pumps]
	w.mu.Unlock()

	for _, event := range events {
		event(&w.queue)
	}
	ev := w.queue.drain()

	w.mu.Lock()
	defer w.mu.Unlock()
	if ev.Resized {
		w.width, w.height = ev.Width, ev.Height
	}
	return ev
}

// RequestClose asks the window to close, as a user clicking the close button would.
func (w *ScriptedWindow) RequestClose() {
	w.queue.requestClose()
}

func (w *ScriptedWindow) CloseRequested() bool {
	w.mu.Lock()
	reached := w.closeAfter > 0 && w.pumps >= w.closeAfter
	w.mu.Unlock()
	return reached || w.queue.closing()
}

func (w *ScriptedWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// Pumps returns how many times PumpEvents has been called.
func (w *ScriptedWindow) Pumps() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pumps
}

// Closed reports whether Close has been called.
func (w *ScriptedWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
