package window

import (
	"slices"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// Input is the input state captured by one PumpEvents call.
type Input struct {
	// Held lists every key down at the end of the pump, ascending.
	Held []uint32

	// Pressed and Released list key transitions since the previous pump, in arrival order.
	Pressed  []uint32
	Released []uint32

	// Scroll is the accumulated wheel delta (positive = up).
	Scroll float32

	CursorX, CursorY float64
}

// IsHeld reports whether key is down.
func (in Input) IsHeld(key uint32) bool {
	_, ok := slices.BinarySearch(in.Held, key)
	return ok
}

// Events is everything a window delivered since the previous PumpEvents call.
type Events struct {
	// Resized is set when the framebuffer size changed; Width and Height hold the newest size.
	Resized       bool
	Width, Height int

	CloseRequested bool

	Input Input
}

// Window is a native window or web canvas the engine renders into.
// It satisfies gpu.SurfaceTarget and only reports size, close intent and an input snapshot.
type Window interface {
	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is platform-appropriate (Windows HWND, X11 Xlib, Wayland, macOS Metal, or a canvas).
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform surface descriptor, or nil when the window has no platform surface
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// FramebufferSize returns the drawable size in pixels.
	//
	// Returns:
	//   - int, int: width and height in pixels
	FramebufferSize() (int, int)

	// PumpEvents polls the platform without blocking and returns the events gathered since the last call.
	//
	// Returns:
	//   - Events: the drained events
	PumpEvents() Events

	// CloseRequested reports whether the user or host asked the window to close.
	CloseRequested() bool

	// Close releases platform resources. It is safe to call more than once.
	//
	// Returns:
	//   - error: error if the platform fails to close the window
	Close() error
}

// engineWindow is the platform window shared by the GLFW and canvas back ends.
type engineWindow struct {
	title string

	maxWidth  int
	maxHeight int
	minWidth  int
	minHeight int

	width  int
	height int

	// canvasID selects the canvas element on the web target.
	canvasID string

	// internalWindow holds the platform-specific window data.
	internalWindow any

	queue eventQueue
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a platform window. On the web target it binds to an existing canvas.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the window
//   - error: error if the platform window cannot be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:     "oxy",
		maxWidth:  3840,
		maxHeight: 2160,
		minWidth:  320,
		minHeight: 200,
		width:     1280,
		height:    720,
		canvasID:  "oxy-canvas",
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) FramebufferSize() (int, int) {
	w.queue.mu.Lock()
	defer w.queue.mu.Unlock()
	return w.width, w.height
}

func (w *engineWindow) PumpEvents() Events {
	platformProcessMessages(w)
	ev := w.queue.drain()
	if ev.Resized {
		w.queue.mu.Lock()
		w.width, w.height = ev.Width, ev.Height
		w.queue.mu.Unlock()
	}
	return ev
}

func (w *engineWindow) CloseRequested() bool {
	return w.queue.closing() || !platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

// eventQueue accumulates platform callbacks between pumps. On the web target callbacks arrive from the
// JS event loop, so every access is locked.
type eventQueue struct {
	mu      sync.Mutex
	pending Events
	held    map[uint32]bool
	closed  bool
}

func (q *eventQueue) resize(width, height int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending.Resized = true
	q.pending.Width, q.pending.Height = width, height
}

func (q *eventQueue) key(code uint32, down bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.held == nil {
		q.held = make(map[uint32]bool)
	}
	if down {
		if !q.held[code] {
			q.pending.Input.Pressed = append(q.pending.Input.Pressed, code)
		}
		q.held[code] = true
		return
	}
	if q.held[code] {
		q.pending.Input.Released = append(q.pending.Input.Released, code)
	}
	delete(q.held, code)
}

func (q *eventQueue) scroll(delta float32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending.Input.Scroll += delta
}

func (q *eventQueue) cursor(x, y float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending.Input.CursorX, q.pending.Input.CursorY = x, y
}

func (q *eventQueue) requestClose() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.pending.CloseRequested = true
}

func (q *eventQueue) closing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *eventQueue) drain() Events {
	q.mu.Lock()
	defer q.mu.Unlock()
	ev := q.pending
	ev.Input.Held = make([]uint32, 0, len(q.held))
	for k := range q.held {
		ev.Input.Held = append(ev.Input.Held, k)
	}
	slices.Sort(ev.Input.Held)

	cx, cy := q.pending.Input.CursorX, q.pending.Input.CursorY
	q.pending = Events{}
	q.pending.Input.CursorX, q.pending.Input.CursorY = cx, cy
	return ev
}
