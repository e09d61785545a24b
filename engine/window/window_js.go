//go:build js && wasm

package window

import (
	"fmt"
	"syscall/js"

	"github.com/Carmen-Shannon/oxy-runtime/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// domKeyCodes maps KeyboardEvent.code onto the engine's GLFW-compatible key codes.
var domKeyCodes = map[string]uint32{
	"KeyW":       common.KeyW,
	"KeyA":       common.KeyA,
	"KeyS":       common.KeyS,
	"KeyD":       common.KeyD,
	"KeyQ":       common.KeyQ,
	"KeyE":       common.KeyE,
	"Space":      common.KeySpace,
	"Escape":     common.KeyEsc,
	"ArrowRight": common.KeyRight,
	"ArrowLeft":  common.KeyLeft,
	"ArrowDown":  common.KeyDown,
	"ArrowUp":    common.KeyUp,
}

// canvasWindow holds the canvas element and the JS callbacks registered on it.
type canvasWindow struct {
	canvas    js.Value
	listeners []listener
	closed    bool
}

type listener struct {
	target js.Value
	event  string
	fn     js.Func
}

// newPlatformWindow binds to the canvas with the configured id and sizes its drawing buffer to the
// element's CSS size times devicePixelRatio.
func newPlatformWindow(w *engineWindow) error {
	doc := js.Global().Get("document")
	canvas := doc.Call("getElementById", w.canvasID)
	if canvas.IsNull() || canvas.IsUndefined() {
		return fmt.Errorf("canvas %q not found", w.canvasID)
	}
	cw := &canvasWindow{canvas: canvas}
	w.internalWindow = cw

	w.width, w.height = syncCanvasSize(canvas)

	win := js.Global()
	cw.listen(win, "resize", func(js.Value) {
		width, height := syncCanvasSize(canvas)
		w.queue.resize(width, height)
	})
	cw.listen(win, "keydown", func(e js.Value) {
		if code, ok := domKeyCodes[e.Get("code").String()]; ok {
			w.queue.key(code, true)
		}
	})
	cw.listen(win, "keyup", func(e js.Value) {
		if code, ok := domKeyCodes[e.Get("code").String()]; ok {
			w.queue.key(code, false)
		}
	})
	cw.listen(canvas, "wheel", func(e js.Value) {
		w.queue.scroll(float32(-e.Get("deltaY").Float() / 100))
	})
	cw.listen(canvas, "mousemove", func(e js.Value) {
		w.queue.cursor(e.Get("offsetX").Float(), e.Get("offsetY").Float())
	})
	cw.listen(win, "pagehide", func(js.Value) {
		w.queue.requestClose()
	})

	common.Logger().Debug("canvas window bound")
	return nil
}

func (cw *canvasWindow) listen(target js.Value, event string, handle func(js.Value)) {
	fn := js.FuncOf(func(this js.Value, args []js.Value) any {
		handle(args[0])
		return nil
	})
	target.Call("addEventListener", event, fn)
	cw.listeners = append(cw.listeners, listener{target: target, event: event, fn: fn})
}

func syncCanvasSize(canvas js.Value) (int, int) {
	ratio := js.Global().Get("devicePixelRatio").Float()
	width := int(canvas.Get("clientWidth").Float() * ratio)
	height := int(canvas.Get("clientHeight").Float() * ratio)
	canvas.Set("width", width)
	canvas.Set("height", height)
	return width, height
}

func platformGetSurfaceDescriptor(w *engineWindow) *wgpu.SurfaceDescriptor {
	cw, ok := w.internalWindow.(*canvasWindow)
	if !ok || cw.closed {
		return nil
	}
	return &wgpu.SurfaceDescriptor{Canvas: cw.canvas}
}

func platformIsRunningCheck(w *engineWindow) bool {
	cw, ok := w.internalWindow.(*canvasWindow)
	return ok && !cw.closed
}

func platformCloseWindow(w *engineWindow) error {
	cw, ok := w.internalWindow.(*canvasWindow)
	if !ok {
		return fmt.Errorf("window is not initialized")
	}
	if cw.closed {
		return nil
	}
	cw.closed = true
	for _, l := range cw.listeners {
		l.target.Call("removeEventListener", l.event, l.fn)
		l.fn.Release()
	}
	cw.listeners = nil
	return nil
}

// platformProcessMessages is a no-op: browser events are delivered by the JS event loop between ticks.
func platformProcessMessages(w *engineWindow) {}
