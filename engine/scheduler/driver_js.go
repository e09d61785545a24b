//go:build js && wasm

package scheduler

import (
	"syscall/js"
	"time"
)

// DefaultDriver returns a HostDriver scheduled by the browser's requestAnimationFrame.
func DefaultDriver() Driver {
	return NewHostDriver(requestAnimationFrame)
}

func requestAnimationFrame(cb func(now time.Time)) {
	var fn js.Func
	fn = js.FuncOf(func(this js.Value, args []js.Value) any {
		fn.Release()
		cb(time.Now())
		return nil
	})
	js.Global().Call("requestAnimationFrame", fn)
}
