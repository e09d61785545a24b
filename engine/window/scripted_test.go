package window

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-runtime/common"
)

func TestScriptedCloseAfter(t *testing.T) {
	w := NewScriptedWindow(320, 240, CloseAfter(3))
	for i := 1; i <= 3; i++ {
		if w.CloseRequested() {
			t.Fatalf("close requested before pump %d", i)
		}
		w.PumpEvents()
	}
	if !w.CloseRequested() {
		t.Error("close not requested after 3 pumps")
	}
}

func TestScriptedEvents(t *testing.T) {
	w := NewScriptedWindow(100, 100,
		ResizeAt(2, 0, 0),
		ResizeAt(3, 640, 480),
		KeyAt(1, common.KeyW, true),
		KeyAt(3, common.KeyW, false),
	)

	tests := []struct {
		name        string
		wantResized bool
		wantSize    [2]int
		wantHeld    bool
		pressed     int
		released    int
	}{
		{"press", false, [2]int{100, 100}, true, 1, 0},
		{"minimize", true, [2]int{0, 0}, true, 0, 0},
		{"restore and release", true, [2]int{640, 480}, false, 0, 1},
		{"quiet", false, [2]int{640, 480}, false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := w.PumpEvents()
			if ev.Resized != tt.wantResized {
				t.Errorf("Resized = %v, want %v", ev.Resized, tt.wantResized)
			}
			if gw, gh := w.FramebufferSize(); [2]int{gw, gh} != tt.wantSize {
				t.Errorf("size = %dx%d, want %v", gw, gh, tt.wantSize)
			}
			if ev.Input.IsHeld(common.KeyW) != tt.wantHeld {
				t.Errorf("held = %v, want %v", ev.Input.Held, tt.wantHeld)
			}
			if len(ev.Input.Pressed) != tt.pressed || len(ev.Input.Released) != tt.released {
				t.Errorf("pressed=%v released=%v", ev.Input.Pressed, ev.Input.Released)
			}
		})
	}
}

func TestRequestClose(t *testing.T) {
	w := NewScriptedWindow(10, 10)
	w.RequestClose()
	if !w.CloseRequested() {
		t.Fatal("close not requested")
	}
	if ev := w.PumpEvents(); !ev.CloseRequested {
		t.Error("pump did not report close")
	}
	if err := w.Close(); err != nil || !w.Closed() {
		t.Errorf("Close: %v", err)
	}
}
