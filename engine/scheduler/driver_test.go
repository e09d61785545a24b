package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-runtime/engine/window"
)

// fakeHost queues requestAnimationFrame callbacks until the test runs them.
type fakeHost struct {
	pending []func(time.Time)
	clock   time.Time
}

func (h *fakeHost) requestFrame(cb func(time.Time)) {
	h.pending = append(h.pending, cb)
}

// step runs the callbacks queued so far, each twice, and returns how many were queued.
func (h *fakeHost) step() int {
	queued := h.pending
	h.pending = nil
	for _, cb := range queued {
		h.clock = h.clock.Add(16 * time.Millisecond)
		cb(h.clock)
		cb(h.clock)
	}
	return len(queued)
}

func TestHostDriverTicksOncePerCallback(t *testing.T) {
	f := newFixture(t, []window.ScriptOption{window.CloseAfter(3)})
	host := &fakeHost{clock: time.Unix(100, 0)}
	d := NewHostDriver(host.requestFrame)

	d.Start(f.sched)
	if d.Ticks() != 0 {
		t.Fatalf("Start ticked synchronously")
	}

	for i := 1; i <= 3; i++ {
		if n := host.step(); n != 1 {
			t.Fatalf("step %d: %d callbacks queued, want 1", i, n)
		}
		if got := d.Ticks(); got != uint64(i) {
			t.Fatalf("step %d: ticks = %d", i, got)
		}
	}

	// the fourth callback observes the close request and terminates
	host.step()
	select {
	case <-d.Done():
	default:
		t.Fatal("driver not done after termination")
	}
	if f.sched.State() != StateTerminated {
		t.Errorf("State() = %v", f.sched.State())
	}
	if len(host.pending) != 0 {
		t.Errorf("%d frames requested after termination", len(host.pending))
	}
	if f.driver.Stats().Presents != 3 {
		t.Errorf("presents = %d, want 3", f.driver.Stats().Presents)
	}
}

func TestHostDriverFrameLimit(t *testing.T) {
	f := newFixture(t, nil, WithFrameLimit(50))
	host := &fakeHost{clock: time.Unix(100, 0)}
	d := NewHostDriver(host.requestFrame)
	d.Start(f.sched)

	// 16ms callbacks against a 20ms budget tick every other callback
	for range 6 {
		host.step()
	}
	if got := d.Ticks(); got != 3 {
		t.Errorf("ticks = %d, want 3", got)
	}
}

func TestHostDriverDrive(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	frames := make(chan func(time.Time), 1)
	d := NewHostDriver(func(cb func(time.Time)) { frames <- cb })

	done := make(chan error, 1)
	go func() { done <- d.Drive(ctx, f.sched) }()

	(<-frames)(time.Now())
	cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Drive: %v", err)
			}
			if f.sched.State() != StateTerminated {
				t.Errorf("State() = %v", f.sched.State())
			}
			return
		case cb := <-frames:
			cb(time.Now())
		case <-deadline:
			t.Fatal("Drive did not return after cancel")
		}
	}
}
