package scheduler

import (
	"context"
	"sync"
	"time"
)

// Driver decides when a Scheduler ticks. Drive returns once the scheduler has terminated.
type Driver interface {
	// Drive ticks s until it terminates. Cancelling ctx requests shutdown; Drive still waits for
	// the teardown tick.
	//
	// Parameters:
	//   - ctx: cancels the run
	//   - s: the scheduler
	//
	// Returns:
	//   - error: the scheduler's fatal error, nil after a requested shutdown
	Drive(ctx context.Context, s Scheduler) error
}

// LoopDriver ticks in a blocking loop on the calling goroutine. It is the native driver; call Drive from
// the main thread.
type LoopDriver struct {
	// Now defaults to time.Now.
	Now func() time.Time
}

var _ Driver = &LoopDriver{}

func (d *LoopDriver) Drive(ctx context.Context, s Scheduler) error {
	stop := context.AfterFunc(ctx, s.RequestShutdown)
	defer stop()

	now := d.Now
	if now == nil {
		now = time.Now
	}

	for {
		start := now()
		if res := s.Tick(start); res.Status == StatusTerminated {
			return s.Err()
		}

		limit := s.FrameLimit()
		if limit <= 0 {
			continue
		}
		if remaining := limit - now().Sub(start); remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
	}
}

// HostDriver ticks once per host frame callback and returns control in between. It is the web driver;
// RequestFrame is the host's requestAnimationFrame.
type HostDriver struct {
	requestFrame func(func(now time.Time))

	mu      sync.Mutex
	token   uint64
	ticking bool
	last    time.Time
	ticks   uint64
	done    chan struct{}
	once    sync.Once
	err     error
}

var _ Driver = &HostDriver{}

// NewHostDriver creates a HostDriver that schedules ticks through requestFrame. requestFrame must call
// the callback at most once, later, from the host's event loop.
//
// Parameters:
//   - requestFrame: registers a callback for the next host frame
//
// Returns:
//   - *HostDriver: the driver
func NewHostDriver(requestFrame func(func(now time.Time))) *HostDriver {
	return &HostDriver{requestFrame: requestFrame, done: make(chan struct{})}
}

// Start requests the first frame and returns immediately.
//
// Parameters:
//   - s: the scheduler
func (d *HostDriver) Start(s Scheduler) {
	d.schedule(s)
}

// Drive starts the driver and blocks until the scheduler terminates. On js/wasm blocking here keeps the
// Go program alive while the host invokes the frame callbacks.
func (d *HostDriver) Drive(ctx context.Context, s Scheduler) error {
	stop := context.AfterFunc(ctx, s.RequestShutdown)
	defer stop()

	d.Start(s)
	<-d.done
	return d.err
}

// Done is closed once the scheduler has terminated.
func (d *HostDriver) Done() <-chan struct{} {
	return d.done
}

// Ticks returns how many times the driver has ticked the scheduler.
func (d *HostDriver) Ticks() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ticks
}

func (d *HostDriver) schedule(s Scheduler) {
	d.mu.Lock()
	d.token++
	token := d.token
	d.mu.Unlock()

	d.requestFrame(func(now time.Time) {
		d.frame(s, token, now)
	})
}

// frame runs at most one tick. Callbacks from superseded requests, re-entrant calls and calls after
// termination do nothing.
func (d *HostDriver) frame(s Scheduler, token uint64, now time.Time) {
	d.mu.Lock()
	if d.ticking || token != d.token || d.finished() {
		d.mu.Unlock()
		return
	}
	d.token++
	limit := s.FrameLimit()
	if limit > 0 && !d.last.IsZero() && now.Sub(d.last) < limit {
		d.mu.Unlock()
		d.schedule(s)
		return
	}
	d.ticking = true
	d.last = now
	d.ticks++
	d.mu.Unlock()

	res := s.Tick(now)

	d.mu.Lock()
	d.ticking = false
	d.mu.Unlock()

	if res.Status == StatusTerminated {
		d.once.Do(func() {
			d.err = s.Err()
			close(d.done)
		})
		return
	}
	d.schedule(s)
}

func (d *HostDriver) finished() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}
