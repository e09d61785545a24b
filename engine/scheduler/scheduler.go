package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-runtime/common"
	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
	"github.com/Carmen-Shannon/oxy-runtime/engine/loader"
	"github.com/Carmen-Shannon/oxy-runtime/engine/profiler"
	"github.com/Carmen-Shannon/oxy-runtime/engine/resource"
	"github.com/Carmen-Shannon/oxy-runtime/engine/surface"
	"github.com/Carmen-Shannon/oxy-runtime/engine/window"
	"go.uber.org/zap"
)

// Scene is a unit of per-frame work driven by the scheduler in ascending z-index order.
type Scene interface {
	// Active reports whether the scene takes part in the current frame.
	Active() bool

	// Update advances the scene. Returned errors are logged and do not stop the frame.
	Update(fs *FrameState) error

	// Record issues draw commands into fs.Pass. Returned errors are logged and do not stop the frame.
	Record(fs *FrameState) error
}

// Resizer is implemented by scenes that follow the surface size.
type Resizer interface {
	Resize(width, height int)
}

// Releaser is implemented by scenes holding registry handles. Release runs during shutdown before
// the registry is torn down.
type Releaser interface {
	Release() error
}

// Scheduler drives the per-frame cycle: event pump, update, record, then submit and present.
// Tick is not safe for concurrent use; RequestShutdown may be called from any goroutine.
type Scheduler interface {
	// Tick runs one frame. A shutdown request seen at the top of the tick tears everything down
	// instead of starting GPU work.
	//
	// Parameters:
	//   - now: the frame timestamp
	//
	// Returns:
	//   - TickResult: what the tick did; per-frame errors are reported here and never panic or escape
	Tick(now time.Time) TickResult

	// RequestShutdown asks the scheduler to shut down at the top of the next tick.
	RequestShutdown()

	// State returns the current lifecycle state.
	State() State

	// Frame returns the number of frames started so far.
	Frame() uint64

	// FrameLimit returns the minimum frame duration, 0 when uncapped.
	FrameLimit() time.Duration

	// Err returns the fatal error that caused shutdown, or nil for a requested shutdown.
	Err() error

	// AddScene registers a scene at the given z-index key. Lower keys update and record first.
	//
	// Parameters:
	//   - key: the z-index
	//   - s: the scene
	AddScene(key int, s Scene)

	// RemoveScene removes the scene at key.
	RemoveScene(key int)

	// Scene returns the scene at key, or nil.
	Scene(key int) Scene

	// Prefetch queues assets on the loader. Completed assets are uploaded during a later update phase.
	Prefetch(names ...string)

	// Content returns the registry handle of an uploaded asset.
	//
	// Parameters:
	//   - name: the asset name
	//
	// Returns:
	//   - resource.Handle: the scheduler's handle; Retain it to keep the resource
	//   - bool: false if the asset has not been uploaded
	Content(name string) (resource.Handle, bool)
}

type scheduler struct {
	ctx      gpu.Context
	surface  surface.Surface
	registry resource.Registry
	window   window.Window
	loader   loader.Loader
	profiler *profiler.Profiler
	observer func(frame uint64, p Phase)
	log      *zap.Logger

	state     State
	frame     uint64
	maxFrames uint64
	limit     time.Duration
	clear     gpu.Color

	start    time.Time
	last     time.Time
	shutdown atomic.Bool
	closing  bool
	fatal    error

	scenes  map[int]Scene
	content map[string]resource.Handle
}

var _ Scheduler = &scheduler{}

// New creates a Scheduler over an initialized GPU context and configured surface. The scheduler owns
// all four collaborators from here on and releases them when it terminates.
//
// Parameters:
//   - ctx: the GPU context
//   - surf: the configured surface
//   - registry: the resource registry allocating from ctx
//   - win: the window delivering events
//   - options: scheduler options
//
// Returns:
//   - Scheduler: the scheduler in StateReady
//   - error: an error if a collaborator is missing or ctx is already destroyed
func New(ctx gpu.Context, surf surface.Surface, registry resource.Registry, win window.Window, options ...SchedulerBuilderOption) (Scheduler, error) {
	switch {
	case ctx == nil || surf == nil || registry == nil || win == nil:
		return nil, errors.New("scheduler: context, surface, registry and window are required")
	case ctx.Destroyed():
		return nil, gpu.ErrContextDestroyed
	}

	s := &scheduler{
		ctx:      ctx,
		surface:  surf,
		registry: registry,
		window:   win,
		log:      common.Logger().Named("scheduler"),
		state:    StateUninitialized,
		clear:    gpu.Color{A: 1},
		scenes:   make(map[int]Scene),
		content:  make(map[string]resource.Handle),
	}
	for _, option := range options {
		option(s)
	}
	s.state = StateReady
	return s, nil
}

func (s *scheduler) RequestShutdown() {
	s.shutdown.Store(true)
}

func (s *scheduler) State() State {
	return s.state
}

func (s *scheduler) Frame() uint64 {
	return s.frame
}

func (s *scheduler) FrameLimit() time.Duration {
	return s.limit
}

func (s *scheduler) Err() error {
	return s.fatal
}

func (s *scheduler) AddScene(key int, sc Scene) {
	s.scenes[key] = sc
}

func (s *scheduler) RemoveScene(key int) {
	delete(s.scenes, key)
}

func (s *scheduler) Scene(key int) Scene {
	return s.scenes[key]
}

func (s *scheduler) Prefetch(names ...string) {
	if s.loader == nil {
		s.log.Warn("prefetch without a loader", zap.Strings("names", names))
		return
	}
	s.loader.Prefetch(names...)
}

func (s *scheduler) Content(name string) (resource.Handle, bool) {
	h, ok := s.content[name]
	return h, ok
}

func (s *scheduler) Tick(now time.Time) TickResult {
	switch s.state {
	case StateTerminated:
		return TickResult{Status: StatusTerminated, Frame: s.frame}
	case StateShuttingDown:
		s.teardown()
		return TickResult{Status: StatusTerminated, Frame: s.frame, Err: s.fatal}
	}

	if s.shutdownRequested() {
		s.state = StateShuttingDown
		s.teardown()
		return TickResult{Status: StatusTerminated, Frame: s.frame}
	}

	s.state = StateRendering
	s.frame++
	fs := s.beginFrame(now)

	s.pumpEvents(fs)
	frameErr := s.update(fs)

	ft, enc, err := s.record(fs)
	if err != nil || ft == nil {
		return s.endFrame(StatusSkipped, errors.Join(frameErr, err))
	}

	err = s.present(ft, enc)
	if err != nil {
		return s.endFrame(StatusSkipped, errors.Join(frameErr, err))
	}
	return s.endFrame(StatusPresented, frameErr)
}

func (s *scheduler) shutdownRequested() bool {
	if s.shutdown.Load() || s.closing || s.window.CloseRequested() {
		return true
	}
	return s.maxFrames > 0 && s.frame >= s.maxFrames
}

func (s *scheduler) beginFrame(now time.Time) *FrameState {
	var delta time.Duration
	if s.start.IsZero() {
		s.start = now
	} else if now.After(s.last) {
		delta = now.Sub(s.last)
	}
	s.last = now

	return &FrameState{
		Frame:    s.frame,
		Now:      now,
		Delta:    delta,
		Time:     newTimeUniform(s.start, now, delta),
		Registry: s.registry,
		Size:     s.surface.Descriptor(),
	}
}

// endFrame returns to Ready unless a fatal error moved the scheduler to ShuttingDown.
func (s *scheduler) endFrame(status Status, err error) TickResult {
	if s.profiler.Enabled() {
		s.profiler.Tick()
	}
	if s.fatal != nil {
		s.state = StateShuttingDown
		s.log.Error("fatal frame error, shutting down", zap.Uint64("frame", s.frame), zap.Error(s.fatal))
		return TickResult{Status: StatusShuttingDown, Frame: s.frame, Err: err}
	}
	s.state = StateReady
	if err != nil {
		s.log.Warn("frame error", zap.Uint64("frame", s.frame), zap.Stringer("status", status), zap.Error(err))
	}
	return TickResult{Status: status, Frame: s.frame, Err: err}
}

func (s *scheduler) enter(p Phase) func() {
	if s.observer != nil {
		s.observer(s.frame, p)
	}
	return s.profiler.Span(p.String())
}

func (s *scheduler) pumpEvents(fs *FrameState) {
	defer s.enter(PhaseEventPump)()

	ev := s.window.PumpEvents()
	fs.Input = ev.Input
	if ev.CloseRequested {
		s.closing = true
	}
	if !ev.Resized {
		return
	}

	if err := s.surface.Configure(surface.Size{Width: ev.Width, Height: ev.Height}); err != nil {
		s.log.Warn("resize failed", zap.Int("width", ev.Width), zap.Int("height", ev.Height), zap.Error(err))
	}
	fs.Size = s.surface.Descriptor()
	for _, sc := range s.sortedScenes(false) {
		if r, ok := sc.(Resizer); ok {
			r.Resize(ev.Width, ev.Height)
		}
	}
}

func (s *scheduler) update(fs *FrameState) error {
	defer s.enter(PhaseUpdate)()

	errs := s.uploadContent(fs)
	for _, sc := range s.sortedScenes(true) {
		if err := sc.Update(fs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// uploadContent moves completed prefetches into the registry. A failed asset is skipped on its own.
func (s *scheduler) uploadContent(fs *FrameState) []error {
	if s.loader == nil {
		return nil
	}
	var errs []error
	for _, r := range s.loader.Drain() {
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		h, err := s.upload(r.Content)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", loader.ErrContentUnavailable, r.Name, err))
			continue
		}
		if old, ok := s.content[r.Name]; ok && !old.IsZero() {
			if err := s.registry.Release(old); err != nil {
				s.log.Warn("release replaced content", zap.String("name", r.Name), zap.Error(err))
			}
		}
		if !h.IsZero() {
			s.content[r.Name] = h
		}
		fs.Loaded = append(fs.Loaded, Loaded{Content: r.Content, Handle: h})
	}
	return errs
}

func (s *scheduler) upload(c loader.Content) (resource.Handle, error) {
	label := resource.WithLabel(c.Descriptor.Name)
	switch c.Descriptor.Kind {
	case loader.ContentTexture:
		return s.registry.UploadTexture(c.Data, c.Descriptor.Extent(), c.Descriptor.Format, label)
	case loader.ContentBuffer:
		return s.registry.UploadBuffer(c.Data, gpu.BufferUsageVertex|gpu.BufferUsageStorage, label)
	}
	// shader sources need a layout; scenes create the pipeline themselves
	return resource.Handle{}, nil
}

// record acquires the frame target and records every active scene into one render pass.
// A nil target with a nil error means the frame is skipped.
func (s *scheduler) record(fs *FrameState) (*surface.FrameTarget, gpu.CommandEncoder, error) {
	defer s.enter(PhaseRecord)()

	ft, ok, err := s.surface.AcquireFrame()
	switch {
	case errors.Is(err, surface.ErrSurfaceLost):
		if rerr := s.surface.Reconfigure(); rerr != nil {
			return nil, nil, errors.Join(err, rerr)
		}
		return nil, nil, err
	case errors.Is(err, surface.ErrTimeout):
		return nil, nil, err
	case errors.Is(err, surface.ErrReleased), errors.Is(err, gpu.ErrContextDestroyed):
		s.fatal = err
		return nil, nil, err
	case err != nil:
		return nil, nil, err
	case !ok:
		return nil, nil, nil
	}

	dev := s.ctx.Device()
	if dev == nil {
		s.surface.Discard(ft)
		s.fatal = gpu.ErrContextDestroyed
		return nil, nil, s.fatal
	}
	enc, err := dev.CreateCommandEncoder(fmt.Sprintf("frame %d", s.frame))
	if err != nil {
		s.surface.Discard(ft)
		if errors.Is(err, gpu.ErrContextDestroyed) {
			s.fatal = err
		}
		return nil, nil, err
	}

	fs.Target = ft
	fs.Encoder = enc
	fs.Pass = enc.BeginRenderPass(ft.Texture(), s.clear)

	var errs []error
	for _, sc := range s.sortedScenes(true) {
		if err := sc.Record(fs); err != nil {
			errs = append(errs, err)
		}
	}
	if err := fs.Pass.End(); err != nil {
		s.surface.Discard(ft)
		enc.Release()
		return nil, nil, errors.Join(append(errs, err)...)
	}
	if len(errs) > 0 {
		s.log.Warn("scene record failed", zap.Uint64("frame", s.frame), zap.Error(errors.Join(errs...)))
	}
	return ft, enc, nil
}

// present submits the recorded commands and presents ft.
func (s *scheduler) present(ft *surface.FrameTarget, enc gpu.CommandEncoder) error {
	defer s.enter(PhasePresent)()
	defer enc.Release()

	cb, err := enc.Finish()
	if err != nil {
		s.surface.Discard(ft)
		return err
	}
	s.ctx.Queue().Submit(cb)
	cb.Release()
	return s.surface.Present(ft)
}

func (s *scheduler) sortedScenes(activeOnly bool) []Scene {
	keys := make([]int, 0, len(s.scenes))
	for k := range s.scenes {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	scenes := make([]Scene, 0, len(keys))
	for _, k := range keys {
		if sc := s.scenes[k]; sc != nil && (!activeOnly || sc.Active()) {
			scenes = append(scenes, sc)
		}
	}
	return scenes
}

// teardown releases scenes, the loader, registry entries, the surface and the device, in that order.
func (s *scheduler) teardown() {
	for _, sc := range s.sortedScenes(false) {
		if r, ok := sc.(Releaser); ok {
			if err := r.Release(); err != nil {
				s.log.Warn("scene release failed", zap.Error(err))
			}
		}
	}
	if s.loader != nil {
		s.loader.Close()
	}
	if dev := s.ctx.Device(); dev != nil {
		dev.WaitIdle()
	}
	s.registry.Teardown()
	clear(s.content)
	s.surface.Release()
	s.ctx.Destroy()

	s.state = StateTerminated
	s.log.Info("scheduler terminated", zap.Uint64("frames", s.frame))
}
