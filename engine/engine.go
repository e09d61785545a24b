package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-runtime/common"
	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
	"github.com/Carmen-Shannon/oxy-runtime/engine/loader"
	"github.com/Carmen-Shannon/oxy-runtime/engine/profiler"
	"github.com/Carmen-Shannon/oxy-runtime/engine/resource"
	"github.com/Carmen-Shannon/oxy-runtime/engine/scheduler"
	"github.com/Carmen-Shannon/oxy-runtime/engine/surface"
	"github.com/Carmen-Shannon/oxy-runtime/engine/window"
	"go.uber.org/zap"
)

// ExitStatus is the process exit status Run reports.
type ExitStatus int

const (
	// ExitClean is a requested shutdown.
	ExitClean ExitStatus = 0
	// ExitRuntimeFailure is a shutdown forced by an unrecoverable error while rendering.
	ExitRuntimeFailure ExitStatus = 1
	// ExitInitFailure means the GPU context, surface or window could not be created.
	ExitInitFailure ExitStatus = 2
)

func (s ExitStatus) String() string {
	switch s {
	case ExitClean:
		return "clean"
	case ExitRuntimeFailure:
		return "runtime-failure"
	case ExitInitFailure:
		return "init-failure"
	}
	return fmt.Sprintf("exit(%d)", int(s))
}

// Runtime is what setup functions see once the GPU context, surface and registry exist.
type Runtime struct {
	Context   gpu.Context
	Surface   surface.Surface
	Registry  resource.Registry
	Scheduler scheduler.Scheduler
	Window    window.Window
}

// engine implements the Engine interface.
// Owns the startup order and hands the frame loop to a scheduler driver.
type engine struct {
	config Config

	window      window.Window
	ownsWindow  bool
	gpuDriver   gpu.Driver
	frameDriver scheduler.Driver

	scenes       map[int]scheduler.Scene
	setups       []func(rt *Runtime) error
	schedOptions []scheduler.SchedulerBuilderOption
}

// Engine is the main entry point for the engine.
// It creates the window, GPU context, surface and registry in that order and runs the frame scheduler.
type Engine interface {
	// AddScene registers a scene at the given z-index key.
	// Scenes update and record in ascending key order.
	//
	// Parameters:
	//   - key: the z-index determining render order (lower renders first)
	//   - s: the Scene to register
	AddScene(key int, s scheduler.Scene)

	// RemoveScene removes the scene at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the scene to remove
	RemoveScene(key int)

	// Scene retrieves the scene registered at the given z-index key.
	// Returns nil if no scene exists at that key.
	//
	// Parameters:
	//   - key: the z-index of the scene to retrieve
	//
	// Returns:
	//   - scheduler.Scene: the scene at the key, or nil if not found
	Scene(key int) scheduler.Scene

	// Run initializes every component and drives frames until shutdown. It returns only once
	// everything has been released.
	//
	// Parameters:
	//   - ctx: cancelling ctx requests a clean shutdown
	//
	// Returns:
	//   - ExitStatus: ExitClean, ExitRuntimeFailure or ExitInitFailure
	//   - error: the initialization or runtime error, nil on a clean shutdown
	Run(ctx context.Context) (ExitStatus, error)
}

// NewEngine creates a new Engine for cfg.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - cfg: the runtime configuration
//   - options: functional options for engine configuration (scenes, window, drivers)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(cfg Config, options ...EngineBuilderOption) Engine {
	e := &engine{
		config: cfg,
		scenes: make(map[int]scheduler.Scene),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Run creates an Engine for cfg and runs it.
//
// Parameters:
//   - ctx: cancelling ctx requests a clean shutdown
//   - cfg: the runtime configuration
//   - options: functional options for engine configuration
//
// Returns:
//   - ExitStatus: the exit status
//   - error: the initialization or runtime error
func Run(ctx context.Context, cfg Config, options ...EngineBuilderOption) (ExitStatus, error) {
	return NewEngine(cfg, options...).Run(ctx)
}

func (e *engine) AddScene(key int, s scheduler.Scene) {
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scheduler.Scene {
	return e.scenes[key]
}

func (e *engine) Run(ctx context.Context) (status ExitStatus, err error) {
	log := common.Logger().Named("engine")
	cfg := e.config
	if err := cfg.Validate(); err != nil {
		return ExitInitFailure, err
	}

	if err := e.openWindow(); err != nil {
		return ExitInitFailure, err
	}
	defer e.closeWindow(log)

	gpuOptions := []gpu.ContextBuilderOption{gpu.WithCompatibleTarget(e.window)}
	if e.gpuDriver != nil {
		gpuOptions = append(gpuOptions, gpu.WithDriver(e.gpuDriver))
	}
	gctx, err := gpu.Initialize(ctx, cfg.Backend, cfg.Power, gpuOptions...)
	if err != nil {
		return ExitInitFailure, fmt.Errorf("engine: no usable %s adapter (%s power): %w", cfg.Backend, cfg.Power, err)
	}

	width, height := e.window.FramebufferSize()
	surf, err := surface.Configure(gctx, e.window, surface.Size{Width: width, Height: height},
		surface.WithPresentMode(cfg.PresentMode), surface.WithLabel(cfg.Title))
	if err != nil {
		gctx.Destroy()
		return ExitInitFailure, fmt.Errorf("engine: configure surface: %w", err)
	}

	registry := resource.NewRegistry(gctx, resource.WithRegistryLabel(cfg.Title))
	sched, err := scheduler.New(gctx, surf, registry, e.window, e.schedulerOptions(log)...)
	if err != nil {
		registry.Teardown()
		surf.Release()
		gctx.Destroy()
		return ExitInitFailure, fmt.Errorf("engine: create scheduler: %w", err)
	}

	keys := make([]int, 0, len(e.scenes))
	for k := range e.scenes {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		sched.AddScene(k, e.scenes[k])
	}

	rt := &Runtime{Context: gctx, Surface: surf, Registry: registry, Scheduler: sched, Window: e.window}
	for _, setup := range e.setups {
		if err := setup(rt); err != nil {
			shutdown(sched)
			return ExitInitFailure, fmt.Errorf("engine: setup: %w", err)
		}
	}
	if len(cfg.Prefetch) > 0 {
		sched.Prefetch(cfg.Prefetch...)
	}

	log.Info("engine running",
		zap.Stringer("backend", gctx.Backend()),
		zap.String("adapter", gctx.AdapterInfo().Name),
		zap.Int("width", width),
		zap.Int("height", height),
	)

	// Recover from panics inside the frame loop to release the GPU before returning.
	defer func() {
		if r := recover(); r != nil {
			log.Error("frame loop recovered from panic", zap.Any("panic", r))
			shutdown(sched)
			status, err = ExitRuntimeFailure, fmt.Errorf("engine: panic: %v", r)
		}
	}()

	driver := e.frameDriver
	if driver == nil {
		driver = scheduler.DefaultDriver()
	}
	if err := driver.Drive(ctx, sched); err != nil {
		return ExitRuntimeFailure, fmt.Errorf("engine: %w", err)
	}
	log.Info("engine stopped", zap.Uint64("frames", sched.Frame()))
	return ExitClean, nil
}

func (e *engine) openWindow() error {
	if e.window != nil {
		return nil
	}
	cfg := e.config
	if cfg.Backend == gpu.BackendHeadless {
		e.window = window.NewScriptedWindow(cfg.Width, cfg.Height)
		e.ownsWindow = true
		return nil
	}

	options := []window.WindowBuilderOption{
		window.WithTitle(cfg.Title),
		window.WithSize(cfg.Width, cfg.Height),
	}
	if cfg.Target == TargetWebCanvas {
		options = append(options, window.WithCanvasID(cfg.CanvasID))
	}
	w, err := window.NewWindow(options...)
	if err != nil {
		return fmt.Errorf("engine: open %s: %w", cfg.Target, err)
	}
	e.window = w
	e.ownsWindow = true
	return nil
}

func (e *engine) closeWindow(log *zap.Logger) {
	if !e.ownsWindow {
		return
	}
	if err := e.window.Close(); err != nil {
		log.Warn("close window", zap.Error(err))
	}
}

// schedulerOptions builds the loader, profiler and frame pacing options from the config. A content path
// that cannot be opened only disables loading.
func (e *engine) schedulerOptions(log *zap.Logger) []scheduler.SchedulerBuilderOption {
	cfg := e.config
	options := []scheduler.SchedulerBuilderOption{
		scheduler.WithFrameLimit(cfg.FrameLimit),
		scheduler.WithMaxFrames(cfg.MaxFrames),
		scheduler.WithClearColor(cfg.ClearColor),
	}
	if cfg.Profiling {
		options = append(options, scheduler.WithProfiler(profiler.NewProfiler()))
	}
	if cfg.ContentPath != "" {
		l, err := openContent(cfg.ContentPath)
		if err != nil {
			log.Warn("content unavailable", zap.String("path", cfg.ContentPath), zap.Error(err))
		} else {
			options = append(options, scheduler.WithLoader(l))
		}
	}
	return append(options, e.schedOptions...)
}

func openContent(path string) (loader.Loader, error) {
	var src loader.Source
	if strings.HasSuffix(path, loader.ArchiveExt) {
		a, err := loader.OpenArchiveFile(path)
		if err != nil {
			return nil, err
		}
		src = a
	} else {
		src = loader.NewDirSource(path)
	}
	return loader.NewLoader(loader.WithSource(src))
}

// shutdown requests shutdown and runs the teardown tick.
func shutdown(s scheduler.Scheduler) {
	if s.State() == scheduler.StateTerminated {
		return
	}
	s.RequestShutdown()
	for s.Tick(time.Now()).Status != scheduler.StatusTerminated {
	}
}

// IsInitFailure reports whether err is one of the startup failures that end Run with ExitInitFailure.
func IsInitFailure(err error) bool {
	return errors.Is(err, gpu.ErrNoCompatibleAdapter) || errors.Is(err, gpu.ErrDeviceCreationFailed)
}
