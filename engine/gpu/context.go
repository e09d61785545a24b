package gpu

import (
	"context"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-runtime/common"
	"go.uber.org/zap"
)

// Context owns the driver instance, the selected adapter, the logical device and its queue.
// Exactly one Context exists per running engine. Every other engine component borrows the device from it
// and must release what it created before Destroy is called.
type Context interface {
	// Backend returns the backend of the adapter the Context was created on.
	// For BackendAuto requests this is the backend the driver actually picked.
	Backend() Backend

	// Power returns the power preference that was requested.
	Power() PowerPreference

	// AdapterInfo returns the description of the selected adapter.
	AdapterInfo() AdapterInfo

	// Device returns the logical device, or nil after Destroy.
	Device() Device

	// Queue returns the device queue, or nil after Destroy.
	Queue() Queue

	// CreateSurface creates a platform surface for target on this device.
	//
	// Parameters:
	//   - target: the window or canvas to present to
	//
	// Returns:
	//   - PlatformSurface: the unconfigured driver surface
	//   - error: ErrContextDestroyed after Destroy, or the driver error
	CreateSurface(target SurfaceTarget) (PlatformSurface, error)

	// Destroyed reports whether Destroy has been called.
	Destroyed() bool

	// Destroy waits for the device to go idle and releases the device, the adapter and the driver, in that order.
	// Calling Destroy more than once is a no-op.
	Destroy()
}

type gpuContext struct {
	mu sync.Mutex

	label         string
	driver        Driver
	forceFallback bool
	compatible    SurfaceTarget

	backend Backend
	power   PowerPreference
	info    AdapterInfo

	adapter Adapter
	device  Device
	queue   Queue

	destroyed bool
}

var _ Context = &gpuContext{}

type initResult struct {
	adapter Adapter
	device  Device
	err     error
}

// Initialize selects an adapter matching backend and power, creates a device and returns the Context.
// Adapter and device requests run off the calling goroutine; Initialize returns as soon as they complete
// or ctx is done. A device that finishes creation after ctx is done is released, never leaked.
//
// Parameters:
//   - ctx: bounds how long Initialize waits for the adapter and device
//   - backend: the graphics API to request, BackendAuto to let the driver choose
//   - power: the adapter power preference
//   - options: optional ContextBuilderOption values
//
// Returns:
//   - Context: the ready context
//   - error: ErrNoCompatibleAdapter, ErrDeviceCreationFailed, or ctx.Err()
func Initialize(ctx context.Context, backend Backend, power PowerPreference, options ...ContextBuilderOption) (Context, error) {
	c := &gpuContext{
		label:   "oxy device",
		backend: backend,
		power:   power,
	}
	for _, opt := range options {
		opt(c)
	}

	if c.driver == nil {
		d, err := defaultDriver(backend)
		if err != nil {
			return nil, err
		}
		c.driver = d
	}
	if err := ctx.Err(); err != nil {
		c.driver.Release()
		return nil, err
	}

	log := common.Logger().With(zap.String("driver", c.driver.Name()), zap.Stringer("backend", backend))
	log.Debug("requesting adapter", zap.Stringer("power", power))

	done := make(chan initResult, 1)
	go func() {
		done <- c.request()
	}()

	select {
	case <-ctx.Done():
		driver := c.driver
		go func() {
			r := <-done
			if r.device != nil {
				r.device.Release()
			}
			if r.adapter != nil {
				r.adapter.Release()
			}
			driver.Release()
		}()
		log.Warn("gpu initialization abandoned", zap.Error(ctx.Err()))
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			c.driver.Release()
			log.Error("gpu initialization failed", zap.Error(r.err))
			return nil, r.err
		}
		c.adapter = r.adapter
		c.device = r.device
		c.queue = r.device.Queue()
		c.info = r.adapter.Info()
		if c.backend == BackendAuto {
			c.backend = c.info.Backend
		}
		log.Info("gpu context ready",
			zap.String("adapter", c.info.Name),
			zap.Stringer("adapterBackend", c.info.Backend),
			zap.Bool("fallback", c.info.Fallback),
		)
		return c, nil
	}
}

func (c *gpuContext) request() initResult {
	adapter, err := c.driver.RequestAdapter(AdapterOptions{
		Backend:          c.backend,
		Power:            c.power,
		ForceFallback:    c.forceFallback,
		CompatibleTarget: c.compatible,
	})
	if err != nil {
		return initResult{err: fmt.Errorf("%w: %v", ErrNoCompatibleAdapter, err)}
	}
	if adapter == nil {
		return initResult{err: ErrNoCompatibleAdapter}
	}

	device, err := adapter.RequestDevice(c.label)
	if err != nil {
		adapter.Release()
		return initResult{err: fmt.Errorf("%w: %v", ErrDeviceCreationFailed, err)}
	}
	return initResult{adapter: adapter, device: device}
}

func (c *gpuContext) Backend() Backend {
	return c.backend
}

func (c *gpuContext) Power() PowerPreference {
	return c.power
}

func (c *gpuContext) AdapterInfo() AdapterInfo {
	return c.info
}

func (c *gpuContext) Device() Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

func (c *gpuContext) Queue() Queue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue
}

func (c *gpuContext) CreateSurface(target SurfaceTarget) (PlatformSurface, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, ErrContextDestroyed
	}
	return c.device.CreateSurface(target)
}

func (c *gpuContext) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

func (c *gpuContext) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	c.destroyed = true

	c.device.WaitIdle()
	c.device.Release()
	c.adapter.Release()
	c.driver.Release()

	c.device = nil
	c.queue = nil
	c.adapter = nil
	common.Logger().Info("gpu context destroyed", zap.String("adapter", c.info.Name))
}

func defaultDriver(backend Backend) (Driver, error) {
	if backend == BackendHeadless {
		return NewHeadlessDriver(), nil
	}
	return NewWGPUDriver()
}
