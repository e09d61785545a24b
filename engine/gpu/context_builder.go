package gpu

// ContextBuilderOption is a functional option for configuring Initialize.
type ContextBuilderOption func(*gpuContext)

// WithDriver sets the driver the Context requests its adapter from.
// If not set, BackendHeadless uses a fresh HeadlessDriver and every other backend uses the wgpu driver.
// The Context takes ownership of the driver and releases it on Destroy or on a failed Initialize.
//
// Parameters:
//   - d: the driver to use
//
// Returns:
//   - ContextBuilderOption: a function that applies the driver option
func WithDriver(d Driver) ContextBuilderOption {
	return func(c *gpuContext) {
		c.driver = d
	}
}

// WithForceFallbackAdapter requests the software fallback adapter.
//
// Parameters:
//   - force: whether the fallback adapter is required
//
// Returns:
//   - ContextBuilderOption: a function that applies the fallback option
func WithForceFallbackAdapter(force bool) ContextBuilderOption {
	return func(c *gpuContext) {
		c.forceFallback = force
	}
}

// WithLabel sets the debug label of the created device.
//
// Parameters:
//   - label: the device label
//
// Returns:
//   - ContextBuilderOption: a function that applies the label option
func WithLabel(label string) ContextBuilderOption {
	return func(c *gpuContext) {
		if label != "" {
			c.label = label
		}
	}
}

// WithCompatibleTarget asks the driver for an adapter that can present to target.
// Native GL adapters in particular can only be selected against an existing surface.
//
// Parameters:
//   - target: the window or canvas frames will be presented to
//
// Returns:
//   - ContextBuilderOption: a function that applies the compatible target option
func WithCompatibleTarget(target SurfaceTarget) ContextBuilderOption {
	return func(c *gpuContext) {
		c.compatible = target
	}
}
