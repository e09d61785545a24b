package resource

type uploadConfig struct {
	label   string
	mutable bool
	size    uint64
}

// UploadOption configures a single upload or pipeline creation.
type UploadOption func(*uploadConfig)

// WithLabel sets the debug label of the GPU object.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - UploadOption: a function that sets the label
func WithLabel(label string) UploadOption {
	return func(c *uploadConfig) {
		c.label = label
	}
}

// WithMutable opts the resource out of deduplication and allows Reupload.
//
// Returns:
//   - UploadOption: a function that marks the upload mutable
func WithMutable() UploadOption {
	return func(c *uploadConfig) {
		c.mutable = true
	}
}

// WithCapacity reserves at least size bytes for a buffer so later Reupload calls can grow into it
// without recreating the GPU buffer.
//
// Parameters:
//   - size: the minimum buffer size in bytes
//
// Returns:
//   - UploadOption: a function that sets the buffer capacity
func WithCapacity(size uint64) UploadOption {
	return func(c *uploadConfig) {
		c.size = size
	}
}

// RegistryBuilderOption configures a Registry.
type RegistryBuilderOption func(*registryImpl)

// WithRegistryLabel names the registry in logs.
//
// Parameters:
//   - label: the registry label
//
// Returns:
//   - RegistryBuilderOption: a function that sets the label
func WithRegistryLabel(label string) RegistryBuilderOption {
	return func(r *registryImpl) {
		r.label = label
	}
}
