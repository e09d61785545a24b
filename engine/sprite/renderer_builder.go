package sprite

// RendererBuilderOption is a functional option for configuring a Renderer via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithLabel sets the label prefix of every GPU object the renderer creates.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithLabel(label string) RendererBuilderOption {
	return func(r *renderer) {
		r.label = label
	}
}

// WithInstanceCapacity sets how many instances the instance buffer holds before it has to grow.
// Values below 1 are ignored.
//
// Parameters:
//   - n: the instance count (default 96)
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithInstanceCapacity(n int) RendererBuilderOption {
	return func(r *renderer) {
		if n > 0 {
			r.capacity = n
		}
	}
}
