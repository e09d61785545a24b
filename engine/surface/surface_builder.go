package surface

import "github.com/Carmen-Shannon/oxy-runtime/engine/gpu"

// SurfaceBuilderOption is a functional option for configuring a Surface.
type SurfaceBuilderOption func(*surface)

// WithPresentMode sets the requested present mode. Unsupported modes fall back to PresentModeVSync.
//
// Parameters:
//   - mode: the present mode
//
// Returns:
//   - SurfaceBuilderOption: a function that applies the present mode option
func WithPresentMode(mode gpu.PresentMode) SurfaceBuilderOption {
	return func(s *surface) {
		s.presentMode = mode
	}
}

// WithFormat forces the surface format instead of picking the preferred platform format.
//
// Parameters:
//   - format: the color format to configure
//
// Returns:
//   - SurfaceBuilderOption: a function that applies the format option
func WithFormat(format gpu.TextureFormat) SurfaceBuilderOption {
	return func(s *surface) {
		s.format = format
	}
}

// WithLabel sets the label used in log output.
func WithLabel(label string) SurfaceBuilderOption {
	return func(s *surface) {
		s.label = label
	}
}
