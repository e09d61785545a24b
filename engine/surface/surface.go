package surface

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-runtime/common"
	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
	"go.uber.org/zap"
)

// Size is a drawable size in pixels as reported by a window or canvas.
type Size struct {
	Width  int
	Height int
}

func (s Size) extent() gpu.Extent {
	if s.Width <= 0 || s.Height <= 0 {
		return gpu.Extent{}
	}
	return gpu.Extent{Width: uint32(s.Width), Height: uint32(s.Height)}
}

// Descriptor is the current configuration of a Surface.
type Descriptor struct {
	Width       uint32
	Height      uint32
	Format      gpu.TextureFormat
	PresentMode gpu.PresentMode
}

// Surface is a presentable target tied to a window or canvas.
// A Surface hands out at most one live FrameTarget at a time.
type Surface interface {
	// Descriptor returns the last applied (or pending) size, format and present mode.
	Descriptor() Descriptor

	// Renderable reports whether the next AcquireFrame can produce a frame: the size is nonzero,
	// no resize is pending and the surface is not lost.
	Renderable() bool

	// Configure applies size to the platform surface. A zero width or height is accepted and marks
	// the surface not renderable until a nonzero size is configured.
	//
	// Parameters:
	//   - size: the new drawable size
	//
	// Returns:
	//   - error: ErrFrameInFlight while a FrameTarget is live, or the platform error
	Configure(size Size) error

	// Reconfigure re-applies the last known size. This is the recovery step after ErrSurfaceLost.
	Reconfigure() error

	// Resize records a new size without touching the platform surface. Until Configure is called
	// AcquireFrame reports the surface as not renderable.
	Resize(width, height int)

	// AcquireFrame acquires the next presentable image.
	//
	// Returns:
	//   - *FrameTarget: the live frame target, nil when not renderable or on error
	//   - bool: false when the surface is not renderable and the frame should be skipped
	//   - error: ErrFrameInFlight, ErrSurfaceLost, ErrTimeout or a platform error
	AcquireFrame() (*FrameTarget, bool, error)

	// Present hands ft to the display and ends its life.
	Present(ft *FrameTarget) error

	// Discard ends the life of ft without presenting it. Discarding a target that is not live is a no-op.
	Discard(ft *FrameTarget)

	// Release discards any live target and releases the platform surface. Safe to call more than once.
	Release()
}

// FrameTarget is the image of a Surface rendered into during one frame.
type FrameTarget struct {
	surface *surface
	texture gpu.SurfaceTexture
	seq     uint64
}

// Texture returns the acquired swapchain image.
func (ft *FrameTarget) Texture() gpu.SurfaceTexture {
	return ft.texture
}

// Size returns the size of the acquired image.
func (ft *FrameTarget) Size() gpu.Extent {
	return ft.texture.Size()
}

// Sequence returns the 1-based acquire count of the owning surface at the time ft was acquired.
func (ft *FrameTarget) Sequence() uint64 {
	return ft.seq
}

type surface struct {
	platform gpu.PlatformSurface
	log      *zap.Logger

	label       string
	format      gpu.TextureFormat
	presentMode gpu.PresentMode
	size        gpu.Extent

	configured bool
	dirty      bool
	lost       bool
	released   bool

	live     *FrameTarget
	acquired uint64
}

var _ Surface = &surface{}

// Configure creates the platform surface for target on the device owned by ctx and configures it with size.
//
// Parameters:
//   - ctx: the GPU context whose device the surface presents from
//   - target: the native window or web canvas
//   - size: the initial drawable size, may be zero
//   - options: optional SurfaceBuilderOption values
//
// Returns:
//   - Surface: the configured surface
//   - error: an error if the platform surface could not be created or configured
func Configure(ctx gpu.Context, target gpu.SurfaceTarget, size Size, options ...SurfaceBuilderOption) (Surface, error) {
	s := &surface{
		label:       "surface",
		presentMode: gpu.PresentModeVSync,
	}
	for _, opt := range options {
		opt(s)
	}
	s.log = common.Logger().With(zap.String("surface", s.label))

	platform, err := ctx.CreateSurface(target)
	if err != nil {
		return nil, fmt.Errorf("failed to create surface: %w", err)
	}
	s.platform = platform

	caps := platform.Capabilities()
	if s.format == gpu.TextureFormatUndefined {
		s.format = preferredFormat(caps.Formats)
	}
	if s.format == gpu.TextureFormatUndefined {
		platform.Release()
		return nil, errors.New("surface reports no supported formats")
	}
	if !supportsPresentMode(caps.PresentModes, s.presentMode) {
		s.log.Warn("present mode unsupported, falling back to vsync")
		s.presentMode = gpu.PresentModeVSync
	}

	if err := s.Configure(size); err != nil {
		platform.Release()
		return nil, err
	}
	return s, nil
}

// preferredFormat returns the first sRGB format, else the first format.
func preferredFormat(formats []gpu.TextureFormat) gpu.TextureFormat {
	for _, f := range formats {
		if f.IsSrgb() {
			return f
		}
	}
	if len(formats) > 0 {
		return formats[0]
	}
	return gpu.TextureFormatUndefined
}

func supportsPresentMode(modes []gpu.PresentMode, mode gpu.PresentMode) bool {
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}

func (s *surface) Descriptor() Descriptor {
	return Descriptor{
		Width:       s.size.Width,
		Height:      s.size.Height,
		Format:      s.format,
		PresentMode: s.presentMode,
	}
}

func (s *surface) Renderable() bool {
	return !s.released && s.configured && !s.dirty && !s.lost && !s.size.Empty()
}

func (s *surface) Configure(size Size) error {
	if s.released {
		return ErrReleased
	}
	if s.live != nil {
		return ErrFrameInFlight
	}

	ext := size.extent()
	s.size = ext
	s.dirty = false
	if ext.Empty() {
		s.configured = false
		s.lost = false
		s.log.Debug("surface not renderable", zap.Int("width", size.Width), zap.Int("height", size.Height))
		return nil
	}

	err := s.platform.Configure(gpu.SurfaceConfiguration{
		Format:      s.format,
		Size:        ext,
		PresentMode: s.presentMode,
	})
	if err != nil {
		s.configured = false
		return fmt.Errorf("failed to configure surface: %w", err)
	}
	s.configured = true
	s.lost = false
	s.log.Info("surface configured",
		zap.Uint32("width", ext.Width),
		zap.Uint32("height", ext.Height),
		zap.Int("format", int(s.format)),
	)
	return nil
}

func (s *surface) Reconfigure() error {
	return s.Configure(Size{Width: int(s.size.Width), Height: int(s.size.Height)})
}

func (s *surface) Resize(width, height int) {
	ext := Size{Width: width, Height: height}.extent()
	if ext == s.size && s.configured {
		return
	}
	s.size = ext
	s.dirty = true
}

func (s *surface) AcquireFrame() (*FrameTarget, bool, error) {
	if s.released {
		return nil, false, ErrReleased
	}
	if s.live != nil {
		return nil, false, ErrFrameInFlight
	}
	if s.size.Empty() {
		return nil, false, nil
	}
	if s.lost {
		return nil, false, ErrSurfaceLost
	}
	if !s.Renderable() {
		return nil, false, nil
	}

	tex, err := s.platform.CurrentTexture()
	if err != nil {
		if errors.Is(err, gpu.ErrSurfaceLost) {
			s.lost = true
		}
		return nil, false, err
	}

	s.acquired++
	ft := &FrameTarget{surface: s, texture: tex, seq: s.acquired}
	s.live = ft
	return ft, true, nil
}

func (s *surface) Present(ft *FrameTarget) error {
	if ft == nil || ft.surface != s || s.live != ft {
		return ErrFrameNotLive
	}
	s.live = nil
	err := s.platform.Present()
	ft.texture.Release()
	if err != nil {
		return fmt.Errorf("failed to present frame %d: %w", ft.seq, err)
	}
	return nil
}

func (s *surface) Discard(ft *FrameTarget) {
	if ft == nil || s.live != ft {
		return
	}
	s.live = nil
	ft.texture.Release()
}

func (s *surface) Release() {
	if s.released {
		return
	}
	s.Discard(s.live)
	s.platform.Release()
	s.released = true
	s.log.Info("surface released")
}
