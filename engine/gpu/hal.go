package gpu

import "github.com/cogentcore/webgpu/wgpu"

// SurfaceTarget is anything a presentable surface can be created for: a native window or a web canvas.
type SurfaceTarget interface {
	// SurfaceDescriptor returns the wgpu descriptor for the platform window or canvas.
	// Simulated targets may return nil.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// FramebufferSize returns the current drawable size in pixels.
	FramebufferSize() (int, int)
}

// AdapterOptions are the criteria a Driver uses to pick an adapter.
type AdapterOptions struct {
	Backend       Backend
	Power         PowerPreference
	ForceFallback bool

	// CompatibleTarget, when set, restricts the choice to adapters that can present to it.
	CompatibleTarget SurfaceTarget
}

// Driver is the lowest layer of the runtime: it owns the API instance and hands out adapters.
// The wgpu driver talks to wgpu-native (or the browser); the headless driver simulates one.
type Driver interface {
	// Name returns a short human readable driver name used in logs.
	Name() string

	// RequestAdapter returns the adapter best matching opts.
	// It returns ErrNoCompatibleAdapter when nothing matches.
	RequestAdapter(opts AdapterOptions) (Adapter, error)

	// Release frees the driver instance. Safe to call more than once.
	Release()
}

// Adapter is a physical (or simulated) GPU.
type Adapter interface {
	Info() AdapterInfo
	RequestDevice(label string) (Device, error)
	Release()
}

// BufferDescriptor describes a GPU buffer allocation.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// TextureDescriptor describes a sampled 2D texture allocation.
type TextureDescriptor struct {
	Label  string
	Size   Extent
	Format TextureFormat
}

// RenderPipelineDescriptor describes a render pipeline built from WGSL source.
type RenderPipelineDescriptor struct {
	Label  string
	Source string
	Layout PipelineLayout
}

// BindGroupEntry binds one resource to a binding slot. Exactly one of Buffer, Texture or Sampler is set.
type BindGroupEntry struct {
	Binding uint32
	Buffer  Buffer
	Texture Texture
	Sampler bool
}

// BindGroupDescriptor describes a bind group for group index Group of Pipeline.
type BindGroupDescriptor struct {
	Label    string
	Pipeline RenderPipeline
	Group    uint32
	Entries  []BindGroupEntry
}

// Device is a logical connection to an Adapter. Every GPU object is created from a Device.
type Device interface {
	Queue() Queue
	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	CreateTexture(desc TextureDescriptor) (Texture, error)
	CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error)
	CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error)
	CreateCommandEncoder(label string) (CommandEncoder, error)
	CreateSurface(target SurfaceTarget) (PlatformSurface, error)

	// WaitIdle blocks until all submitted work has completed.
	WaitIdle()

	// Release destroys the device. Objects created from it become invalid.
	Release()
}

// Queue submits recorded work and performs immediate uploads.
type Queue interface {
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
	WriteTexture(tex Texture, pixels []byte) error
	Submit(cb CommandBuffer)
}

type Buffer interface {
	Size() uint64
	Usage() BufferUsage
	Release()
}

type Texture interface {
	Size() Extent
	Format() TextureFormat
	Release()
}

type RenderPipeline interface {
	Label() string
	Release()
}

type BindGroup interface {
	Release()
}

// CommandEncoder records a frame's passes.
type CommandEncoder interface {
	BeginRenderPass(target SurfaceTexture, clear Color) RenderPass
	Finish() (CommandBuffer, error)
	Release()
}

type CommandBuffer interface {
	Release()
}

// RenderPass records draw commands into a single color attachment.
type RenderPass interface {
	SetPipeline(p RenderPipeline)
	SetBindGroup(index uint32, bg BindGroup)
	SetVertexBuffer(slot uint32, buf Buffer)
	SetIndexBuffer(buf Buffer, format IndexFormat)
	Draw(vertexCount, instanceCount uint32)
	DrawIndexed(firstIndex, indexCount, firstInstance, instanceCount uint32)
	End() error
}

// SurfaceCapabilities lists what a surface supports on the device's adapter.
type SurfaceCapabilities struct {
	Formats      []TextureFormat
	PresentModes []PresentMode
}

// SurfaceConfiguration is applied to a PlatformSurface before frames can be acquired.
type SurfaceConfiguration struct {
	Format      TextureFormat
	Size        Extent
	PresentMode PresentMode
}

// PlatformSurface is the driver side of a presentable surface.
type PlatformSurface interface {
	Capabilities() SurfaceCapabilities
	Configure(cfg SurfaceConfiguration) error

	// CurrentTexture acquires the next swapchain image. It returns an error wrapping
	// ErrSurfaceLost or ErrSurfaceTimeout for the recoverable acquire failures.
	CurrentTexture() (SurfaceTexture, error)
	Present() error
	Release()
}

// SurfaceTexture is an acquired swapchain image.
type SurfaceTexture interface {
	Size() Extent
	Format() TextureFormat
	Release()
}
