package gpu

import (
	"fmt"
	"strings"
)

// Backend identifies the native graphics API an adapter is requested for.
type Backend int

const (
	// BackendAuto lets the driver pick the best available API for the platform.
	BackendAuto Backend = iota
	// BackendVulkan requests a Vulkan adapter.
	BackendVulkan
	// BackendMetal requests a Metal adapter.
	BackendMetal
	// BackendDX12 requests a Direct3D 12 adapter.
	BackendDX12
	// BackendGL requests an OpenGL / OpenGL ES adapter.
	BackendGL
	// BackendBrowserWebGPU requests the browser's WebGPU implementation (js/wasm only).
	BackendBrowserWebGPU
	// BackendHeadless selects the simulated driver. No window system or GPU is required.
	BackendHeadless
)

var backendNames = map[Backend]string{
	BackendAuto:          "auto",
	BackendVulkan:        "vulkan",
	BackendMetal:         "metal",
	BackendDX12:          "dx12",
	BackendGL:            "gl",
	BackendBrowserWebGPU: "webgpu",
	BackendHeadless:      "headless",
}

func (b Backend) String() string {
	if name, ok := backendNames[b]; ok {
		return name
	}
	return fmt.Sprintf("backend(%d)", int(b))
}

// ParseBackend converts a backend name ("auto", "vulkan", "metal", "dx12", "gl", "webgpu", "headless")
// into a Backend.
//
// Parameters:
//   - s: the case-insensitive backend name
//
// Returns:
//   - Backend: the parsed backend
//   - error: an error if the name is not recognized
func ParseBackend(s string) (Backend, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return BackendAuto, nil
	}
	for b, name := range backendNames {
		if name == s {
			return b, nil
		}
	}
	return BackendAuto, fmt.Errorf("gpu: unknown backend %q", s)
}

// PowerPreference hints which adapter to pick when more than one is available.
type PowerPreference int

const (
	// PowerPreferenceDefault leaves the choice to the driver.
	PowerPreferenceDefault PowerPreference = iota
	// PowerPreferenceLowPower prefers integrated / battery friendly adapters.
	PowerPreferenceLowPower
	// PowerPreferenceHighPerformance prefers discrete adapters.
	PowerPreferenceHighPerformance
)

func (p PowerPreference) String() string {
	switch p {
	case PowerPreferenceLowPower:
		return "low-power"
	case PowerPreferenceHighPerformance:
		return "high-performance"
	default:
		return "default"
	}
}

// ParsePowerPreference converts "low-power", "high-performance" or "" into a PowerPreference.
func ParsePowerPreference(s string) (PowerPreference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return PowerPreferenceDefault, nil
	case "low-power", "low":
		return PowerPreferenceLowPower, nil
	case "high-performance", "high":
		return PowerPreferenceHighPerformance, nil
	}
	return PowerPreferenceDefault, fmt.Errorf("gpu: unknown power preference %q", s)
}

// AdapterInfo describes the adapter a Context was created on.
type AdapterInfo struct {
	Name     string
	Backend  Backend
	Power    PowerPreference
	Fallback bool
}

// BufferUsage is a bit set describing how a buffer will be bound.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageCopySrc
	BufferUsageCopyDst
)

// IndexFormat is the element type of an index buffer.
type IndexFormat int

const (
	IndexFormatUint32 IndexFormat = iota
	IndexFormatUint16
)

// TextureFormat enumerates the color formats the engine uploads or renders to.
type TextureFormat int

const (
	TextureFormatUndefined TextureFormat = iota
	TextureFormatRGBA8Unorm
	TextureFormatRGBA8UnormSrgb
	TextureFormatBGRA8Unorm
	TextureFormatBGRA8UnormSrgb
)

// BytesPerPixel returns the texel size of the format, or 0 for TextureFormatUndefined.
func (f TextureFormat) BytesPerPixel() int {
	if f == TextureFormatUndefined {
		return 0
	}
	return 4
}

// IsSrgb reports whether the format performs sRGB encoding on write.
func (f TextureFormat) IsSrgb() bool {
	return f == TextureFormatRGBA8UnormSrgb || f == TextureFormatBGRA8UnormSrgb
}

// Extent is a 2D size in texels.
type Extent struct {
	Width  uint32
	Height uint32
}

// Empty reports whether either dimension is zero.
func (e Extent) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

// PresentMode controls how acquired frames are handed to the display.
type PresentMode int

const (
	// PresentModeVSync waits for vertical blank (FIFO). Always supported.
	PresentModeVSync PresentMode = iota
	// PresentModeUncapped presents immediately and may tear.
	PresentModeUncapped
)

// VertexFormat is the type of a single vertex attribute.
type VertexFormat int

const (
	VertexFormatFloat32 VertexFormat = iota
	VertexFormatFloat32x2
	VertexFormatFloat32x3
	VertexFormatFloat32x4
	VertexFormatUint32
)

// VertexStepMode selects per-vertex or per-instance attribute stepping.
type VertexStepMode int

const (
	VertexStepModeVertex VertexStepMode = iota
	VertexStepModeInstance
)

// VertexAttribute is a single attribute inside a vertex buffer.
type VertexAttribute struct {
	Format         VertexFormat
	Offset         uint64
	ShaderLocation uint32
}

// VertexBufferLayout describes one vertex buffer slot of a render pipeline.
type VertexBufferLayout struct {
	Stride     uint64
	StepMode   VertexStepMode
	Attributes []VertexAttribute
}

// BindingType is the resource kind of a bind group entry.
type BindingType int

const (
	BindingTypeUniform BindingType = iota
	BindingTypeStorage
	BindingTypeTexture
	BindingTypeSampler
)

// ShaderStage is a bit set of pipeline stages a binding is visible to.
type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
)

// BindingEntry describes one binding of a bind group layout.
type BindingEntry struct {
	Binding    uint32
	Type       BindingType
	Visibility ShaderStage
}

// BlendMode selects the color blend equation of a render pipeline.
type BlendMode int

const (
	BlendNone BlendMode = iota
	// BlendAlpha is standard non-premultiplied alpha blending.
	BlendAlpha
)

// PipelineLayout is the fixed-function and binding layout a render pipeline is created with.
type PipelineLayout struct {
	VertexEntryPoint   string
	FragmentEntryPoint string
	VertexBuffers      []VertexBufferLayout
	BindGroups         [][]BindingEntry
	Blend              BlendMode
	CullBackFaces      bool
	// TargetFormat is the color target format. TextureFormatUndefined uses the device's preferred
	// surface format.
	TargetFormat TextureFormat
}

// Color is a linear RGBA clear color.
type Color struct {
	R, G, B, A float64
}
