package gpu

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuDriver is the Driver backed by cogentcore/webgpu: wgpu-native on desktop, the browser's
// navigator.gpu on js/wasm.
type wgpuDriver struct {
	mu       sync.Mutex
	instance *wgpu.Instance

	// surfaces created against CompatibleTarget during adapter selection, handed back by CreateSurface.
	early map[SurfaceTarget]*wgpu.Surface

	released bool
}

var _ Driver = &wgpuDriver{}

// NewWGPUDriver creates the wgpu instance.
//
// Returns:
//   - Driver: the wgpu driver
//   - error: an error if the instance could not be created
func NewWGPUDriver() (Driver, error) {
	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, errors.New("gpu: failed to create wgpu instance")
	}
	return &wgpuDriver{
		instance: instance,
		early:    make(map[SurfaceTarget]*wgpu.Surface),
	}, nil
}

func (d *wgpuDriver) Name() string {
	return "wgpu"
}

func (d *wgpuDriver) RequestAdapter(opts AdapterOptions) (Adapter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	reqOpts := &wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: opts.ForceFallback,
		PowerPreference:      toWGPUPower(opts.Power),
		BackendType:          toWGPUBackend(opts.Backend),
	}
	if opts.CompatibleTarget != nil {
		if desc := opts.CompatibleTarget.SurfaceDescriptor(); desc != nil {
			s, ok := d.early[opts.CompatibleTarget]
			if !ok {
				s = d.instance.CreateSurface(desc)
				d.early[opts.CompatibleTarget] = s
			}
			reqOpts.CompatibleSurface = s
		}
	}

	a, err := d.instance.RequestAdapter(reqOpts)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNoCompatibleAdapter
	}
	return &wgpuAdapter{
		driver:  d,
		adapter: a,
		info:    adapterInfo(a.GetInfo(), opts),
	}, nil
}

// adapterInfo describes the adapter wgpu reported. The browser reports nothing, so the requested backend
// and fallback flag stand in for the missing fields.
func adapterInfo(info wgpu.AdapterInfo, opts AdapterOptions) AdapterInfo {
	out := AdapterInfo{
		Name:     info.Name,
		Backend:  opts.Backend,
		Power:    opts.Power,
		Fallback: opts.ForceFallback || info.AdapterType == wgpu.AdapterTypeCPU,
	}
	if out.Name == "" {
		out.Name = "wgpu"
	}
	if b, ok := fromWGPUBackend(info.BackendType); ok {
		out.Backend = b
	}
	return out
}

func (d *wgpuDriver) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return
	}
	d.released = true
	for t, s := range d.early {
		s.Release()
		delete(d.early, t)
	}
	d.instance.Release()
}

// takeSurface returns the surface for target, reusing one created during adapter selection.
func (d *wgpuDriver) takeSurface(target SurfaceTarget) (*wgpu.Surface, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.early[target]; ok {
		delete(d.early, target)
		return s, nil
	}
	desc := target.SurfaceDescriptor()
	if desc == nil {
		return nil, errors.New("gpu: surface target has no platform descriptor")
	}
	s := d.instance.CreateSurface(desc)
	if s == nil {
		return nil, errors.New("gpu: failed to create surface")
	}
	return s, nil
}

type wgpuAdapter struct {
	driver  *wgpuDriver
	adapter *wgpu.Adapter
	info    AdapterInfo
}

func (a *wgpuAdapter) Info() AdapterInfo {
	return a.info
}

func (a *wgpuAdapter) RequestDevice(label string) (Device, error) {
	d, err := a.adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: label,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, err
	}
	return &wgpuDevice{
		adapter:       a,
		device:        d,
		queue:         &wgpuQueue{queue: d.GetQueue()},
		surfaceFormat: TextureFormatBGRA8UnormSrgb,
	}, nil
}

func (a *wgpuAdapter) Release() {
	a.adapter.Release()
}

type wgpuDevice struct {
	mu sync.Mutex

	adapter *wgpuAdapter
	device  *wgpu.Device
	queue   *wgpuQueue
	sampler *wgpu.Sampler

	// surfaceFormat is the format of the most recently configured surface. Pipelines created with
	// TextureFormatUndefined target it.
	surfaceFormat TextureFormat
}

func (dev *wgpuDevice) Queue() Queue {
	return dev.queue
}

func (dev *wgpuDevice) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	buf, err := dev.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: toWGPUBufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %q: %w", desc.Label, err)
	}
	return &wgpuBuffer{buf: buf, desc: desc}, nil
}

func (dev *wgpuDevice) CreateTexture(desc TextureDescriptor) (Texture, error) {
	tex, err := dev.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              desc.Size.Width,
			Height:             desc.Size.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        toWGPUTextureFormat(desc.Format),
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %q: %w", desc.Label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to create texture view %q: %w", desc.Label, err)
	}
	return &wgpuTexture{tex: tex, view: view, desc: desc}, nil
}

func (dev *wgpuDevice) CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error) {
	module, err := dev.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Source,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create shader module %q: %w", desc.Label, err)
	}
	defer module.Release()

	p := &wgpuPipeline{label: desc.Label}
	for g, entries := range desc.Layout.BindGroups {
		layoutEntries := make([]wgpu.BindGroupLayoutEntry, 0, len(entries))
		for _, e := range entries {
			layoutEntries = append(layoutEntries, toWGPULayoutEntry(e))
		}
		bgl, bglErr := dev.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s group %d", desc.Label, g),
			Entries: layoutEntries,
		})
		if bglErr != nil {
			p.Release()
			return nil, fmt.Errorf("failed to create bind group layout for group %d: %w", g, bglErr)
		}
		p.groups = append(p.groups, bgl)
	}

	layout, err := dev.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: p.groups,
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("failed to create pipeline layout %q: %w", desc.Label, err)
	}
	defer layout.Release()

	vertexLayouts := make([]wgpu.VertexBufferLayout, 0, len(desc.Layout.VertexBuffers))
	for _, vb := range desc.Layout.VertexBuffers {
		attrs := make([]wgpu.VertexAttribute, 0, len(vb.Attributes))
		for _, a := range vb.Attributes {
			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         toWGPUVertexFormat(a.Format),
				Offset:         a.Offset,
				ShaderLocation: a.ShaderLocation,
			})
		}
		stepMode := wgpu.VertexStepModeVertex
		if vb.StepMode == VertexStepModeInstance {
			stepMode = wgpu.VertexStepModeInstance
		}
		vertexLayouts = append(vertexLayouts, wgpu.VertexBufferLayout{
			ArrayStride: vb.Stride,
			StepMode:    stepMode,
			Attributes:  attrs,
		})
	}

	format := desc.Layout.TargetFormat
	if format == TextureFormatUndefined {
		dev.mu.Lock()
		format = dev.surfaceFormat
		dev.mu.Unlock()
	}
	target := wgpu.ColorTargetState{
		Format:    toWGPUTextureFormat(format),
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	if desc.Layout.Blend == BlendAlpha {
		target.Blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}
	cullMode := wgpu.CullModeNone
	if desc.Layout.CullBackFaces {
		cullMode = wgpu.CullModeBack
	}

	created, err := dev.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: desc.Layout.VertexEntryPoint,
			Buffers:    vertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: desc.Layout.FragmentEntryPoint,
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("failed to create render pipeline %q: %w", desc.Label, err)
	}
	p.pipeline = created
	return p, nil
}

func (dev *wgpuDevice) defaultSampler() (*wgpu.Sampler, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.sampler != nil {
		return dev.sampler, nil
	}
	s, err := dev.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "default sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, err
	}
	dev.sampler = s
	return s, nil
}

func (dev *wgpuDevice) CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error) {
	p, ok := desc.Pipeline.(*wgpuPipeline)
	if !ok || int(desc.Group) >= len(p.groups) {
		return nil, fmt.Errorf("bind group %q: pipeline has no group %d", desc.Label, desc.Group)
	}
	entries := make([]wgpu.BindGroupEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			entry.Buffer = e.Buffer.(*wgpuBuffer).buf
			entry.Offset = 0
			entry.Size = wgpu.WholeSize
		case e.Texture != nil:
			entry.TextureView = e.Texture.(*wgpuTexture).view
		case e.Sampler:
			s, err := dev.defaultSampler()
			if err != nil {
				return nil, err
			}
			entry.Sampler = s
		}
		entries = append(entries, entry)
	}
	bg, err := dev.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  p.groups[desc.Group],
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group %q: %w", desc.Label, err)
	}
	return &wgpuBindGroup{bg: bg}, nil
}

func (dev *wgpuDevice) CreateCommandEncoder(label string) (CommandEncoder, error) {
	enc, err := dev.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &wgpuEncoder{encoder: enc}, nil
}

func (dev *wgpuDevice) CreateSurface(target SurfaceTarget) (PlatformSurface, error) {
	s, err := dev.adapter.driver.takeSurface(target)
	if err != nil {
		return nil, err
	}
	return &wgpuSurface{device: dev, surface: s}, nil
}

// WaitIdle blocks until every submission on the queue has completed. It returns immediately in the browser.
func (dev *wgpuDevice) WaitIdle() {
	dev.device.Poll(true, nil)
}

func (dev *wgpuDevice) Release() {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.sampler != nil {
		dev.sampler.Release()
		dev.sampler = nil
	}
	dev.queue.queue.Release()
	dev.device.Release()
}

type wgpuQueue struct {
	queue *wgpu.Queue
}

func (q *wgpuQueue) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	b := buf.(*wgpuBuffer)
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("write of %d bytes at %d overflows buffer %q of size %d", len(data), offset, b.desc.Label, b.desc.Size)
	}
	q.queue.WriteBuffer(b.buf, offset, data)
	return nil
}

func (q *wgpuQueue) WriteTexture(tex Texture, pixels []byte) error {
	t := tex.(*wgpuTexture)
	size := t.desc.Size
	bpp := uint32(t.desc.Format.BytesPerPixel())
	if want := int(size.Width * size.Height * bpp); len(pixels) != want {
		return fmt.Errorf("texture %q expects %d bytes, got %d", t.desc.Label, want, len(pixels))
	}
	q.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  size.Width * bpp,
			RowsPerImage: size.Height,
		},
		&wgpu.Extent3D{
			Width:              size.Width,
			Height:             size.Height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (q *wgpuQueue) Submit(cb CommandBuffer) {
	q.queue.Submit(cb.(*wgpuCommandBuffer).cb)
}

type wgpuBuffer struct {
	buf  *wgpu.Buffer
	desc BufferDescriptor
}

func (b *wgpuBuffer) Size() uint64       { return b.desc.Size }
func (b *wgpuBuffer) Usage() BufferUsage { return b.desc.Usage }
func (b *wgpuBuffer) Release()           { b.buf.Release() }

type wgpuTexture struct {
	tex  *wgpu.Texture
	view *wgpu.TextureView
	desc TextureDescriptor
}

func (t *wgpuTexture) Size() Extent          { return t.desc.Size }
func (t *wgpuTexture) Format() TextureFormat { return t.desc.Format }

func (t *wgpuTexture) Release() {
	t.view.Release()
	t.tex.Release()
}

type wgpuPipeline struct {
	label    string
	pipeline *wgpu.RenderPipeline
	groups   []*wgpu.BindGroupLayout
}

func (p *wgpuPipeline) Label() string { return p.label }

func (p *wgpuPipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
	for _, g := range p.groups {
		g.Release()
	}
	p.groups = nil
}

type wgpuBindGroup struct {
	bg *wgpu.BindGroup
}

func (b *wgpuBindGroup) Release() { b.bg.Release() }

type wgpuEncoder struct {
	encoder *wgpu.CommandEncoder
}

func (e *wgpuEncoder) BeginRenderPass(target SurfaceTexture, clear Color) RenderPass {
	st := target.(*wgpuSurfaceTexture)
	pass := e.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       st.view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: clear.R, G: clear.G, B: clear.B, A: clear.A},
		}},
	})
	return &wgpuPass{pass: pass}
}

func (e *wgpuEncoder) Finish() (CommandBuffer, error) {
	cb, err := e.encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	return &wgpuCommandBuffer{cb: cb}, nil
}

func (e *wgpuEncoder) Release() { e.encoder.Release() }

type wgpuCommandBuffer struct {
	cb *wgpu.CommandBuffer
}

func (c *wgpuCommandBuffer) Release() { c.cb.Release() }

type wgpuPass struct {
	pass *wgpu.RenderPassEncoder
}

func (p *wgpuPass) SetPipeline(rp RenderPipeline) {
	p.pass.SetPipeline(rp.(*wgpuPipeline).pipeline)
}

func (p *wgpuPass) SetBindGroup(index uint32, bg BindGroup) {
	p.pass.SetBindGroup(index, bg.(*wgpuBindGroup).bg, nil)
}

func (p *wgpuPass) SetVertexBuffer(slot uint32, buf Buffer) {
	p.pass.SetVertexBuffer(slot, buf.(*wgpuBuffer).buf, 0, wgpu.WholeSize)
}

func (p *wgpuPass) SetIndexBuffer(buf Buffer, format IndexFormat) {
	f := wgpu.IndexFormatUint32
	if format == IndexFormatUint16 {
		f = wgpu.IndexFormatUint16
	}
	p.pass.SetIndexBuffer(buf.(*wgpuBuffer).buf, f, 0, wgpu.WholeSize)
}

func (p *wgpuPass) Draw(vertexCount, instanceCount uint32) {
	p.pass.Draw(vertexCount, instanceCount, 0, 0)
}

func (p *wgpuPass) DrawIndexed(firstIndex, indexCount, firstInstance, instanceCount uint32) {
	p.pass.DrawIndexed(indexCount, instanceCount, firstIndex, 0, firstInstance)
}

func (p *wgpuPass) End() error {
	p.pass.End()
	return nil
}

type wgpuSurface struct {
	device  *wgpuDevice
	surface *wgpu.Surface
	alpha   wgpu.CompositeAlphaMode
	config  SurfaceConfiguration
	current *wgpuSurfaceTexture
}

func (s *wgpuSurface) Capabilities() SurfaceCapabilities {
	caps := s.surface.GetCapabilities(s.device.adapter.adapter)
	out := SurfaceCapabilities{PresentModes: []PresentMode{PresentModeVSync}}
	for _, f := range caps.Formats {
		if tf := fromWGPUTextureFormat(f); tf != TextureFormatUndefined {
			out.Formats = append(out.Formats, tf)
		}
	}
	for _, m := range caps.PresentModes {
		if m == wgpu.PresentModeImmediate {
			out.PresentModes = append(out.PresentModes, PresentModeUncapped)
		}
	}
	if len(caps.AlphaModes) > 0 {
		s.alpha = caps.AlphaModes[0]
	}
	return out
}

func (s *wgpuSurface) Configure(cfg SurfaceConfiguration) error {
	if cfg.Size.Empty() {
		return fmt.Errorf("cannot configure surface with size %dx%d", cfg.Size.Width, cfg.Size.Height)
	}
	presentMode := wgpu.PresentModeFifo
	if cfg.PresentMode == PresentModeUncapped {
		presentMode = wgpu.PresentModeImmediate
	}
	s.surface.Configure(s.device.adapter.adapter, s.device.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      toWGPUTextureFormat(cfg.Format),
		Width:       cfg.Size.Width,
		Height:      cfg.Size.Height,
		PresentMode: presentMode,
		AlphaMode:   s.alpha,
	})
	s.config = cfg
	s.device.mu.Lock()
	s.device.surfaceFormat = cfg.Format
	s.device.mu.Unlock()
	return nil
}

func (s *wgpuSurface) CurrentTexture() (SurfaceTexture, error) {
	tex, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, classifyAcquireError(err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	st := &wgpuSurfaceTexture{surface: s, tex: tex, view: view, size: s.config.Size, format: s.config.Format}
	s.current = st
	return st, nil
}

func (s *wgpuSurface) Present() error {
	if s.current == nil {
		return errors.New("present without an acquired image")
	}
	s.surface.Present()
	s.current = nil
	return nil
}

func (s *wgpuSurface) Release() {
	s.surface.Release()
}

type wgpuSurfaceTexture struct {
	surface *wgpuSurface
	tex     *wgpu.Texture
	view    *wgpu.TextureView
	size    Extent
	format  TextureFormat
}

func (t *wgpuSurfaceTexture) Size() Extent          { return t.size }
func (t *wgpuSurfaceTexture) Format() TextureFormat { return t.format }

func (t *wgpuSurfaceTexture) Release() {
	if t.surface.current == t {
		t.surface.current = nil
	}
	t.view.Release()
	t.tex.Release()
}

// classifyAcquireError maps wgpu's acquire failures onto ErrSurfaceLost and ErrSurfaceTimeout.
// The bindings only surface wgpu-native's error text, so this matches its wording: "Surface is lost",
// "Surface is outdated, needs to be re-created", "Parent device is lost" and timeouts. Revisit the
// patterns when upgrading wgpu.
func classifyAcquireError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return fmt.Errorf("%w: %v", ErrSurfaceTimeout, err)
	case strings.Contains(msg, "lost"), strings.Contains(msg, "outdated"):
		return fmt.Errorf("%w: %v", ErrSurfaceLost, err)
	}
	return err
}

func fromWGPUBackend(b wgpu.BackendType) (Backend, bool) {
	switch b {
	case wgpu.BackendTypeVulkan:
		return BackendVulkan, true
	case wgpu.BackendTypeMetal:
		return BackendMetal, true
	case wgpu.BackendTypeD3D12:
		return BackendDX12, true
	case wgpu.BackendTypeOpenGL, wgpu.BackendTypeOpenGLES:
		return BackendGL, true
	case wgpu.BackendTypeWebGPU:
		return BackendBrowserWebGPU, true
	}
	return BackendAuto, false
}

func toWGPUBackend(b Backend) wgpu.BackendType {
	switch b {
	case BackendVulkan:
		return wgpu.BackendTypeVulkan
	case BackendMetal:
		return wgpu.BackendTypeMetal
	case BackendDX12:
		return wgpu.BackendTypeD3D12
	case BackendGL:
		return wgpu.BackendTypeOpenGL
	case BackendBrowserWebGPU:
		return wgpu.BackendTypeWebGPU
	}
	return wgpu.BackendTypeUndefined
}

func toWGPUPower(p PowerPreference) wgpu.PowerPreference {
	switch p {
	case PowerPreferenceLowPower:
		return wgpu.PowerPreferenceLowPower
	case PowerPreferenceHighPerformance:
		return wgpu.PowerPreferenceHighPerformance
	}
	return wgpu.PowerPreferenceUndefined
}

func toWGPUBufferUsage(u BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	pairs := []struct {
		ours   BufferUsage
		theirs wgpu.BufferUsage
	}{
		{BufferUsageVertex, wgpu.BufferUsageVertex},
		{BufferUsageIndex, wgpu.BufferUsageIndex},
		{BufferUsageUniform, wgpu.BufferUsageUniform},
		{BufferUsageStorage, wgpu.BufferUsageStorage},
		{BufferUsageCopySrc, wgpu.BufferUsageCopySrc},
		{BufferUsageCopyDst, wgpu.BufferUsageCopyDst},
	}
	for _, p := range pairs {
		if u&p.ours != 0 {
			out |= p.theirs
		}
	}
	return out
}

func toWGPUTextureFormat(f TextureFormat) wgpu.TextureFormat {
	switch f {
	case TextureFormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm
	case TextureFormatRGBA8UnormSrgb:
		return wgpu.TextureFormatRGBA8UnormSrgb
	case TextureFormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm
	case TextureFormatBGRA8UnormSrgb:
		return wgpu.TextureFormatBGRA8UnormSrgb
	}
	return wgpu.TextureFormatUndefined
}

func fromWGPUTextureFormat(f wgpu.TextureFormat) TextureFormat {
	switch f {
	case wgpu.TextureFormatRGBA8Unorm:
		return TextureFormatRGBA8Unorm
	case wgpu.TextureFormatRGBA8UnormSrgb:
		return TextureFormatRGBA8UnormSrgb
	case wgpu.TextureFormatBGRA8Unorm:
		return TextureFormatBGRA8Unorm
	case wgpu.TextureFormatBGRA8UnormSrgb:
		return TextureFormatBGRA8UnormSrgb
	}
	return TextureFormatUndefined
}

func toWGPUVertexFormat(f VertexFormat) wgpu.VertexFormat {
	switch f {
	case VertexFormatFloat32:
		return wgpu.VertexFormatFloat32
	case VertexFormatFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case VertexFormatFloat32x3:
		return wgpu.VertexFormatFloat32x3
	case VertexFormatFloat32x4:
		return wgpu.VertexFormatFloat32x4
	}
	return wgpu.VertexFormatUint32
}

func toWGPULayoutEntry(e BindingEntry) wgpu.BindGroupLayoutEntry {
	var visibility wgpu.ShaderStage
	if e.Visibility&ShaderStageVertex != 0 {
		visibility |= wgpu.ShaderStageVertex
	}
	if e.Visibility&ShaderStageFragment != 0 {
		visibility |= wgpu.ShaderStageFragment
	}
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    e.Binding,
		Visibility: visibility,
	}
	switch e.Type {
	case BindingTypeUniform:
		entry.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}
	case BindingTypeStorage:
		entry.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}
	case BindingTypeTexture:
		entry.Texture = wgpu.TextureBindingLayout{
			SampleType:    wgpu.TextureSampleTypeFloat,
			ViewDimension: wgpu.TextureViewDimension2D,
		}
	case BindingTypeSampler:
		entry.Sampler = wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering}
	}
	return entry
}
