package gpu

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// HeadlessAdapter describes one simulated adapter offered by a HeadlessDriver.
type HeadlessAdapter struct {
	Name     string
	Backend  Backend
	Power    PowerPreference
	Fallback bool

	// RejectDevice, when set, is returned by RequestDevice.
	RejectDevice error
}

// HeadlessStats is a snapshot of the objects a HeadlessDriver has handed out.
type HeadlessStats struct {
	LiveDevices    int
	LiveBuffers    int
	LiveTextures   int
	LivePipelines  int
	LiveBindGroups int
	LiveSurfaces   int

	AdapterRequests int
	DevicesCreated  int
	Submissions     int
	DrawCalls       int
	Presents        int
	Discards        int
	DoubleReleases  int

	// IdleWaits counts WaitIdle calls made while the device was still live.
	IdleWaits int

	// LeakedAtDeviceRelease counts objects still alive when their device was released.
	LeakedAtDeviceRelease int
	Released              bool
}

// HeadlessDriver is a Driver that simulates adapters, devices and surfaces in memory.
// It validates usage the way a real driver would (sizes, release order, single acquired image)
// and keeps counters for tests and for running the engine without a GPU.
type HeadlessDriver struct {
	mu sync.Mutex

	adapters       []HeadlessAdapter
	surfaceFormats []TextureFormat
	gate           <-chan struct{}

	stats     HeadlessStats
	surfaces  []*HeadlessSurface
	lastDraws []DrawOp
}

// DrawOp is one draw recorded by a headless render pass.
type DrawOp struct {
	Pipeline      string
	Indexed       bool
	FirstIndex    uint32
	Count         uint32
	FirstInstance uint32
	InstanceCount uint32
}

var _ Driver = &HeadlessDriver{}

// HeadlessOption configures a HeadlessDriver.
type HeadlessOption func(*HeadlessDriver)

// WithHeadlessAdapters replaces the default simulated adapter list.
func WithHeadlessAdapters(adapters ...HeadlessAdapter) HeadlessOption {
	return func(d *HeadlessDriver) {
		d.adapters = adapters
	}
}

// WithHeadlessSurfaceFormats sets the formats simulated surfaces report as supported, in preference order.
func WithHeadlessSurfaceFormats(formats ...TextureFormat) HeadlessOption {
	return func(d *HeadlessDriver) {
		d.surfaceFormats = formats
	}
}

// WithRequestGate makes RequestAdapter block until gate is closed.
func WithRequestGate(gate <-chan struct{}) HeadlessOption {
	return func(d *HeadlessDriver) {
		d.gate = gate
	}
}

// NewHeadlessDriver creates a simulated driver. By default it offers a high-performance Vulkan adapter,
// a low-power GL adapter and a fallback adapter.
func NewHeadlessDriver(options ...HeadlessOption) *HeadlessDriver {
	d := &HeadlessDriver{
		adapters: []HeadlessAdapter{
			{Name: "headless-discrete", Backend: BackendVulkan, Power: PowerPreferenceHighPerformance},
			{Name: "headless-integrated", Backend: BackendGL, Power: PowerPreferenceLowPower},
			{Name: "headless-fallback", Backend: BackendHeadless, Fallback: true},
		},
		surfaceFormats: []TextureFormat{TextureFormatBGRA8Unorm, TextureFormatBGRA8UnormSrgb},
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

func (d *HeadlessDriver) Name() string {
	return "headless"
}

func (d *HeadlessDriver) RequestAdapter(opts AdapterOptions) (Adapter, error) {
	d.mu.Lock()
	d.stats.AdapterRequests++
	d.mu.Unlock()
	if d.gate != nil {
		<-d.gate
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stats.Released {
		return nil, errors.New("headless: driver released")
	}

	var candidates []HeadlessAdapter
	for _, a := range d.adapters {
		if opts.ForceFallback && !a.Fallback {
			continue
		}
		if opts.Backend != BackendAuto && opts.Backend != BackendHeadless && a.Backend != opts.Backend {
			continue
		}
		candidates = append(candidates, a)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("headless: no adapter for backend %s", opts.Backend)
	}

	pick := candidates[0]
	for _, a := range candidates {
		if !a.Fallback || opts.ForceFallback {
			pick = a
			break
		}
	}
	if opts.Power != PowerPreferenceDefault {
		for _, a := range candidates {
			if a.Power == opts.Power {
				pick = a
				break
			}
		}
	}

	return &headlessAdapter{driver: d, desc: pick}, nil
}

func (d *HeadlessDriver) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Released = true
}

// Stats returns a snapshot of the driver's object counters.
func (d *HeadlessDriver) Stats() HeadlessStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// LastDraws returns the draws of the most recent submission, in recording order.
func (d *HeadlessDriver) LastDraws() []DrawOp {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DrawOp(nil), d.lastDraws...)
}

// Surfaces returns every surface created through this driver, oldest first.
func (d *HeadlessDriver) Surfaces() []*HeadlessSurface {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*HeadlessSurface(nil), d.surfaces...)
}

// released marks an object released, counting double releases. Caller holds d.mu.
func (d *HeadlessDriver) released(flag *bool, live *int) bool {
	if *flag {
		d.stats.DoubleReleases++
		return false
	}
	*flag = true
	*live--
	return true
}

type headlessAdapter struct {
	driver   *HeadlessDriver
	desc     HeadlessAdapter
	released bool
}

func (a *headlessAdapter) Info() AdapterInfo {
	return AdapterInfo{
		Name:     a.desc.Name,
		Backend:  a.desc.Backend,
		Power:    a.desc.Power,
		Fallback: a.desc.Fallback,
	}
}

func (a *headlessAdapter) RequestDevice(label string) (Device, error) {
	if a.desc.RejectDevice != nil {
		return nil, a.desc.RejectDevice
	}
	d := a.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.LiveDevices++
	d.stats.DevicesCreated++
	dev := &headlessDevice{driver: d, label: label}
	dev.queue = &headlessQueue{device: dev}
	return dev, nil
}

func (a *headlessAdapter) Release() {
	a.driver.mu.Lock()
	defer a.driver.mu.Unlock()
	if a.released {
		a.driver.stats.DoubleReleases++
	}
	a.released = true
}

type headlessDevice struct {
	driver   *HeadlessDriver
	label    string
	queue    *headlessQueue
	live     int
	released bool
}

func (dev *headlessDevice) lost() error {
	if dev.released {
		return errors.New("headless: device released")
	}
	return nil
}

func (dev *headlessDevice) Queue() Queue {
	return dev.queue
}

func (dev *headlessDevice) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := dev.lost(); err != nil {
		return nil, err
	}
	if desc.Size == 0 {
		return nil, fmt.Errorf("headless: buffer %q has zero size", desc.Label)
	}
	d.stats.LiveBuffers++
	dev.live++
	return &headlessBuffer{device: dev, desc: desc, data: make([]byte, desc.Size)}, nil
}

func (dev *headlessDevice) CreateTexture(desc TextureDescriptor) (Texture, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := dev.lost(); err != nil {
		return nil, err
	}
	if desc.Size.Empty() {
		return nil, fmt.Errorf("headless: texture %q has empty extent", desc.Label)
	}
	if desc.Format == TextureFormatUndefined {
		return nil, fmt.Errorf("headless: texture %q has undefined format", desc.Label)
	}
	d.stats.LiveTextures++
	dev.live++
	return &headlessTexture{device: dev, desc: desc}, nil
}

func (dev *headlessDevice) CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := dev.lost(); err != nil {
		return nil, err
	}
	for _, entry := range []string{desc.Layout.VertexEntryPoint, desc.Layout.FragmentEntryPoint} {
		if entry == "" || !strings.Contains(desc.Source, "fn "+entry) {
			return nil, fmt.Errorf("headless: pipeline %q: entry point %q not found", desc.Label, entry)
		}
	}
	d.stats.LivePipelines++
	dev.live++
	return &headlessPipeline{device: dev, desc: desc}, nil
}

func (dev *headlessDevice) CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := dev.lost(); err != nil {
		return nil, err
	}
	p, ok := desc.Pipeline.(*headlessPipeline)
	if !ok || p.released {
		return nil, fmt.Errorf("headless: bind group %q: invalid pipeline", desc.Label)
	}
	if int(desc.Group) >= len(p.desc.Layout.BindGroups) {
		return nil, fmt.Errorf("headless: bind group %q: pipeline has no group %d", desc.Label, desc.Group)
	}
	if len(desc.Entries) != len(p.desc.Layout.BindGroups[desc.Group]) {
		return nil, fmt.Errorf("headless: bind group %q: expected %d entries, got %d",
			desc.Label, len(p.desc.Layout.BindGroups[desc.Group]), len(desc.Entries))
	}
	d.stats.LiveBindGroups++
	dev.live++
	return &headlessBindGroup{device: dev}, nil
}

func (dev *headlessDevice) CreateCommandEncoder(label string) (CommandEncoder, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := dev.lost(); err != nil {
		return nil, err
	}
	return &headlessEncoder{device: dev}, nil
}

func (dev *headlessDevice) CreateSurface(target SurfaceTarget) (PlatformSurface, error) {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := dev.lost(); err != nil {
		return nil, err
	}
	if target == nil {
		return nil, errors.New("headless: nil surface target")
	}
	s := &HeadlessSurface{device: dev, target: target}
	d.surfaces = append(d.surfaces, s)
	d.stats.LiveSurfaces++
	return s, nil
}

func (dev *headlessDevice) WaitIdle() {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if !dev.released {
		d.stats.IdleWaits++
	}
}

func (dev *headlessDevice) Release() {
	d := dev.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if dev.released {
		d.stats.DoubleReleases++
		return
	}
	dev.released = true
	d.stats.LiveDevices--
	d.stats.LeakedAtDeviceRelease += dev.live
}

type headlessQueue struct {
	device *headlessDevice
}

func (q *headlessQueue) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	d := q.device.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := buf.(*headlessBuffer)
	if !ok || b.released {
		return errors.New("headless: write to invalid buffer")
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("headless: write of %d bytes at %d overflows buffer %q of size %d",
			len(data), offset, b.desc.Label, b.desc.Size)
	}
	copy(b.data[offset:], data)
	return nil
}

func (q *headlessQueue) WriteTexture(tex Texture, pixels []byte) error {
	d := q.device.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := tex.(*headlessTexture)
	if !ok || t.released {
		return errors.New("headless: write to invalid texture")
	}
	want := int(t.desc.Size.Width) * int(t.desc.Size.Height) * t.desc.Format.BytesPerPixel()
	if len(pixels) != want {
		return fmt.Errorf("headless: texture %q expects %d bytes, got %d", t.desc.Label, want, len(pixels))
	}
	return nil
}

func (q *headlessQueue) Submit(cb CommandBuffer) {
	d := q.device.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := cb.(*headlessCommandBuffer); ok {
		d.stats.Submissions++
		d.stats.DrawCalls += len(c.draws)
		d.lastDraws = c.draws
	}
}

type headlessBuffer struct {
	device   *headlessDevice
	desc     BufferDescriptor
	data     []byte
	released bool
}

func (b *headlessBuffer) Size() uint64       { return b.desc.Size }
func (b *headlessBuffer) Usage() BufferUsage { return b.desc.Usage }

// Bytes returns a copy of the buffer's current contents.
func (b *headlessBuffer) Bytes() []byte {
	b.device.driver.mu.Lock()
	defer b.device.driver.mu.Unlock()
	return append([]byte(nil), b.data...)
}

func (b *headlessBuffer) Release() {
	d := b.device.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released(&b.released, &d.stats.LiveBuffers) {
		b.device.live--
	}
}

type headlessTexture struct {
	device   *headlessDevice
	desc     TextureDescriptor
	released bool
}

func (t *headlessTexture) Size() Extent          { return t.desc.Size }
func (t *headlessTexture) Format() TextureFormat { return t.desc.Format }

func (t *headlessTexture) Release() {
	d := t.device.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released(&t.released, &d.stats.LiveTextures) {
		t.device.live--
	}
}

type headlessPipeline struct {
	device   *headlessDevice
	desc     RenderPipelineDescriptor
	released bool
}

func (p *headlessPipeline) Label() string { return p.desc.Label }

func (p *headlessPipeline) Release() {
	d := p.device.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released(&p.released, &d.stats.LivePipelines) {
		p.device.live--
	}
}

type headlessBindGroup struct {
	device   *headlessDevice
	released bool
}

func (bg *headlessBindGroup) Release() {
	d := bg.device.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released(&bg.released, &d.stats.LiveBindGroups) {
		bg.device.live--
	}
}

type headlessEncoder struct {
	device   *headlessDevice
	pass     *headlessPass
	finished bool
}

func (e *headlessEncoder) BeginRenderPass(target SurfaceTexture, clear Color) RenderPass {
	e.pass = &headlessPass{encoder: e, target: target}
	return e.pass
}

func (e *headlessEncoder) Finish() (CommandBuffer, error) {
	if e.finished {
		return nil, errors.New("headless: encoder already finished")
	}
	if e.pass != nil && !e.pass.ended {
		return nil, errors.New("headless: render pass not ended")
	}
	e.finished = true
	cb := &headlessCommandBuffer{}
	if e.pass != nil {
		cb.draws = e.pass.draws
	}
	return cb, nil
}

func (e *headlessEncoder) Release() {}

type headlessCommandBuffer struct {
	draws []DrawOp
}

func (c *headlessCommandBuffer) Release() {}

type headlessPass struct {
	encoder  *headlessEncoder
	target   SurfaceTexture
	pipeline RenderPipeline
	draws    []DrawOp
	ended    bool
}

func (p *headlessPass) SetPipeline(rp RenderPipeline)                 { p.pipeline = rp }
func (p *headlessPass) SetBindGroup(index uint32, bg BindGroup)       {}
func (p *headlessPass) SetVertexBuffer(slot uint32, buf Buffer)       {}
func (p *headlessPass) SetIndexBuffer(buf Buffer, format IndexFormat) {}

func (p *headlessPass) Draw(vertexCount, instanceCount uint32) {
	if p.pipeline != nil {
		p.draws = append(p.draws, DrawOp{
			Pipeline:      p.pipeline.Label(),
			Count:         vertexCount,
			InstanceCount: instanceCount,
		})
	}
}

func (p *headlessPass) DrawIndexed(firstIndex, indexCount, firstInstance, instanceCount uint32) {
	if p.pipeline != nil {
		p.draws = append(p.draws, DrawOp{
			Pipeline:      p.pipeline.Label(),
			Indexed:       true,
			FirstIndex:    firstIndex,
			Count:         indexCount,
			FirstInstance: firstInstance,
			InstanceCount: instanceCount,
		})
	}
}

func (p *headlessPass) End() error {
	if p.ended {
		return errors.New("headless: render pass already ended")
	}
	p.ended = true
	return nil
}

// HeadlessSurface is a simulated swapchain. Tests use it to inject acquire failures.
type HeadlessSurface struct {
	device *headlessDevice
	target SurfaceTarget

	config     SurfaceConfiguration
	configured bool
	configures int
	failNext   error
	current    *headlessSurfaceTexture
	released   bool
}

var _ PlatformSurface = &HeadlessSurface{}

func (s *HeadlessSurface) Capabilities() SurfaceCapabilities {
	s.device.driver.mu.Lock()
	defer s.device.driver.mu.Unlock()
	return SurfaceCapabilities{
		Formats:      append([]TextureFormat(nil), s.device.driver.surfaceFormats...),
		PresentModes: []PresentMode{PresentModeVSync, PresentModeUncapped},
	}
}

func (s *HeadlessSurface) Configure(cfg SurfaceConfiguration) error {
	s.device.driver.mu.Lock()
	defer s.device.driver.mu.Unlock()
	if cfg.Size.Empty() {
		return fmt.Errorf("headless: cannot configure surface with size %dx%d", cfg.Size.Width, cfg.Size.Height)
	}
	if s.current != nil {
		return errors.New("headless: surface configured while an image is acquired")
	}
	s.config = cfg
	s.configured = true
	s.configures++
	return nil
}

func (s *HeadlessSurface) CurrentTexture() (SurfaceTexture, error) {
	s.device.driver.mu.Lock()
	defer s.device.driver.mu.Unlock()
	if !s.configured {
		return nil, errors.New("headless: surface not configured")
	}
	if err := s.failNext; err != nil {
		s.failNext = nil
		if errors.Is(err, ErrSurfaceLost) {
			s.configured = false
		}
		return nil, err
	}
	if s.current != nil {
		return nil, errors.New("headless: surface image already acquired")
	}
	s.current = &headlessSurfaceTexture{surface: s, size: s.config.Size, format: s.config.Format}
	return s.current, nil
}

func (s *HeadlessSurface) Present() error {
	d := s.device.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.current == nil {
		return errors.New("headless: present without an acquired image")
	}
	s.current.presented = true
	s.current = nil
	d.stats.Presents++
	return nil
}

func (s *HeadlessSurface) Release() {
	d := s.device.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.released {
		d.stats.DoubleReleases++
		return
	}
	s.released = true
	d.stats.LiveSurfaces--
}

// FailNextAcquire makes the next CurrentTexture call return err. Wrap ErrSurfaceLost or
// ErrSurfaceTimeout to simulate the recoverable failures.
func (s *HeadlessSurface) FailNextAcquire(err error) {
	s.device.driver.mu.Lock()
	defer s.device.driver.mu.Unlock()
	s.failNext = err
}

// Config returns the last applied configuration.
func (s *HeadlessSurface) Config() SurfaceConfiguration {
	s.device.driver.mu.Lock()
	defer s.device.driver.mu.Unlock()
	return s.config
}

// ConfigureCount returns how many times Configure succeeded.
func (s *HeadlessSurface) ConfigureCount() int {
	s.device.driver.mu.Lock()
	defer s.device.driver.mu.Unlock()
	return s.configures
}

// Released reports whether the surface has been released.
func (s *HeadlessSurface) Released() bool {
	s.device.driver.mu.Lock()
	defer s.device.driver.mu.Unlock()
	return s.released
}

type headlessSurfaceTexture struct {
	surface   *HeadlessSurface
	size      Extent
	format    TextureFormat
	presented bool
	released  bool
}

func (t *headlessSurfaceTexture) Size() Extent          { return t.size }
func (t *headlessSurfaceTexture) Format() TextureFormat { return t.format }

func (t *headlessSurfaceTexture) Release() {
	d := t.surface.device.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.released {
		d.stats.DoubleReleases++
		return
	}
	t.released = true
	if t.surface.current == t {
		t.surface.current = nil
		d.stats.Discards++
	}
}

// headlessTarget is the SurfaceTarget used when no window is involved.
type headlessTarget struct {
	width, height int
}

// NewHeadlessTarget returns a SurfaceTarget of a fixed size with no platform window behind it.
func NewHeadlessTarget(width, height int) SurfaceTarget {
	return &headlessTarget{width: width, height: height}
}

func (t *headlessTarget) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }
func (t *headlessTarget) FramebufferSize() (int, int)              { return t.width, t.height }
