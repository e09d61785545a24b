package resource

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-runtime/common"
	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
	"github.com/Carmen-Shannon/oxy-runtime/engine/shader"
	"go.uber.org/zap"
)

// registryCount hands out owner ids so handles from one registry never resolve in another.
var registryCount atomic.Uint32

// Entry is a snapshot of a registry entry.
type Entry struct {
	Kind  Kind
	Label string

	// Generation starts at 1 and is bumped by every Reupload.
	Generation uint32

	// Hash is the content hash of an immutable entry. Hashed is false for mutable entries and bind groups.
	Hash   [sha256.Size]byte
	Hashed bool

	Mutable bool

	// Refs is the number of outstanding handles sharing the entry.
	Refs int

	Buffer    gpu.Buffer
	Texture   gpu.Texture
	Pipeline  gpu.RenderPipeline
	BindGroup gpu.BindGroup

	// Module is the compiled shader of a pipeline entry.
	Module *shader.Module

	// pipeline, group and sources describe a bind group so it can be rebuilt when a bound buffer is recreated.
	pipeline *Entry
	group    uint32
	sources  []boundSource
	invalid  bool
}

type boundSource struct {
	binding uint32
	entry   *Entry
}

// Binding references a registry resource bound at one binding slot of a bind group.
type Binding struct {
	Binding  uint32
	Resource Handle
	Sampler  bool
}

type slot struct {
	generation uint32
	entry      *Entry
}

type registryImpl struct {
	mu    sync.Mutex
	id    uint32
	label string
	gpu   gpu.Context

	slots   []slot
	free    []uint32
	byHash  map[[sha256.Size]byte]*Entry
	entries map[*Entry]struct{}
	closed  bool
}

// Registry owns every GPU buffer, texture, pipeline and bind group created by the engine.
// Consumers exchange Handles; the registry is the only place GPU objects are created or released.
type Registry interface {
	// UploadBuffer creates a buffer holding data. Immutable uploads with identical usage and content
	// share one entry; each call still returns its own handle.
	//
	// Parameters:
	//   - data: the buffer content
	//   - usage: the buffer usage flags (CopyDst is always added)
	//   - options: upload options
	//
	// Returns:
	//   - Handle: a new handle to the entry
	//   - error: ErrEmptyContent, gpu.ErrContextDestroyed or a driver error
	UploadBuffer(data []byte, usage gpu.BufferUsage, options ...UploadOption) (Handle, error)

	// UploadTexture creates a texture of the given size and format holding pixels.
	//
	// Parameters:
	//   - pixels: tightly packed pixel rows, width*height*bytes-per-pixel long
	//   - dims: the texture size
	//   - format: the texture format
	//   - options: upload options
	//
	// Returns:
	//   - Handle: a new handle to the entry
	//   - error: a size mismatch, gpu.ErrContextDestroyed or a driver error
	UploadTexture(pixels []byte, dims gpu.Extent, format gpu.TextureFormat, options ...UploadOption) (Handle, error)

	// CreatePipeline compiles source and creates a render pipeline. Unset layout fields are filled from
	// the compiled module's reflection. Pipelines are always immutable and deduplicated.
	//
	// Parameters:
	//   - source: WGSL source, @oxy: annotations allowed
	//   - layout: the pipeline layout
	//   - options: upload options
	//
	// Returns:
	//   - Handle: a new handle to the entry
	//   - error: a *shader.CompileError carrying diagnostics, or gpu.ErrContextDestroyed
	CreatePipeline(source string, layout gpu.PipelineLayout, options ...UploadOption) (Handle, error)

	// CreateBindGroup binds registry resources to group of a pipeline.
	//
	// Parameters:
	//   - pipeline: a pipeline handle
	//   - group: the bind group index
	//   - bindings: the resources to bind
	//   - options: upload options
	//
	// Returns:
	//   - Handle: a handle to the new bind group
	//   - error: a *StaleHandleError, ErrKindMismatch or a driver error
	CreateBindGroup(pipeline Handle, group uint32, bindings []Binding, options ...UploadOption) (Handle, error)

	// Reupload replaces the content of a mutable buffer or texture and bumps its generation.
	// Buffers grow by recreating the GPU buffer when data no longer fits; bind groups over a grown buffer are
	// rebuilt and have their generation bumped.
	//
	// Parameters:
	//   - h: the handle
	//   - data: the new content
	//
	// Returns:
	//   - error: a *StaleHandleError, ErrImmutable, ErrKindMismatch or a driver error
	Reupload(h Handle, data []byte) error

	// Retain returns a new handle to the entry h refers to. Both handles must be released.
	//
	// Parameters:
	//   - h: the handle
	//
	// Returns:
	//   - Handle: an independent handle to the same entry
	//   - error: a *StaleHandleError if h does not resolve
	Retain(h Handle) (Handle, error)

	// Release drops h. The GPU object is released when the last handle sharing its entry is released.
	//
	// Parameters:
	//   - h: the handle
	//
	// Returns:
	//   - error: a *StaleHandleError if h was already released or never issued
	Release(h Handle) error

	// Get resolves h.
	//
	// Parameters:
	//   - h: the handle
	//
	// Returns:
	//   - Entry: a snapshot of the entry
	//   - error: a *StaleHandleError if h does not resolve
	Get(h Handle) (Entry, error)

	// Buffer resolves h to its GPU buffer.
	Buffer(h Handle) (gpu.Buffer, error)

	// Texture resolves h to its GPU texture.
	Texture(h Handle) (gpu.Texture, error)

	// Pipeline resolves h to its GPU render pipeline.
	Pipeline(h Handle) (gpu.RenderPipeline, error)

	// BindGroup resolves h to its GPU bind group.
	BindGroup(h Handle) (gpu.BindGroup, error)

	// Len returns the number of live entries.
	Len() int

	// Handles returns the number of outstanding handles.
	Handles() int

	// Entries returns a snapshot of every live entry in handle order.
	Entries() []Entry

	// Teardown releases every entry exactly once and closes the registry. Every later call fails with
	// a *StaleHandleError whose reason is ReasonDeviceDestroyed. Teardown is idempotent.
	Teardown()
}

var _ Registry = &registryImpl{}

// NewRegistry creates an empty Registry allocating from the device of ctx.
//
// Parameters:
//   - ctx: the GPU context
//   - options: registry options
//
// Returns:
//   - Registry: the registry
func NewRegistry(ctx gpu.Context, options ...RegistryBuilderOption) Registry {
	r := &registryImpl{
		id:      registryCount.Add(1),
		label:   "registry",
		gpu:     ctx,
		byHash:  make(map[[sha256.Size]byte]*Entry),
		entries: make(map[*Entry]struct{}),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

func (r *registryImpl) UploadBuffer(data []byte, usage gpu.BufferUsage, options ...UploadOption) (Handle, error) {
	cfg := newUploadConfig("buffer", options)
	if len(data) == 0 {
		return Handle{}, fmt.Errorf("upload buffer %q: %w", cfg.label, ErrEmptyContent)
	}
	usage |= gpu.BufferUsageCopyDst

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return Handle{}, fmt.Errorf("upload buffer %q: %w", cfg.label, err)
	}

	var sum [sha256.Size]byte
	if !cfg.mutable {
		sum = contentHash(KindBuffer, data, uint64(usage), cfg.size)
		if e, ok := r.byHash[sum]; ok {
			return r.share(e), nil
		}
	}

	buf, err := r.writeNewBuffer(cfg.label, data, usage, cfg.size)
	if err != nil {
		return Handle{}, fmt.Errorf("upload buffer %q: %w", cfg.label, err)
	}
	return r.insert(&Entry{Kind: KindBuffer, Label: cfg.label, Mutable: cfg.mutable, Buffer: buf}, hashIf(!cfg.mutable, sum)), nil
}

func (r *registryImpl) UploadTexture(pixels []byte, dims gpu.Extent, format gpu.TextureFormat, options ...UploadOption) (Handle, error) {
	cfg := newUploadConfig("texture", options)
	want := int(dims.Width) * int(dims.Height) * format.BytesPerPixel()
	if want == 0 {
		return Handle{}, fmt.Errorf("upload texture %q: %w", cfg.label, ErrEmptyContent)
	}
	if len(pixels) != want {
		return Handle{}, fmt.Errorf("upload texture %q: got %d bytes, want %d for %dx%d", cfg.label, len(pixels), want, dims.Width, dims.Height)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return Handle{}, fmt.Errorf("upload texture %q: %w", cfg.label, err)
	}

	var sum [sha256.Size]byte
	if !cfg.mutable {
		sum = contentHash(KindTexture, pixels, uint64(dims.Width), uint64(dims.Height), uint64(format))
		if e, ok := r.byHash[sum]; ok {
			return r.share(e), nil
		}
	}

	tex, err := r.gpu.Device().CreateTexture(gpu.TextureDescriptor{Label: cfg.label, Size: dims, Format: format})
	if err != nil {
		return Handle{}, fmt.Errorf("upload texture %q: %w", cfg.label, err)
	}
	if err := r.gpu.Queue().WriteTexture(tex, pixels); err != nil {
		tex.Release()
		return Handle{}, fmt.Errorf("upload texture %q: %w", cfg.label, err)
	}
	return r.insert(&Entry{Kind: KindTexture, Label: cfg.label, Mutable: cfg.mutable, Texture: tex}, hashIf(!cfg.mutable, sum)), nil
}

func (r *registryImpl) CreatePipeline(source string, layout gpu.PipelineLayout, options ...UploadOption) (Handle, error) {
	cfg := newUploadConfig("pipeline", options)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return Handle{}, fmt.Errorf("create pipeline %q: %w", cfg.label, err)
	}

	sum := contentHash(KindPipeline, fmt.Appendf([]byte(source), "%+v", layout))
	if e, ok := r.byHash[sum]; ok {
		return r.share(e), nil
	}

	module, err := shader.Compile(cfg.label, source)
	if err != nil {
		return Handle{}, err
	}
	layout = mergeLayout(layout, module)

	pipeline, err := r.gpu.Device().CreateRenderPipeline(gpu.RenderPipelineDescriptor{
		Label:  cfg.label,
		Source: module.Source,
		Layout: layout,
	})
	if err != nil {
		return Handle{}, &shader.CompileError{Label: cfg.label, Diagnostics: err.Error()}
	}
	return r.insert(&Entry{Kind: KindPipeline, Label: cfg.label, Pipeline: pipeline, Module: module}, &sum), nil
}

func (r *registryImpl) CreateBindGroup(pipeline Handle, group uint32, bindings []Binding, options ...UploadOption) (Handle, error) {
	cfg := newUploadConfig("bind group", options)

	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.resolve(pipeline)
	if err != nil {
		return Handle{}, err
	}
	if p.Kind != KindPipeline {
		return Handle{}, fmt.Errorf("bind group %q: %v is a %v: %w", cfg.label, pipeline, p.Kind, ErrKindMismatch)
	}

	sources := make([]boundSource, 0, len(bindings))
	for _, b := range bindings {
		if b.Sampler {
			sources = append(sources, boundSource{binding: b.Binding})
			continue
		}
		e, err := r.resolve(b.Resource)
		if err != nil {
			return Handle{}, err
		}
		if e.Kind != KindBuffer && e.Kind != KindTexture {
			return Handle{}, fmt.Errorf("bind group %q: binding %d is a %v: %w", cfg.label, b.Binding, e.Kind, ErrKindMismatch)
		}
		sources = append(sources, boundSource{binding: b.Binding, entry: e})
	}

	e := &Entry{Kind: KindBindGroup, Label: cfg.label, pipeline: p, group: group, sources: sources}
	bg, err := r.buildBindGroup(e)
	if err != nil {
		return Handle{}, fmt.Errorf("bind group %q: %w", cfg.label, err)
	}
	e.BindGroup = bg
	return r.insert(e, nil), nil
}

// buildBindGroup creates a GPU bind group over the current objects of e's sources.
func (r *registryImpl) buildBindGroup(e *Entry) (gpu.BindGroup, error) {
	entries := make([]gpu.BindGroupEntry, 0, len(e.sources))
	for _, s := range e.sources {
		switch {
		case s.entry == nil:
			entries = append(entries, gpu.BindGroupEntry{Binding: s.binding, Sampler: true})
		case s.entry.Kind == KindBuffer:
			entries = append(entries, gpu.BindGroupEntry{Binding: s.binding, Buffer: s.entry.Buffer})
		default:
			entries = append(entries, gpu.BindGroupEntry{Binding: s.binding, Texture: s.entry.Texture})
		}
	}
	return r.gpu.Device().CreateBindGroup(gpu.BindGroupDescriptor{
		Label:    e.Label,
		Pipeline: e.pipeline.Pipeline,
		Group:    e.group,
		Entries:  entries,
	})
}

// rebind rebuilds every live bind group that binds source. A bind group that cannot be rebuilt is
// invalidated and stops resolving.
func (r *registryImpl) rebind(source *Entry) {
	for e := range r.entries {
		if e.Kind != KindBindGroup || e.invalid || !slices.ContainsFunc(e.sources, func(s boundSource) bool { return s.entry == source }) {
			continue
		}
		bg, err := r.buildBindGroup(e)
		e.BindGroup.Release()
		e.Generation++
		if err != nil {
			e.BindGroup = nil
			e.invalid = true
			common.Logger().Warn("bind group invalidated", zap.String("registry", r.label), zap.String("label", e.Label), zap.Error(err))
			continue
		}
		e.BindGroup = bg
	}
}

func (r *registryImpl) Reupload(h Handle, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("reupload %v: %w", h, ErrEmptyContent)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.resolve(h)
	if err != nil {
		return err
	}
	if !e.Mutable {
		return fmt.Errorf("reupload %v: %w", h, ErrImmutable)
	}

	switch e.Kind {
	case KindBuffer:
		padded := padTo4(data)
		if uint64(len(padded)) <= e.Buffer.Size() {
			if err := r.gpu.Queue().WriteBuffer(e.Buffer, 0, padded); err != nil {
				return fmt.Errorf("reupload %v: %w", h, err)
			}
			break
		}
		buf, err := r.writeNewBuffer(e.Label, data, e.Buffer.Usage(), 0)
		if err != nil {
			return fmt.Errorf("reupload %v: %w", h, err)
		}
		e.Buffer.Release()
		e.Buffer = buf
		r.rebind(e)
	case KindTexture:
		if err := r.gpu.Queue().WriteTexture(e.Texture, data); err != nil {
			return fmt.Errorf("reupload %v: %w", h, err)
		}
	default:
		return fmt.Errorf("reupload %v: %v cannot be reuploaded: %w", h, e.Kind, ErrKindMismatch)
	}
	e.Generation++
	return nil
}

func (r *registryImpl) Retain(h Handle) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.resolve(h)
	if err != nil {
		return Handle{}, err
	}
	return r.share(e), nil
}

func (r *registryImpl) Release(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.resolve(h)
	if err != nil {
		return err
	}

	s := &r.slots[h.index]
	s.entry = nil
	s.generation++
	r.free = append(r.free, h.index)

	e.Refs--
	if e.Refs == 0 {
		r.destroy(e)
	}
	return nil
}

func (r *registryImpl) Get(h Handle) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.resolve(h)
	if err != nil {
		return Entry{}, err
	}
	return *e, nil
}

func (r *registryImpl) Buffer(h Handle) (gpu.Buffer, error) {
	e, err := r.typed(h, KindBuffer)
	if err != nil {
		return nil, err
	}
	return e.Buffer, nil
}

func (r *registryImpl) Texture(h Handle) (gpu.Texture, error) {
	e, err := r.typed(h, KindTexture)
	if err != nil {
		return nil, err
	}
	return e.Texture, nil
}

func (r *registryImpl) Pipeline(h Handle) (gpu.RenderPipeline, error) {
	e, err := r.typed(h, KindPipeline)
	if err != nil {
		return nil, err
	}
	return e.Pipeline, nil
}

func (r *registryImpl) BindGroup(h Handle) (gpu.BindGroup, error) {
	e, err := r.typed(h, KindBindGroup)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.invalid {
		return nil, &StaleHandleError{Handle: h, Reason: ReasonInvalidated}
	}
	return e.BindGroup, nil
}

func (r *registryImpl) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *registryImpl) Handles() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots) - len(r.free)
}

func (r *registryImpl) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[*Entry]bool, len(r.entries))
	out := make([]Entry, 0, len(r.entries))
	for _, s := range r.slots {
		if s.entry == nil || seen[s.entry] {
			continue
		}
		seen[s.entry] = true
		out = append(out, *s.entry)
	}
	return out
}

func (r *registryImpl) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true

	live := make([]*Entry, 0, len(r.entries))
	for e := range r.entries {
		live = append(live, e)
	}
	// bind groups before the pipelines and resources they reference
	slices.SortFunc(live, func(a, b *Entry) int { return int(b.Kind) - int(a.Kind) })
	for _, e := range live {
		r.destroy(e)
	}
	r.slots = nil
	r.free = nil
	common.Logger().Info("resource registry torn down", zap.String("registry", r.label), zap.Int("entries", len(live)))
}

func (r *registryImpl) usable() error {
	if r.closed || r.gpu.Destroyed() {
		return gpu.ErrContextDestroyed
	}
	return nil
}

// resolve must be called with r.mu held.
func (r *registryImpl) resolve(h Handle) (*Entry, error) {
	if r.usable() != nil {
		return nil, &StaleHandleError{Handle: h, Reason: ReasonDeviceDestroyed}
	}
	if h.owner != r.id || int(h.index) >= len(r.slots) {
		return nil, &StaleHandleError{Handle: h, Reason: ReasonUnknown}
	}
	s := r.slots[h.index]
	if s.entry == nil || s.generation != h.generation {
		if h.generation < s.generation {
			return nil, &StaleHandleError{Handle: h, Reason: ReasonReleased}
		}
		return nil, &StaleHandleError{Handle: h, Reason: ReasonUnknown}
	}
	return s.entry, nil
}

func (r *registryImpl) typed(h Handle, kind Kind) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.resolve(h)
	if err != nil {
		return nil, err
	}
	if e.Kind != kind {
		return nil, fmt.Errorf("%v is a %v, not a %v: %w", h, e.Kind, kind, ErrKindMismatch)
	}
	return e, nil
}

// insert registers a new entry. A non-nil sum makes the entry shareable by content.
func (r *registryImpl) insert(e *Entry, sum *[sha256.Size]byte) Handle {
	e.Generation = 1
	if sum != nil {
		e.Hash = *sum
		e.Hashed = true
		r.byHash[*sum] = e
	}
	r.entries[e] = struct{}{}
	common.Logger().Debug("resource created", zap.String("registry", r.label), zap.Stringer("kind", e.Kind), zap.String("label", e.Label))
	return r.share(e)
}

func (r *registryImpl) share(e *Entry) Handle {
	e.Refs++
	if n := len(r.free); n > 0 {
		idx := r.free[n-1]
		r.free = r.free[:n-1]
		r.slots[idx].entry = e
		return Handle{owner: r.id, index: idx, generation: r.slots[idx].generation}
	}
	r.slots = append(r.slots, slot{generation: 1, entry: e})
	return Handle{owner: r.id, index: uint32(len(r.slots) - 1), generation: 1}
}

func (r *registryImpl) destroy(e *Entry) {
	switch e.Kind {
	case KindBuffer:
		e.Buffer.Release()
	case KindTexture:
		e.Texture.Release()
	case KindPipeline:
		e.Pipeline.Release()
	case KindBindGroup:
		if e.BindGroup != nil {
			e.BindGroup.Release()
		}
	}
	if e.Hashed {
		delete(r.byHash, e.Hash)
	}
	delete(r.entries, e)
	common.Logger().Debug("resource released", zap.String("registry", r.label), zap.Stringer("kind", e.Kind), zap.String("label", e.Label))
}

func (r *registryImpl) writeNewBuffer(label string, data []byte, usage gpu.BufferUsage, capacity uint64) (gpu.Buffer, error) {
	padded := padTo4(data)
	size := max(uint64(len(padded)), (capacity+3)&^3)
	buf, err := r.gpu.Device().CreateBuffer(gpu.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return nil, err
	}
	if err := r.gpu.Queue().WriteBuffer(buf, 0, padded); err != nil {
		buf.Release()
		return nil, err
	}
	return buf, nil
}

func hashIf(ok bool, sum [sha256.Size]byte) *[sha256.Size]byte {
	if !ok {
		return nil
	}
	return &sum
}

func newUploadConfig(label string, options []UploadOption) uploadConfig {
	cfg := uploadConfig{label: label}
	for _, option := range options {
		option(&cfg)
	}
	return cfg
}

// mergeLayout fills unset layout fields from the module's reflection.
func mergeLayout(layout gpu.PipelineLayout, m *shader.Module) gpu.PipelineLayout {
	if layout.VertexEntryPoint == "" {
		layout.VertexEntryPoint = m.VertexEntryPoint
	}
	if layout.FragmentEntryPoint == "" {
		layout.FragmentEntryPoint = m.FragmentEntryPoint
	}
	if layout.VertexBuffers == nil {
		layout.VertexBuffers = m.VertexBuffers
	}
	if layout.BindGroups == nil {
		layout.BindGroups = m.BindGroups
	}
	return layout
}

// padTo4 returns data extended with zeros to a multiple of four bytes, as queue writes require.
func padTo4(data []byte) []byte {
	if len(data)%4 == 0 {
		return data
	}
	padded := make([]byte, (len(data)+3)&^3)
	copy(padded, data)
	return padded
}

func contentHash(kind Kind, content []byte, params ...uint64) [sha256.Size]byte {
	h := sha256.New()
	var word [8]byte
	binary.LittleEndian.PutUint64(word[:], uint64(kind))
	h.Write(word[:])
	for _, p := range params {
		binary.LittleEndian.PutUint64(word[:], p)
		h.Write(word[:])
	}
	h.Write(content)
	var sum [sha256.Size]byte
	h.Sum(sum[:0])
	return sum
}
