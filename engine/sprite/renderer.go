package sprite

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-runtime/common"
	"github.com/Carmen-Shannon/oxy-runtime/engine/camera"
	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
	"github.com/Carmen-Shannon/oxy-runtime/engine/resource"
	"github.com/Carmen-Shannon/oxy-runtime/engine/scheduler"
	"go.uber.org/zap"
)

// ShaderSource is the sprite pipeline's WGSL source.
//
//go:embed assets/sprite.wgsl
var ShaderSource string

// Renderer batches sprite draws for one atlas and records them into a render pass.
type Renderer interface {
	// Pipeline returns the sprite pipeline handle. Atlases bind their texture to its group 0.
	Pipeline() resource.Handle

	// SetAtlas selects the atlas later draws refer to. Queued draws are dropped.
	SetAtlas(a Atlas)

	// Draw queues one sprite instance for the next Flush.
	//
	// Parameters:
	//   - s: a sprite of the current atlas
	//   - inst: where and how to draw it
	Draw(s Sprite, inst Instance)

	// Len returns the number of queued draws.
	Len() int

	// UpdateGlobals uploads the camera and time uniforms.
	//
	// Parameters:
	//   - cam: the camera uniform
	//   - t: the frame's time uniform
	//
	// Returns:
	//   - error: a registry error
	UpdateGlobals(cam camera.GPUCameraUniform, t scheduler.TimeUniform) error

	// Flush sorts queued draws by layer, uploads their instances and records one indexed draw per sprite.
	// The queue is empty afterwards. Flushing an empty queue records nothing.
	//
	// Parameters:
	//   - pass: the render pass to record into
	//
	// Returns:
	//   - error: an error if no atlas is set or a handle does not resolve
	Flush(pass gpu.RenderPass) error

	// Release releases the pipeline, uniform and instance buffers. The atlas is not released.
	Release() error
}

type draw struct {
	sprite   Sprite
	instance Instance
}

type renderer struct {
	reg   resource.Registry
	label string
	atlas Atlas

	pipeline  resource.Handle
	cameraBuf resource.Handle
	timeBuf   resource.Handle
	globals   resource.Handle
	instances resource.Handle

	capacity int
	queue    []draw
	raw      []gpuInstance
}

var _ Renderer = &renderer{}

// NewRenderer creates the sprite pipeline and its per-frame buffers.
//
// Parameters:
//   - reg: the registry to allocate from
//   - options: renderer options
//
// Returns:
//   - Renderer: the renderer
//   - error: a *shader.CompileError or a registry error
func NewRenderer(reg resource.Registry, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{reg: reg, label: "sprite", capacity: 96}
	for _, option := range options {
		option(r)
	}

	if err := r.create(); err != nil {
		r.Release()
		return nil, err
	}
	common.Logger().Debug("sprite renderer created", zap.String("label", r.label), zap.Int("capacity", r.capacity))
	return r, nil
}

func (r *renderer) create() error {
	var err error
	r.pipeline, err = r.reg.CreatePipeline(ShaderSource, gpu.PipelineLayout{
		VertexBuffers: vertexBuffers,
		Blend:         gpu.BlendAlpha,
		CullBackFaces: true,
	}, resource.WithLabel(r.label))
	if err != nil {
		return err
	}

	var cam camera.GPUCameraUniform
	if r.cameraBuf, err = r.reg.UploadBuffer(cam.Marshal(), gpu.BufferUsageUniform,
		resource.WithLabel(r.label+" camera"), resource.WithMutable()); err != nil {
		return err
	}
	if r.timeBuf, err = r.reg.UploadBuffer(scheduler.TimeUniform{}.Marshal(), gpu.BufferUsageUniform,
		resource.WithLabel(r.label+" time"), resource.WithMutable()); err != nil {
		return err
	}
	if r.globals, err = r.reg.CreateBindGroup(r.pipeline, 1, []resource.Binding{
		{Binding: 0, Resource: r.cameraBuf},
		{Binding: 1, Resource: r.timeBuf},
	}, resource.WithLabel(r.label+" globals")); err != nil {
		return err
	}
	r.instances, err = r.reg.UploadBuffer(make([]byte, instanceStride), gpu.BufferUsageVertex,
		resource.WithLabel(r.label+" instances"), resource.WithMutable(),
		resource.WithCapacity(instanceStride*uint64(r.capacity)))
	return err
}

func (r *renderer) Pipeline() resource.Handle {
	return r.pipeline
}

func (r *renderer) SetAtlas(a Atlas) {
	r.atlas = a
	r.queue = r.queue[:0]
}

func (r *renderer) Draw(s Sprite, inst Instance) {
	r.queue = append(r.queue, draw{sprite: s, instance: inst})
}

func (r *renderer) Len() int {
	return len(r.queue)
}

func (r *renderer) UpdateGlobals(cam camera.GPUCameraUniform, t scheduler.TimeUniform) error {
	if err := r.reg.Reupload(r.cameraBuf, cam.Marshal()); err != nil {
		return err
	}
	return r.reg.Reupload(r.timeBuf, t.Marshal())
}

func (r *renderer) Flush(pass gpu.RenderPass) error {
	if len(r.queue) == 0 {
		return nil
	}
	defer func() { r.queue = r.queue[:0] }()
	if r.atlas == nil {
		return fmt.Errorf("sprite %s: flush of %d draws without an atlas", r.label, len(r.queue))
	}

	slices.SortStableFunc(r.queue, func(a, b draw) int {
		return int(a.instance.Layer) - int(b.instance.Layer)
	})
	r.raw = r.raw[:0]
	for _, d := range r.queue {
		r.raw = append(r.raw, d.instance.raw())
	}
	if err := r.reg.Reupload(r.instances, common.SliceToBytes(r.raw)); err != nil {
		return err
	}

	pipeline, err := r.reg.Pipeline(r.pipeline)
	if err != nil {
		return err
	}
	textureGroup, err := r.reg.BindGroup(r.atlas.BindGroup())
	if err != nil {
		return err
	}
	globals, err := r.reg.BindGroup(r.globals)
	if err != nil {
		return err
	}
	vertices, err := r.reg.Buffer(r.atlas.VertexBuffer())
	if err != nil {
		return err
	}
	instances, err := r.reg.Buffer(r.instances)
	if err != nil {
		return err
	}
	indices, err := r.reg.Buffer(r.atlas.IndexBuffer())
	if err != nil {
		return err
	}

	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, textureGroup)
	pass.SetBindGroup(1, globals)
	pass.SetVertexBuffer(0, vertices)
	pass.SetVertexBuffer(1, instances)
	pass.SetIndexBuffer(indices, gpu.IndexFormatUint16)

	for i, d := range r.queue {
		if int(d.sprite) >= r.atlas.Len() {
			continue
		}
		first, count := r.atlas.Indices(d.sprite)
		pass.DrawIndexed(first, count, uint32(i), 1)
	}
	return nil
}

func (r *renderer) Release() error {
	var errs []error
	for _, h := range []*resource.Handle{&r.globals, &r.instances, &r.timeBuf, &r.cameraBuf, &r.pipeline} {
		if h.IsZero() {
			continue
		}
		if err := r.reg.Release(*h); err != nil {
			errs = append(errs, err)
		}
		*h = resource.Handle{}
	}
	return errors.Join(errs...)
}
