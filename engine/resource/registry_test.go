package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
	"github.com/Carmen-Shannon/oxy-runtime/engine/shader"
)

const quadShader = `//@oxy:include camera
//@oxy:group 0 0 uniform camera camera

struct VertexInput {
    @location(0) position: vec2<f32>,
}

@vertex
fn vs_main(v: VertexInput) -> @builtin(position) vec4<f32> {
    return camera.view_proj * vec4<f32>(v.position, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 1.0, 1.0, 1.0);
}
`

func newRegistry(t *testing.T) (Registry, gpu.Context, *gpu.HeadlessDriver) {
	t.Helper()
	d := gpu.NewHeadlessDriver()
	ctx, err := gpu.Initialize(context.Background(), gpu.BackendHeadless, gpu.PowerPreferenceDefault, gpu.WithDriver(d))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	r := NewRegistry(ctx)
	t.Cleanup(func() {
		r.Teardown()
		ctx.Destroy()
	})
	return r, ctx, d
}

func TestDedupReleasesOnce(t *testing.T) {
	r, _, d := newRegistry(t)
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	a, err := r.UploadBuffer(data, gpu.BufferUsageVertex)
	if err != nil {
		t.Fatalf("UploadBuffer: %v", err)
	}
	b, err := r.UploadBuffer(data, gpu.BufferUsageVertex)
	if err != nil {
		t.Fatalf("UploadBuffer: %v", err)
	}
	if a == b {
		t.Fatal("identical uploads returned the same handle")
	}
	if r.Len() != 1 || r.Handles() != 2 {
		t.Fatalf("Len=%d Handles=%d, want 1 and 2", r.Len(), r.Handles())
	}
	if d.Stats().LiveBuffers != 1 {
		t.Fatalf("live buffers = %d, want 1", d.Stats().LiveBuffers)
	}

	if err := r.Release(a); err != nil {
		t.Fatalf("Release(a): %v", err)
	}
	if _, err := r.Buffer(b); err != nil {
		t.Fatalf("b invalid after releasing a: %v", err)
	}
	if d.Stats().LiveBuffers != 1 {
		t.Fatal("buffer freed while a handle was outstanding")
	}

	if err := r.Release(b); err != nil {
		t.Fatalf("Release(b): %v", err)
	}
	s := d.Stats()
	if s.LiveBuffers != 0 || s.DoubleReleases != 0 || r.Len() != 0 {
		t.Errorf("after both releases: stats=%+v Len=%d", s, r.Len())
	}
}

func TestDedupKeyIncludesDescriptor(t *testing.T) {
	r, _, _ := newRegistry(t)
	data := []byte{9, 9, 9, 9}

	tests := []struct {
		name  string
		usage gpu.BufferUsage
		opts  []UploadOption
	}{
		{"vertex", gpu.BufferUsageVertex, nil},
		{"index", gpu.BufferUsageIndex, nil},
		{"mutable vertex", gpu.BufferUsageVertex, []UploadOption{WithMutable()}},
		{"second mutable vertex", gpu.BufferUsageVertex, []UploadOption{WithMutable()}},
	}
	for _, tt := range tests {
		if _, err := r.UploadBuffer(data, tt.usage, tt.opts...); err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
	}
	if r.Len() != len(tests) {
		t.Errorf("Len = %d, want %d distinct entries", r.Len(), len(tests))
	}
}

func TestStaleHandles(t *testing.T) {
	r, _, _ := newRegistry(t)
	other, _, _ := newRegistry(t)

	h, err := r.UploadBuffer([]byte{1, 2, 3, 4}, gpu.BufferUsageUniform)
	if err != nil {
		t.Fatalf("UploadBuffer: %v", err)
	}
	if err := r.Release(h); err != nil {
		t.Fatalf("Release: %v", err)
	}
	reused, err := r.UploadBuffer([]byte{5, 6, 7, 8}, gpu.BufferUsageUniform)
	if err != nil {
		t.Fatalf("UploadBuffer: %v", err)
	}
	if reused.index != h.index {
		t.Fatalf("slot not reused: %v vs %v", reused, h)
	}

	tests := []struct {
		name   string
		handle Handle
		reason StaleReason
	}{
		{"released", h, ReasonReleased},
		{"zero", Handle{}, ReasonUnknown},
		{"foreign", reused, ReasonUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := r
			if tt.name == "foreign" {
				reg = other
			}
			err := reg.Release(tt.handle)
			var se *StaleHandleError
			if !errors.As(err, &se) || se.Reason != tt.reason {
				t.Fatalf("Release err = %v, want reason %v", err, tt.reason)
			}
			if !errors.Is(err, ErrStaleHandle) {
				t.Errorf("err does not match ErrStaleHandle")
			}
			if _, err := reg.Get(tt.handle); !errors.Is(err, ErrStaleHandle) {
				t.Errorf("Get err = %v", err)
			}
		})
	}
}

func TestHandlesInvalidAfterTeardown(t *testing.T) {
	r, ctx, d := newRegistry(t)
	h, err := r.UploadTexture(make([]byte, 2*2*4), gpu.Extent{Width: 2, Height: 2}, gpu.TextureFormatRGBA8Unorm)
	if err != nil {
		t.Fatalf("UploadTexture: %v", err)
	}

	r.Teardown()
	ctx.Destroy()

	for name, call := range map[string]func() error{
		"get":     func() error { _, err := r.Get(h); return err },
		"release": func() error { return r.Release(h) },
		"texture": func() error { _, err := r.Texture(h); return err },
	} {
		err := call()
		var se *StaleHandleError
		if !errors.As(err, &se) || se.Reason != ReasonDeviceDestroyed {
			t.Errorf("%s err = %v, want ReasonDeviceDestroyed", name, err)
		}
		if !errors.Is(err, gpu.ErrContextDestroyed) {
			t.Errorf("%s err does not match gpu.ErrContextDestroyed", name)
		}
	}
	if _, err := r.UploadBuffer([]byte{1}, gpu.BufferUsageVertex); !errors.Is(err, gpu.ErrContextDestroyed) {
		t.Errorf("upload after teardown err = %v", err)
	}
	if s := d.Stats(); s.LiveTextures != 0 || s.DoubleReleases != 0 || s.LeakedAtDeviceRelease != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestDestroyedContextWithoutTeardown(t *testing.T) {
	r, ctx, _ := newRegistry(t)
	h, err := r.UploadBuffer([]byte{1, 2, 3, 4}, gpu.BufferUsageVertex)
	if err != nil {
		t.Fatalf("UploadBuffer: %v", err)
	}
	ctx.Destroy()
	if _, err := r.Get(h); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("Get after device destroy err = %v", err)
	}
}

func TestReupload(t *testing.T) {
	r, _, d := newRegistry(t)

	imm, err := r.UploadBuffer([]byte{1, 2, 3, 4}, gpu.BufferUsageVertex)
	if err != nil {
		t.Fatalf("UploadBuffer: %v", err)
	}
	if err := r.Reupload(imm, []byte{4, 3, 2, 1}); !errors.Is(err, ErrImmutable) {
		t.Errorf("Reupload immutable err = %v, want ErrImmutable", err)
	}

	mut, err := r.UploadBuffer([]byte{1, 2, 3, 4}, gpu.BufferUsageVertex, WithMutable(), WithCapacity(16))
	if err != nil {
		t.Fatalf("UploadBuffer mutable: %v", err)
	}
	before, _ := r.Get(mut)
	if before.Buffer.Size() != 16 {
		t.Errorf("capacity = %d, want 16", before.Buffer.Size())
	}

	tests := []struct {
		name     string
		data     []byte
		wantSize uint64
	}{
		{"fits", make([]byte, 12), 16},
		{"grows", make([]byte, 30), 32},
	}
	gen := before.Generation
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Reupload(mut, tt.data); err != nil {
				t.Fatalf("Reupload: %v", err)
			}
			e, err := r.Get(mut)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if e.Generation != gen+1 {
				t.Errorf("generation = %d, want %d", e.Generation, gen+1)
			}
			gen = e.Generation
			if e.Buffer.Size() != tt.wantSize {
				t.Errorf("size = %d, want %d", e.Buffer.Size(), tt.wantSize)
			}
		})
	}
	if s := d.Stats(); s.LiveBuffers != 2 || s.DoubleReleases != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestUploadTextureValidatesSize(t *testing.T) {
	r, _, _ := newRegistry(t)
	_, err := r.UploadTexture(make([]byte, 10), gpu.Extent{Width: 2, Height: 2}, gpu.TextureFormatRGBA8Unorm)
	if err == nil {
		t.Fatal("expected size mismatch error")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after failed upload", r.Len())
	}
}

func TestCreatePipeline(t *testing.T) {
	r, _, d := newRegistry(t)

	p1, err := r.CreatePipeline(quadShader, gpu.PipelineLayout{}, WithLabel("quad"))
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	p2, err := r.CreatePipeline(quadShader, gpu.PipelineLayout{}, WithLabel("quad"))
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	if r.Len() != 1 || d.Stats().LivePipelines != 1 {
		t.Fatalf("pipelines not deduplicated: Len=%d live=%d", r.Len(), d.Stats().LivePipelines)
	}
	e, err := r.Get(p1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Module == nil || e.Module.VertexEntryPoint != "vs_main" {
		t.Errorf("module = %+v", e.Module)
	}

	cam, err := r.UploadBuffer(make([]byte, 80), gpu.BufferUsageUniform, WithMutable())
	if err != nil {
		t.Fatalf("UploadBuffer: %v", err)
	}
	bg, err := r.CreateBindGroup(p2, 0, []Binding{{Binding: 0, Resource: cam}})
	if err != nil {
		t.Fatalf("CreateBindGroup: %v", err)
	}
	if _, err := r.BindGroup(bg); err != nil {
		t.Errorf("BindGroup: %v", err)
	}
	if _, err := r.CreateBindGroup(cam, 0, nil); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("bind group on buffer err = %v, want ErrKindMismatch", err)
	}
	if _, err := r.Pipeline(cam); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("Pipeline(buffer) err = %v, want ErrKindMismatch", err)
	}
}

func TestReuploadGrowthRebuildsBindGroups(t *testing.T) {
	tests := []struct {
		name            string
		releasePipeline bool
		wantStale       bool
	}{
		{"rebuilt over the new buffer", false, false},
		{"invalidated without its pipeline", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, d := newRegistry(t)
			p, err := r.CreatePipeline(quadShader, gpu.PipelineLayout{}, WithLabel("quad"))
			if err != nil {
				t.Fatalf("CreatePipeline: %v", err)
			}
			cam, err := r.UploadBuffer(make([]byte, 80), gpu.BufferUsageUniform, WithMutable())
			if err != nil {
				t.Fatalf("UploadBuffer: %v", err)
			}
			bg, err := r.CreateBindGroup(p, 0, []Binding{{Binding: 0, Resource: cam}})
			if err != nil {
				t.Fatalf("CreateBindGroup: %v", err)
			}
			old, _ := r.BindGroup(bg)
			before, _ := r.Get(bg)
			if tt.releasePipeline {
				if err := r.Release(p); err != nil {
					t.Fatalf("Release pipeline: %v", err)
				}
			}

			if err := r.Reupload(cam, make([]byte, 256)); err != nil {
				t.Fatalf("Reupload: %v", err)
			}
			after, err := r.Get(bg)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if after.Generation != before.Generation+1 {
				t.Errorf("bind group generation = %d, want %d", after.Generation, before.Generation+1)
			}

			got, err := r.BindGroup(bg)
			var stale *StaleHandleError
			if tt.wantStale {
				if !errors.As(err, &stale) || stale.Reason != ReasonInvalidated {
					t.Errorf("BindGroup err = %v, want an invalidated stale handle", err)
				}
				if n := d.Stats().LiveBindGroups; n != 0 {
					t.Errorf("live bind groups = %d, want 0", n)
				}
			} else {
				if err != nil {
					t.Fatalf("BindGroup: %v", err)
				}
				if got == old {
					t.Error("bind group still refers to the released buffer")
				}
				if n := d.Stats().LiveBindGroups; n != 1 {
					t.Errorf("live bind groups = %d, want 1", n)
				}
			}

			if err := r.Release(bg); err != nil {
				t.Fatalf("Release bind group: %v", err)
			}
			if s := d.Stats(); s.DoubleReleases != 0 || s.LiveBindGroups != 0 {
				t.Errorf("stats = %+v", s)
			}
		})
	}
}

func TestCreatePipelineCompileError(t *testing.T) {
	r, _, d := newRegistry(t)
	_, err := r.CreatePipeline("@vertex fn vs_main( {", gpu.PipelineLayout{}, WithLabel("broken"))

	var ce *shader.CompileError
	if !errors.As(err, &ce) || ce.Label != "broken" || ce.Diagnostics == "" {
		t.Fatalf("err = %v, want *shader.CompileError", err)
	}
	if r.Len() != 0 || d.Stats().LivePipelines != 0 {
		t.Errorf("failed compile left an entry behind")
	}
}

func TestRetain(t *testing.T) {
	r, _, d := newRegistry(t)
	h, err := r.UploadBuffer([]byte{1, 2, 3, 4}, gpu.BufferUsageUniform, WithMutable())
	if err != nil {
		t.Fatalf("UploadBuffer: %v", err)
	}
	kept, err := r.Retain(h)
	if err != nil {
		t.Fatalf("Retain: %v", err)
	}
	if kept == h || r.Handles() != 2 || r.Len() != 1 {
		t.Fatalf("kept=%v h=%v handles=%d len=%d", kept, h, r.Handles(), r.Len())
	}

	if err := r.Release(h); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := r.Reupload(kept, []byte{5, 6, 7, 8}); err != nil {
		t.Errorf("Reupload through retained handle: %v", err)
	}
	if err := r.Release(kept); err != nil {
		t.Fatalf("Release retained: %v", err)
	}
	if got := d.Stats().LiveBuffers; got != 0 {
		t.Errorf("LiveBuffers = %d, want 0", got)
	}
	if _, err := r.Retain(kept); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("Retain of released handle err = %v", err)
	}
}
