package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
	"github.com/Carmen-Shannon/oxy-runtime/engine/resource"
	"github.com/Carmen-Shannon/oxy-runtime/engine/scheduler"
	"github.com/Carmen-Shannon/oxy-runtime/engine/window"
)

// quadScene uploads one vertex buffer on its first update and draws it every frame.
type quadScene struct {
	pipeline resource.Handle
	vertices resource.Handle
	frames   int
}

const quadShader = `struct VertexInput {
    @location(0) position: vec2<f32>,
}

@vertex
fn vs_main(v: VertexInput) -> @builtin(position) vec4<f32> {
    return vec4<f32>(v.position, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

func (s *quadScene) Active() bool { return true }

func (s *quadScene) Update(fs *scheduler.FrameState) error {
	s.frames++
	if !s.vertices.IsZero() {
		return nil
	}
	var err error
	s.vertices, err = fs.Registry.UploadBuffer(make([]byte, 3*8), gpu.BufferUsageVertex, resource.WithLabel("triangle"))
	return err
}

func (s *quadScene) Record(fs *scheduler.FrameState) error {
	p, err := fs.Registry.Pipeline(s.pipeline)
	if err != nil {
		return err
	}
	vb, err := fs.Registry.Buffer(s.vertices)
	if err != nil {
		return err
	}
	fs.Pass.SetPipeline(p)
	fs.Pass.SetVertexBuffer(0, vb)
	fs.Pass.Draw(3, 1)
	return nil
}

func headlessConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = gpu.BackendHeadless
	cfg.Width, cfg.Height = 320, 240
	return cfg
}

func TestRunHeadless(t *testing.T) {
	d := gpu.NewHeadlessDriver()
	w := window.NewScriptedWindow(320, 240, window.CloseAfter(3))
	scene := &quadScene{}

	var phases []string
	var registry resource.Registry
	status, err := Run(context.Background(), headlessConfig(),
		WithGPUDriver(d),
		WithWindow(w),
		WithScene(0, scene),
		WithSetup(func(rt *Runtime) error {
			registry = rt.Registry
			var err error
			scene.pipeline, err = rt.Registry.CreatePipeline(quadShader, gpu.PipelineLayout{}, resource.WithLabel("quad"))
			return err
		}),
		WithSchedulerOptions(scheduler.WithPhaseObserver(func(frame uint64, p scheduler.Phase) {
			phases = append(phases, fmt.Sprintf("%d:%s", frame, p))
		})),
	)
	if status != ExitClean || err != nil {
		t.Fatalf("Run = %v, %v, want clean", status, err)
	}

	if len(phases) != 12 {
		t.Fatalf("phases = %v, want 3 full cycles", phases)
	}
	for i, p := range phases {
		want := fmt.Sprintf("%d:%s", i/4+1, scheduler.Phase(i%4))
		if p != want {
			t.Errorf("phase %d = %s, want %s", i, p, want)
		}
	}
	if scene.frames != 3 {
		t.Errorf("scene updated %d times, want 3", scene.frames)
	}

	st := d.Stats()
	if st.Presents != 3 || st.DrawCalls != 3 {
		t.Errorf("presents = %d, draws = %d, want 3 and 3", st.Presents, st.DrawCalls)
	}
	if registry.Len() != 0 {
		t.Errorf("registry holds %d entries after Run", registry.Len())
	}
	if st.LiveBuffers != 0 || st.LivePipelines != 0 || st.LiveDevices != 0 || st.LiveSurfaces != 0 {
		t.Errorf("leaked GPU objects: %+v", st)
	}
	if w.Closed() {
		t.Error("engine closed a window it did not create")
	}
}

func TestRunInitFailures(t *testing.T) {
	tests := []struct {
		name  string
		cfg   func() Config
		setup func(rt *Runtime) error
		check func(t *testing.T, err error)
	}{
		{
			name: "no adapter",
			cfg: func() Config {
				cfg := headlessConfig()
				cfg.Backend = gpu.BackendMetal
				return cfg
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, gpu.ErrNoCompatibleAdapter) || !IsInitFailure(err) {
					t.Errorf("err = %v, want ErrNoCompatibleAdapter", err)
				}
			},
		},
		{
			name: "bad size",
			cfg: func() Config {
				cfg := headlessConfig()
				cfg.Width = 0
				return cfg
			},
		},
		{
			name: "setup error",
			cfg:  headlessConfig,
			setup: func(rt *Runtime) error {
				if _, err := rt.Registry.UploadBuffer([]byte{1, 2, 3, 4}, gpu.BufferUsageVertex); err != nil {
					return err
				}
				return errors.New("no sprites")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := gpu.NewHeadlessDriver()
			options := []EngineBuilderOption{WithGPUDriver(d)}
			if tt.setup != nil {
				options = append(options, WithSetup(tt.setup))
			}

			status, err := Run(context.Background(), tt.cfg(), options...)
			if status != ExitInitFailure || err == nil {
				t.Fatalf("Run = %v, %v, want init failure", status, err)
			}
			if tt.check != nil {
				tt.check(t, err)
			}
			if st := d.Stats(); st.LiveDevices != 0 || st.LiveBuffers != 0 {
				t.Errorf("leaked GPU objects: %+v", st)
			}
		})
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, err := Run(ctx, headlessConfig(), WithGPUDriver(gpu.NewHeadlessDriver()))
	if status != ExitInitFailure || !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, %v, want init failure with context.Canceled", status, err)
	}
}

func TestRunMaxFrames(t *testing.T) {
	d := gpu.NewHeadlessDriver()
	cfg := headlessConfig()
	cfg.MaxFrames = 5
	cfg.Profiling = true

	status, err := Run(context.Background(), cfg, WithGPUDriver(d))
	if status != ExitClean || err != nil {
		t.Fatalf("Run = %v, %v", status, err)
	}
	if got := d.Stats().Presents; got != 5 {
		t.Errorf("presents = %d, want 5", got)
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{"", TargetNativeWindow, false},
		{"native-window", TargetNativeWindow, false},
		{"Web-Canvas", TargetWebCanvas, false},
		{"canvas", TargetWebCanvas, false},
		{"framebuffer", TargetNativeWindow, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseTarget(%q) = %v, %v", tt.in, got, err)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg.Target = TargetWebCanvas
	cfg.CanvasID = ""
	cfg.FrameLimit = -1
	if err := cfg.Validate(); err == nil {
		t.Error("invalid config accepted")
	}
}
