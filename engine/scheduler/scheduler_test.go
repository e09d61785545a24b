package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
	"testing/fstest"
	"time"

	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
	"github.com/Carmen-Shannon/oxy-runtime/engine/loader"
	"github.com/Carmen-Shannon/oxy-runtime/engine/resource"
	"github.com/Carmen-Shannon/oxy-runtime/engine/surface"
	"github.com/Carmen-Shannon/oxy-runtime/engine/window"
)

type fixture struct {
	driver   *gpu.HeadlessDriver
	ctx      gpu.Context
	surface  surface.Surface
	fake     *gpu.HeadlessSurface
	registry resource.Registry
	window   *window.ScriptedWindow
	sched    Scheduler
	phases   []string
}

func newFixture(t *testing.T, script []window.ScriptOption, opts ...SchedulerBuilderOption) *fixture {
	t.Helper()
	f := &fixture{driver: gpu.NewHeadlessDriver()}

	var err error
	f.ctx, err = gpu.Initialize(context.Background(), gpu.BackendHeadless, gpu.PowerPreferenceDefault, gpu.WithDriver(f.driver))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	f.window = window.NewScriptedWindow(320, 240, script...)
	f.surface, err = surface.Configure(f.ctx, f.window, surface.Size{Width: 320, Height: 240})
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	f.fake = f.driver.Surfaces()[0]
	f.registry = resource.NewRegistry(f.ctx)

	opts = append([]SchedulerBuilderOption{WithPhaseObserver(func(frame uint64, p Phase) {
		f.phases = append(f.phases, fmt.Sprintf("%d:%s", frame, p))
	})}, opts...)
	f.sched, err = New(f.ctx, f.surface, f.registry, f.window, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if f.sched.State() != StateTerminated {
			f.sched.RequestShutdown()
			f.sched.Tick(time.Now())
		}
	})
	return f
}

// testScene records the order of its calls into a shared log.
type testScene struct {
	name      string
	inactive  bool
	log       *[]string
	updateErr error
	loaded    []Loaded
	resized   [2]int
	released  bool
	onUpdate  func(fs *FrameState)
}

func (s *testScene) Active() bool { return !s.inactive }

func (s *testScene) Update(fs *FrameState) error {
	*s.log = append(*s.log, "update "+s.name)
	s.loaded = append(s.loaded, fs.Loaded...)
	if s.onUpdate != nil {
		s.onUpdate(fs)
	}
	return s.updateErr
}

func (s *testScene) Record(fs *FrameState) error {
	*s.log = append(*s.log, "record "+s.name)
	if fs.Pass == nil || fs.Target == nil || fs.Encoder == nil {
		return errors.New("record without a pass")
	}
	return nil
}

func (s *testScene) Resize(width, height int) { s.resized = [2]int{width, height} }

func (s *testScene) Release() error {
	s.released = true
	return nil
}

func TestNewValidates(t *testing.T) {
	if _, err := New(nil, nil, nil, nil); err == nil {
		t.Error("New with nil collaborators succeeded")
	}

	f := newFixture(t, nil)
	if got := f.sched.State(); got != StateReady {
		t.Errorf("State() = %v, want ready", got)
	}
}

func TestPhasesRunInOrderUntilClose(t *testing.T) {
	f := newFixture(t, []window.ScriptOption{window.CloseAfter(3)})

	if err := (&LoopDriver{}).Drive(context.Background(), f.sched); err != nil {
		t.Fatalf("Drive: %v", err)
	}

	var want []string
	for frame := 1; frame <= 3; frame++ {
		for _, p := range []Phase{PhaseEventPump, PhaseUpdate, PhaseRecord, PhasePresent} {
			want = append(want, fmt.Sprintf("%d:%s", frame, p))
		}
	}
	if fmt.Sprint(f.phases) != fmt.Sprint(want) {
		t.Errorf("phases = %v\nwant %v", f.phases, want)
	}

	if f.sched.State() != StateTerminated {
		t.Errorf("State() = %v, want terminated", f.sched.State())
	}
	if f.registry.Len() != 0 {
		t.Errorf("registry holds %d entries after shutdown", f.registry.Len())
	}
	st := f.driver.Stats()
	if st.Presents != 3 || st.Submissions != 3 {
		t.Errorf("presents = %d, submissions = %d, want 3 and 3", st.Presents, st.Submissions)
	}
	if st.LiveDevices != 0 || !f.fake.Released() || !f.ctx.Destroyed() {
		t.Errorf("device/surface not released: %+v", st)
	}
}

func TestSkippedFrames(t *testing.T) {
	tests := []struct {
		name    string
		script  []window.ScriptOption
		prepare func(f *fixture)
		wantErr error
	}{
		{
			name:    "surface lost",
			prepare: func(f *fixture) { f.fake.FailNextAcquire(fmt.Errorf("outdated: %w", gpu.ErrSurfaceLost)) },
			wantErr: surface.ErrSurfaceLost,
		},
		{
			name:    "timeout",
			prepare: func(f *fixture) { f.fake.FailNextAcquire(fmt.Errorf("acquire: %w", gpu.ErrSurfaceTimeout)) },
			wantErr: surface.ErrTimeout,
		},
		{
			name:   "zero size",
			script: []window.ScriptOption{window.ResizeAt(1, 0, 0), window.ResizeAt(2, 640, 480)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.script)
			if tt.prepare != nil {
				tt.prepare(f)
			}

			res := f.sched.Tick(time.Now())
			if res.Status != StatusSkipped {
				t.Fatalf("first tick = %v, want skipped", res.Status)
			}
			if tt.wantErr != nil && !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("first tick err = %v, want %v", res.Err, tt.wantErr)
			}
			if tt.wantErr == nil && res.Err != nil {
				t.Errorf("first tick err = %v, want nil", res.Err)
			}
			if got := f.sched.State(); got != StateReady {
				t.Errorf("State() after skip = %v, want ready", got)
			}
			want := []string{"1:event-pump", "1:update", "1:record"}
			if fmt.Sprint(f.phases) != fmt.Sprint(want) {
				t.Errorf("phases = %v, want %v", f.phases, want)
			}

			if res := f.sched.Tick(time.Now()); res.Status != StatusPresented {
				t.Errorf("second tick = %v (%v), want presented", res.Status, res.Err)
			}
		})
	}
}

func TestSceneOrderAndErrors(t *testing.T) {
	var log []string
	back := &testScene{name: "back", log: &log}
	front := &testScene{name: "front", log: &log, updateErr: errors.New("boom")}
	hidden := &testScene{name: "hidden", log: &log, inactive: true}

	f := newFixture(t, []window.ScriptOption{window.ResizeAt(1, 800, 600)})
	f.sched.AddScene(10, front)
	f.sched.AddScene(-1, back)
	f.sched.AddScene(3, hidden)

	res := f.sched.Tick(time.Now())
	if res.Status != StatusPresented {
		t.Fatalf("tick = %v (%v), want presented", res.Status, res.Err)
	}
	if res.Err == nil || res.Err.Error() != "boom" {
		t.Errorf("tick err = %v, want boom", res.Err)
	}
	want := []string{"update back", "update front", "record back", "record front"}
	if fmt.Sprint(log) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", log, want)
	}
	if front.resized != [2]int{800, 600} || hidden.resized != [2]int{800, 600} {
		t.Errorf("resize not delivered: front %v hidden %v", front.resized, hidden.resized)
	}
	if d := f.surface.Descriptor(); d.Width != 800 || d.Height != 600 {
		t.Errorf("surface = %dx%d, want 800x600", d.Width, d.Height)
	}

	f.sched.RemoveScene(10)
	if f.sched.Scene(10) != nil || f.sched.Scene(-1) != back {
		t.Error("RemoveScene/Scene mismatch")
	}

	f.sched.RequestShutdown()
	if res := f.sched.Tick(time.Now()); res.Status != StatusTerminated {
		t.Fatalf("tick after RequestShutdown = %v", res.Status)
	}
	if !back.released || !hidden.released || front.released {
		t.Errorf("released: back %v hidden %v front %v", back.released, hidden.released, front.released)
	}
}

func TestShutdownAtTopOfTick(t *testing.T) {
	f := newFixture(t, nil)
	if res := f.sched.Tick(time.Now()); res.Status != StatusPresented {
		t.Fatalf("tick = %v", res.Status)
	}
	f.phases = nil

	f.sched.RequestShutdown()
	res := f.sched.Tick(time.Now())
	if res.Status != StatusTerminated || res.Frame != 1 {
		t.Errorf("tick = %+v, want terminated at frame 1", res)
	}
	if len(f.phases) != 0 {
		t.Errorf("phases ran during shutdown: %v", f.phases)
	}
	if _, err := f.registry.UploadBuffer([]byte{1}, gpu.BufferUsageVertex); !errors.Is(err, gpu.ErrContextDestroyed) {
		t.Errorf("upload after shutdown err = %v", err)
	}

	if res := f.sched.Tick(time.Now()); res.Status != StatusTerminated {
		t.Errorf("tick after terminate = %v", res.Status)
	}
	if st := f.driver.Stats(); st.DoubleReleases != 0 {
		t.Errorf("double releases = %d", st.DoubleReleases)
	}
}

func TestMaxFrames(t *testing.T) {
	f := newFixture(t, nil, WithMaxFrames(2), WithFrameLimit(1000))
	if err := (&LoopDriver{}).Drive(context.Background(), f.sched); err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if f.sched.Frame() != 2 || f.driver.Stats().Presents != 2 {
		t.Errorf("frames = %d, presents = %d, want 2", f.sched.Frame(), f.driver.Stats().Presents)
	}
	if got := f.sched.FrameLimit(); got != time.Millisecond {
		t.Errorf("FrameLimit() = %v, want 1ms", got)
	}
}

func TestFatalErrorShutsDown(t *testing.T) {
	f := newFixture(t, nil)
	f.ctx.Destroy()

	res := f.sched.Tick(time.Now())
	if res.Status != StatusShuttingDown || !errors.Is(res.Err, gpu.ErrContextDestroyed) {
		t.Fatalf("tick = %+v, want shutting-down with ErrContextDestroyed", res)
	}
	if f.sched.State() != StateShuttingDown {
		t.Errorf("State() = %v", f.sched.State())
	}

	res = f.sched.Tick(time.Now())
	if res.Status != StatusTerminated || !errors.Is(f.sched.Err(), gpu.ErrContextDestroyed) {
		t.Errorf("tick = %+v, Err() = %v", res, f.sched.Err())
	}
}

func TestLoopDriverContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var log []string
	f := newFixture(t, nil)
	f.sched.AddScene(0, &testScene{name: "s", log: &log, onUpdate: func(fs *FrameState) {
		if fs.Frame == 2 {
			cancel()
		}
	}})

	done := make(chan error, 1)
	go func() { done <- (&LoopDriver{}).Drive(ctx, f.sched) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Drive: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Drive did not return after cancel")
	}
	if f.sched.State() != StateTerminated || f.sched.Frame() < 2 {
		t.Errorf("state %v after %d frames", f.sched.State(), f.sched.Frame())
	}
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestContentUploadedDuringUpdate(t *testing.T) {
	l, err := loader.NewLoader(loader.WithSource(loader.NewFSSource(fstest.MapFS{
		"hero.png":    {Data: encodePNG(t)},
		"sprite.wgsl": {Data: []byte("@vertex fn vs_main() {}")},
	})))
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	var log []string
	scene := &testScene{name: "s", log: &log}
	f := newFixture(t, nil, WithLoader(l))
	f.sched.AddScene(0, scene)

	f.sched.Prefetch("hero.png", "missing.png", "sprite.wgsl")
	l.Wait()

	res := f.sched.Tick(time.Now())
	if res.Status != StatusPresented {
		t.Fatalf("tick = %v (%v), want presented", res.Status, res.Err)
	}
	if !errors.Is(res.Err, loader.ErrContentUnavailable) {
		t.Errorf("tick err = %v, want ErrContentUnavailable", res.Err)
	}
	if len(scene.loaded) != 2 {
		t.Fatalf("scene saw %d loaded assets, want 2", len(scene.loaded))
	}

	h, ok := f.sched.Content("hero.png")
	if !ok {
		t.Fatal("hero.png not uploaded")
	}
	e, err := f.registry.Get(h)
	if err != nil || e.Kind != resource.KindTexture {
		t.Errorf("hero.png entry = %+v, %v", e, err)
	}
	if _, ok := f.sched.Content("sprite.wgsl"); ok {
		t.Error("shader source was uploaded")
	}
	if _, ok := f.sched.Content("missing.png"); ok {
		t.Error("missing asset has a handle")
	}
}

func TestTimeUniform(t *testing.T) {
	start := time.Unix(0, 0)
	tests := []struct {
		name   string
		now    time.Time
		delta  time.Duration
		millis uint32
	}{
		{"start", start, 0, 0},
		{"later", start.Add(1500 * time.Millisecond), 16 * time.Millisecond, 1500},
		{"wraps", start.Add(time.Duration(math.MaxUint32+5) * time.Millisecond), 0, 5},
		{"before start", start.Add(-time.Second), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newTimeUniform(start, tt.now, tt.delta)
			if u.TimeSinceStartMillis != tt.millis {
				t.Errorf("millis = %d, want %d", u.TimeSinceStartMillis, tt.millis)
			}
			if u.DeltaTime != float32(tt.delta.Seconds()) {
				t.Errorf("delta = %v", u.DeltaTime)
			}
			b := u.Marshal()
			if len(b) != 8 || math.Float32frombits(uint32(b[0])|uint32(b[1])<<8|uint32(b[2])<<16|uint32(b[3])<<24) != u.DeltaTime {
				t.Errorf("Marshal() = %v", b)
			}
		})
	}
}
