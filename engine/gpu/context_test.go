package gpu

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"", BackendAuto, false},
		{"auto", BackendAuto, false},
		{"Vulkan", BackendVulkan, false},
		{" metal ", BackendMetal, false},
		{"dx12", BackendDX12, false},
		{"gl", BackendGL, false},
		{"webgpu", BackendBrowserWebGPU, false},
		{"headless", BackendHeadless, false},
		{"glide", BackendAuto, true},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBackend(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBackend(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitializeSelectsAdapter(t *testing.T) {
	tests := []struct {
		name        string
		backend     Backend
		power       PowerPreference
		fallback    bool
		wantAdapter string
		wantBackend Backend
	}{
		{"auto default", BackendAuto, PowerPreferenceDefault, false, "headless-discrete", BackendVulkan},
		{"auto low power", BackendAuto, PowerPreferenceLowPower, false, "headless-integrated", BackendGL},
		{"explicit gl", BackendGL, PowerPreferenceHighPerformance, false, "headless-integrated", BackendGL},
		{"headless", BackendHeadless, PowerPreferenceDefault, false, "headless-discrete", BackendHeadless},
		{"forced fallback", BackendAuto, PowerPreferenceDefault, true, "headless-fallback", BackendHeadless},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewHeadlessDriver()
			c, err := Initialize(context.Background(), tt.backend, tt.power,
				WithDriver(d), WithForceFallbackAdapter(tt.fallback))
			if err != nil {
				t.Fatalf("Initialize: %v", err)
			}
			defer c.Destroy()

			if got := c.AdapterInfo().Name; got != tt.wantAdapter {
				t.Errorf("adapter = %q, want %q", got, tt.wantAdapter)
			}
			if got := c.Backend(); got != tt.wantBackend {
				t.Errorf("backend = %v, want %v", got, tt.wantBackend)
			}
			if c.Device() == nil || c.Queue() == nil {
				t.Fatal("device or queue is nil")
			}
		})
	}
}

func TestInitializeNoCompatibleAdapter(t *testing.T) {
	d := NewHeadlessDriver()
	_, err := Initialize(context.Background(), BackendMetal, PowerPreferenceDefault, WithDriver(d))
	if !errors.Is(err, ErrNoCompatibleAdapter) {
		t.Fatalf("err = %v, want ErrNoCompatibleAdapter", err)
	}
	if !d.Stats().Released {
		t.Error("driver not released after failed initialization")
	}
}

func TestInitializeDeviceRejected(t *testing.T) {
	d := NewHeadlessDriver(WithHeadlessAdapters(HeadlessAdapter{
		Name:         "broken",
		Backend:      BackendVulkan,
		RejectDevice: errors.New("out of memory"),
	}))
	_, err := Initialize(context.Background(), BackendAuto, PowerPreferenceDefault, WithDriver(d))
	if !errors.Is(err, ErrDeviceCreationFailed) {
		t.Fatalf("err = %v, want ErrDeviceCreationFailed", err)
	}
	if got := d.Stats().LiveDevices; got != 0 {
		t.Errorf("live devices = %d, want 0", got)
	}
}

func TestInitializeCancelledReleasesLateDevice(t *testing.T) {
	gate := make(chan struct{})
	d := NewHeadlessDriver(WithRequestGate(gate))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// cancel only once the adapter request is parked on the gate
		for d.Stats().AdapterRequests == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := Initialize(ctx, BackendAuto, PowerPreferenceDefault, WithDriver(d))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	close(gate)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := d.Stats()
		if s.Released && s.DevicesCreated == 1 && s.LiveDevices == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("late device was not released: %+v", d.Stats())
}

func TestInitializeAlreadyCancelledReleasesDriver(t *testing.T) {
	d := NewHeadlessDriver()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Initialize(ctx, BackendHeadless, PowerPreferenceDefault, WithDriver(d))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	s := d.Stats()
	if !s.Released || s.AdapterRequests != 0 || s.DevicesCreated != 0 {
		t.Errorf("stats = %+v, want a released driver and no requests", s)
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	d := NewHeadlessDriver()
	c, err := Initialize(context.Background(), BackendHeadless, PowerPreferenceDefault, WithDriver(d))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	c.Destroy()
	c.Destroy()

	if !c.Destroyed() {
		t.Error("Destroyed() = false after Destroy")
	}
	if c.Device() != nil {
		t.Error("Device() should be nil after Destroy")
	}
	if _, err := c.CreateSurface(NewHeadlessTarget(8, 8)); !errors.Is(err, ErrContextDestroyed) {
		t.Errorf("CreateSurface err = %v, want ErrContextDestroyed", err)
	}
	s := d.Stats()
	if s.DoubleReleases != 0 {
		t.Errorf("double releases = %d, want 0", s.DoubleReleases)
	}
	if s.LiveDevices != 0 || !s.Released {
		t.Errorf("stats after destroy = %+v", s)
	}
	if s.IdleWaits != 1 {
		t.Errorf("idle waits = %d, want 1 before the device is released", s.IdleWaits)
	}
}

func TestHeadlessLeakAccounting(t *testing.T) {
	d := NewHeadlessDriver()
	c, err := Initialize(context.Background(), BackendHeadless, PowerPreferenceDefault, WithDriver(d))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	buf, err := c.Device().CreateBuffer(BufferDescriptor{Label: "b", Size: 16, Usage: BufferUsageUniform | BufferUsageCopyDst})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := c.Queue().WriteBuffer(buf, 8, make([]byte, 16)); err == nil {
		t.Error("expected overflow error from WriteBuffer")
	}
	if _, err := c.Device().CreateTexture(TextureDescriptor{Label: "t", Format: TextureFormatRGBA8Unorm}); err == nil {
		t.Error("expected error for empty texture extent")
	}

	c.Destroy()
	if got := d.Stats().LeakedAtDeviceRelease; got != 1 {
		t.Errorf("leaked = %d, want 1", got)
	}
}
