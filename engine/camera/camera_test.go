package camera

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestProjectionViewMapsVisibleRegion(t *testing.T) {
	tests := []struct {
		name     string
		opts     []CameraBuilderOption
		world    mgl32.Vec4
		wantClip mgl32.Vec2
	}{
		{"origin", nil, mgl32.Vec4{0, 0, 0, 1}, mgl32.Vec2{0, 0}},
		{"right edge square", nil, mgl32.Vec4{1, 0, 0, 1}, mgl32.Vec2{1, 0}},
		{"top edge square", nil, mgl32.Vec4{0, 1, 0, 1}, mgl32.Vec2{0, 1}},
		{"wide surface", []CameraBuilderOption{WithSize(200, 100)}, mgl32.Vec4{2, 1, 0, 1}, mgl32.Vec2{1, 1}},
		{"zoomed", []CameraBuilderOption{WithZoom(2)}, mgl32.Vec4{0.5, -0.5, 0, 1}, mgl32.Vec2{1, -1}},
		{"moved", []CameraBuilderOption{WithPosition(mgl32.Vec3{3, 4, 0})}, mgl32.Vec4{3, 4, 0, 1}, mgl32.Vec2{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCamera(tt.opts...)
			got := c.ProjectionView().Mul4x1(tt.world)
			if !mgl32.FloatEqualThreshold(got.X(), tt.wantClip.X(), 1e-5) || !mgl32.FloatEqualThreshold(got.Y(), tt.wantClip.Y(), 1e-5) {
				t.Errorf("clip = (%v, %v), want %v", got.X(), got.Y(), tt.wantClip)
			}
		})
	}
}

func TestScreenToWorld(t *testing.T) {
	moved := []CameraBuilderOption{WithSize(200, 100), WithPosition(mgl32.Vec3{3, 4, 0})}
	tests := []struct {
		name          string
		opts          []CameraBuilderOption
		x, y          float64
		width, height int
		want          mgl32.Vec2
	}{
		{"centre is the camera position", moved, 100, 50, 200, 100, mgl32.Vec2{3, 4}},
		{"top left corner", moved, 0, 0, 200, 100, mgl32.Vec2{1, 5}},
		{"bottom right corner", moved, 200, 100, 200, 100, mgl32.Vec2{5, 3}},
		{"zoomed", []CameraBuilderOption{WithZoom(2)}, 75, 25, 100, 100, mgl32.Vec2{0.25, 0.25}},
		{"zero size", moved, 10, 10, 0, 100, mgl32.Vec2{3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCamera(tt.opts...)
			got := c.ScreenToWorld(tt.x, tt.y, tt.width, tt.height)
			if !got.ApproxEqualThreshold(tt.want, 1e-5) {
				t.Errorf("ScreenToWorld(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
			}

			// the world point projects back onto the same pixel
			if tt.width == 0 {
				return
			}
			clip := c.ProjectionView().Mul4x1(mgl32.Vec4{got.X(), got.Y(), 0, 1})
			px := float64(clip.X()+1) / 2 * float64(tt.width)
			py := float64(1-clip.Y()) / 2 * float64(tt.height)
			if math.Abs(px-tt.x) > 1e-3 || math.Abs(py-tt.y) > 1e-3 {
				t.Errorf("round trip = (%v, %v), want (%v, %v)", px, py, tt.x, tt.y)
			}
		})
	}
}

func TestResizeIgnoresZero(t *testing.T) {
	c := NewCamera(WithSize(400, 200))
	c.Resize(0, 300)
	c.Resize(300, 0)
	if c.Ratio() != 2 {
		t.Fatalf("ratio = %v, want 2", c.Ratio())
	}
	c.Resize(300, 600)
	if c.Ratio() != 0.5 {
		t.Errorf("ratio = %v, want 0.5", c.Ratio())
	}
}

func TestUniformMarshal(t *testing.T) {
	c := NewCamera(WithPosition(mgl32.Vec3{1, 2, 3}))
	u := c.Uniform()
	buf := u.Marshal()
	if len(buf) != 80 {
		t.Fatalf("len = %d, want 80", len(buf))
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[68:])); got != 2 {
		t.Errorf("position.y = %v, want 2", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[60:])); got != 1 {
		t.Errorf("view_proj[15] = %v, want 1", got)
	}
}
