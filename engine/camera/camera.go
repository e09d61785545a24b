package camera

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

type cameraImpl struct {
	mu *sync.Mutex

	position mgl32.Vec3
	ratio    float32
	zoom     float32
}

// Camera is a left-handed orthographic 2D camera looking down +Z.
// The visible region spans [-ratio/zoom, ratio/zoom] horizontally and [-1/zoom, 1/zoom] vertically around Position.
type Camera interface {
	// Position returns the world-space camera position.
	Position() mgl32.Vec3

	// Ratio returns the surface aspect ratio (width / height).
	Ratio() float32

	// Zoom returns the zoom factor. Larger values show less of the world.
	Zoom() float32

	// SetPosition moves the camera.
	//
	// Parameters:
	//   - p: the new world-space position
	SetPosition(p mgl32.Vec3)

	// SetZoom sets the zoom factor. Non-positive values are ignored.
	//
	// Parameters:
	//   - zoom: the new zoom factor
	SetZoom(zoom float32)

	// Resize updates the aspect ratio from a surface size. A zero width or height is ignored.
	//
	// Parameters:
	//   - width, height: the surface size in pixels
	Resize(width, height int)

	// ProjectionView returns projection * view.
	//
	// Returns:
	//   - mgl32.Mat4: the combined column-major matrix
	ProjectionView() mgl32.Mat4

	// ScreenToWorld maps a window pixel onto the world plane through the inverse of ProjectionView.
	// A zero width or height maps to the camera position.
	//
	// Parameters:
	//   - x, y: the pixel, origin at the top-left corner
	//   - width, height: the window size in pixels
	//
	// Returns:
	//   - mgl32.Vec2: the world-space point under the pixel
	ScreenToWorld(x, y float64, width, height int) mgl32.Vec2

	// Uniform returns the GPU representation of the camera.
	//
	// Returns:
	//   - GPUCameraUniform: the uniform ready to Marshal
	Uniform() GPUCameraUniform
}

var _ Camera = &cameraImpl{}

// NewCamera creates a Camera at the origin with ratio 1 and zoom 1.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:    &sync.Mutex{},
		ratio: 1,
		zoom:  1,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Ratio() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ratio
}

func (c *cameraImpl) Zoom() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}

func (c *cameraImpl) SetPosition(p mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = p
}

func (c *cameraImpl) SetZoom(zoom float32) {
	if zoom <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoom = zoom
}

func (c *cameraImpl) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ratio = float32(width) / float32(height)
}

func (c *cameraImpl) ProjectionView() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	view := lookAtLH(c.position, c.position.Add(mgl32.Vec3{0, 0, 1}), mgl32.Vec3{0, 1, 0})
	proj := orthoLH(-c.ratio/c.zoom, c.ratio/c.zoom, -1/c.zoom, 1/c.zoom, -1, 1)
	return proj.Mul4(view)
}

func (c *cameraImpl) ScreenToWorld(x, y float64, width, height int) mgl32.Vec2 {
	if width <= 0 || height <= 0 {
		return c.Position().Vec2()
	}
	ndc := mgl32.Vec4{
		float32(2*x/float64(width) - 1),
		float32(1 - 2*y/float64(height)),
		0,
		1,
	}
	w := c.ProjectionView().Inv().Mul4x1(ndc)
	return mgl32.Vec2{w.X() / w.W(), w.Y() / w.W()}
}

func (c *cameraImpl) Uniform() GPUCameraUniform {
	pv := c.ProjectionView()
	pos := c.Position()
	return GPUCameraUniform{
		ViewProj:       pv,
		CameraPosition: [3]float32{pos.X(), pos.Y(), pos.Z()},
	}
}

// orthoLH builds a left-handed orthographic projection with clip-space depth in [-1, 1].
func orthoLH(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	rl, tb, fn := right-left, top-bottom, far-near
	return mgl32.Mat4{
		2 / rl, 0, 0, 0,
		0, 2 / tb, 0, 0,
		0, 0, 2 / fn, 0,
		-(right + left) / rl, -(top + bottom) / tb, -(far + near) / fn, 1,
	}
}

// lookAtLH builds a left-handed view matrix.
func lookAtLH(eye, center, up mgl32.Vec3) mgl32.Mat4 {
	f := center.Sub(eye).Normalize()
	s := up.Cross(f).Normalize()
	u := f.Cross(s)
	return mgl32.Mat4{
		s.X(), u.X(), f.X(), 0,
		s.Y(), u.Y(), f.Y(), 0,
		s.Z(), u.Z(), f.Z(), 0,
		-s.Dot(eye), -u.Dot(eye), -f.Dot(eye), 1,
	}
}
