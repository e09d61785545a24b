package sprite

import (
	"unsafe"

	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Instance places one sprite in the world. Size scales the unit quad uniformly, Layer orders sprites
// within a batch (lower layers draw first) and Angle is a clockwise rotation in degrees.
type Instance struct {
	Size  float32
	Pos   mgl32.Vec2
	Layer uint16
	Angle float32
	Tint  [3]uint8
}

// Model returns the instance's model matrix: translate, then rotate, then scale.
func (in Instance) Model() mgl32.Mat4 {
	t := mgl32.Translate3D(in.Pos.X(), in.Pos.Y(), 0)
	r := mgl32.HomogRotate3DZ(mgl32.DegToRad(-in.Angle))
	s := mgl32.Scale3D(in.Size, in.Size, in.Size)
	return t.Mul4(r).Mul4(s)
}

// gpuInstance is the per-instance vertex data read by the sprite shader (76 bytes).
type gpuInstance struct {
	Model [16]float32 // locations 2-5: model matrix columns
	Tint  [3]float32  // location 6: linear tint, 1 = untinted
}

func (in Instance) raw() gpuInstance {
	return gpuInstance{
		Model: in.Model(),
		Tint: [3]float32{
			float32(in.Tint[0]) / 255,
			float32(in.Tint[1]) / 255,
			float32(in.Tint[2]) / 255,
		},
	}
}

var (
	vertexStride   = uint64(unsafe.Sizeof(Vertex{}))
	instanceStride = uint64(unsafe.Sizeof(gpuInstance{}))
)

// vertexBuffers is the pipeline's vertex layout: quad corners in slot 0, instances in slot 1.
var vertexBuffers = []gpu.VertexBufferLayout{
	{
		Stride:   vertexStride,
		StepMode: gpu.VertexStepModeVertex,
		Attributes: []gpu.VertexAttribute{
			{Format: gpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			{Format: gpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
		},
	},
	{
		Stride:   instanceStride,
		StepMode: gpu.VertexStepModeInstance,
		Attributes: []gpu.VertexAttribute{
			{Format: gpu.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 2},
			{Format: gpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 3},
			{Format: gpu.VertexFormatFloat32x4, Offset: 32, ShaderLocation: 4},
			{Format: gpu.VertexFormatFloat32x4, Offset: 48, ShaderLocation: 5},
			{Format: gpu.VertexFormatFloat32x3, Offset: 64, ShaderLocation: 6},
		},
	},
}
