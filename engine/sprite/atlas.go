package sprite

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-runtime/common"
	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
	"github.com/Carmen-Shannon/oxy-runtime/engine/resource"
)

// indicesPerSprite is two triangles per quad.
const indicesPerSprite = 6

// Rect is a region of the atlas texture in pixels, origin top-left.
type Rect struct {
	X, Y, W, H uint32
}

// Region names one sprite inside an atlas.
type Region struct {
	Name string
	Rect Rect
}

// Sprite indexes a sprite inside the atlas it was looked up in.
type Sprite uint32

// Vertex is one atlas quad corner: position in sprite space and texture coordinates.
type Vertex struct {
	Position [2]float32
	UV       [2]float32
}

// Atlas is a texture holding many sprites together with their quad geometry.
type Atlas interface {
	// Len returns the number of sprites.
	Len() int

	// Sprite looks up a sprite by region name.
	Sprite(name string) (Sprite, bool)

	// Indices returns the index range of s in the index buffer.
	Indices(s Sprite) (first, count uint32)

	// BindGroup returns the texture/sampler bind group.
	BindGroup() resource.Handle

	// VertexBuffer returns the quad vertex buffer.
	VertexBuffer() resource.Handle

	// IndexBuffer returns the u16 quad index buffer.
	IndexBuffer() resource.Handle

	// Release releases every registry handle held by the atlas.
	Release() error
}

type atlas struct {
	reg   resource.Registry
	names map[string]Sprite
	count int

	texture   resource.Handle
	vertices  resource.Handle
	indices   resource.Handle
	bindGroup resource.Handle
}

var _ Atlas = &atlas{}

// NewAtlas builds the quads for regions over an uploaded texture and binds the texture to group 0 of
// pipeline. The atlas retains its own handle to texture; the caller keeps ownership of the one passed in.
//
// Parameters:
//   - reg: the registry to allocate from
//   - pipeline: the sprite pipeline whose group 0 the atlas binds
//   - texture: a texture handle
//   - regions: the sprite regions, in sprite index order
//
// Returns:
//   - Atlas: the atlas
//   - error: a *resource.StaleHandleError, an out of bounds region or an upload error
func NewAtlas(reg resource.Registry, pipeline resource.Handle, texture resource.Handle, regions []Region) (Atlas, error) {
	entry, err := reg.Get(texture)
	if err != nil {
		return nil, err
	}
	if entry.Kind != resource.KindTexture {
		return nil, fmt.Errorf("atlas %s: %v is a %v: %w", entry.Label, texture, entry.Kind, resource.ErrKindMismatch)
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("atlas %s: no regions", entry.Label)
	}

	size := entry.Texture.Size()
	vertices, indices, err := buildQuads(size.Width, size.Height, regions)
	if err != nil {
		return nil, fmt.Errorf("atlas %s: %w", entry.Label, err)
	}

	a := &atlas{reg: reg, names: make(map[string]Sprite, len(regions)), count: len(regions)}
	for i, r := range regions {
		a.names[r.Name] = Sprite(i)
	}

	if a.texture, err = reg.Retain(texture); err != nil {
		return nil, err
	}
	if a.vertices, err = reg.UploadBuffer(common.SliceToBytes(vertices), gpu.BufferUsageVertex,
		resource.WithLabel(entry.Label+" vertices")); err != nil {
		a.Release()
		return nil, err
	}
	if a.indices, err = reg.UploadBuffer(common.SliceToBytes(indices), gpu.BufferUsageIndex,
		resource.WithLabel(entry.Label+" indices")); err != nil {
		a.Release()
		return nil, err
	}
	a.bindGroup, err = reg.CreateBindGroup(pipeline, 0, []resource.Binding{
		{Binding: 0, Resource: a.texture},
		{Binding: 1, Sampler: true},
	}, resource.WithLabel(entry.Label+" bind group"))
	if err != nil {
		a.Release()
		return nil, err
	}

	return a, nil
}

// buildQuads lays out one quad per region. The longer side of each quad is 1 unit and the quad is
// centered on the origin; uv follows the region inside a width x height texture.
func buildQuads(width, height uint32, regions []Region) ([]Vertex, []uint16, error) {
	if width == 0 || height == 0 {
		return nil, nil, fmt.Errorf("texture is %dx%d", width, height)
	}
	if len(regions)*4 > 1<<16 {
		return nil, nil, fmt.Errorf("%d regions overflow u16 indices", len(regions))
	}

	vertices := make([]Vertex, 0, len(regions)*4)
	indices := make([]uint16, 0, len(regions)*indicesPerSprite)
	for _, r := range regions {
		rc := r.Rect
		if rc.W == 0 || rc.H == 0 || rc.X+rc.W > width || rc.Y+rc.H > height {
			return nil, nil, fmt.Errorf("region %q %+v outside %dx%d texture", r.Name, rc, width, height)
		}

		side := float32(max(rc.W, rc.H))
		hx, hy := float32(rc.W)/side/2, float32(rc.H)/side/2
		u0, v0 := float32(rc.X)/float32(width), float32(rc.Y)/float32(height)
		u1, v1 := float32(rc.X+rc.W)/float32(width), float32(rc.Y+rc.H)/float32(height)

		base := uint16(len(vertices))
		vertices = append(vertices,
			Vertex{Position: [2]float32{-hx, -hy}, UV: [2]float32{u0, v1}},
			Vertex{Position: [2]float32{hx, -hy}, UV: [2]float32{u1, v1}},
			Vertex{Position: [2]float32{hx, hy}, UV: [2]float32{u1, v0}},
			Vertex{Position: [2]float32{-hx, hy}, UV: [2]float32{u0, v0}},
		)
		// counter-clockwise in a y-up world
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return vertices, indices, nil
}

func (a *atlas) Len() int {
	return a.count
}

func (a *atlas) Sprite(name string) (Sprite, bool) {
	s, ok := a.names[name]
	return s, ok
}

func (a *atlas) Indices(s Sprite) (uint32, uint32) {
	return uint32(s) * indicesPerSprite, indicesPerSprite
}

func (a *atlas) BindGroup() resource.Handle {
	return a.bindGroup
}

func (a *atlas) VertexBuffer() resource.Handle {
	return a.vertices
}

func (a *atlas) IndexBuffer() resource.Handle {
	return a.indices
}

func (a *atlas) Release() error {
	var errs []error
	for _, h := range []*resource.Handle{&a.bindGroup, &a.indices, &a.vertices, &a.texture} {
		if h.IsZero() {
			continue
		}
		if err := a.reg.Release(*h); err != nil {
			errs = append(errs, err)
		}
		*h = resource.Handle{}
	}
	return errors.Join(errs...)
}
