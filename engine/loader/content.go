package loader

import (
	"errors"
	"path"
	"strings"

	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
)

// ErrContentUnavailable is returned when a source cannot supply or decode a named asset.
// The engine skips the affected resource and keeps rendering.
var ErrContentUnavailable = errors.New("loader: content unavailable")

// ErrClosed is returned by Load and reported by Prefetch results after Close.
var ErrClosed = errors.New("loader: closed")

// ContentKind classifies an asset by what the registry turns it into.
type ContentKind int

const (
	// ContentBuffer is raw bytes uploaded as a GPU buffer.
	ContentBuffer ContentKind = iota
	// ContentTexture is an image decoded to tightly packed pixels.
	ContentTexture
	// ContentShader is WGSL source for a render pipeline.
	ContentShader
)

func (k ContentKind) String() string {
	switch k {
	case ContentTexture:
		return "texture"
	case ContentShader:
		return "shader"
	default:
		return "buffer"
	}
}

// Descriptor describes loaded content. Width, Height and Format are only set for textures.
type Descriptor struct {
	Name   string
	Kind   ContentKind
	Width  uint32
	Height uint32
	Format gpu.TextureFormat
}

// Extent returns the texture size of a texture descriptor.
func (d Descriptor) Extent() gpu.Extent {
	return gpu.Extent{Width: d.Width, Height: d.Height}
}

// Content is a (raw bytes, descriptor) pair handed to the engine.
type Content struct {
	Descriptor Descriptor
	Data       []byte
}

// kindOf picks the content kind from the asset's extension.
func kindOf(name string) ContentKind {
	switch strings.ToLower(path.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".webp":
		return ContentTexture
	case ".wgsl":
		return ContentShader
	default:
		return ContentBuffer
	}
}
