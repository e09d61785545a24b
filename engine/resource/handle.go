package resource

import "fmt"

// Kind identifies the GPU object behind a registry entry.
type Kind int

const (
	KindBuffer Kind = iota + 1
	KindTexture
	KindPipeline
	KindBindGroup
)

func (k Kind) String() string {
	switch k {
	case KindBuffer:
		return "buffer"
	case KindTexture:
		return "texture"
	case KindPipeline:
		return "pipeline"
	case KindBindGroup:
		return "bind group"
	}
	return "unknown"
}

// Handle is an opaque, generation-tagged reference to a registry entry.
// The zero Handle is never valid.
type Handle struct {
	owner      uint32
	index      uint32
	generation uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

func (h Handle) String() string {
	return fmt.Sprintf("res(%d:%d@%d)", h.owner, h.index, h.generation)
}
