package shader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-runtime/common"
	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
	"github.com/gogpu/naga"
	"go.uber.org/zap"
)

// ErrCompile is matched by every *CompileError.
var ErrCompile = errors.New("shader compile error")

// CompileError carries the compiler diagnostics for a shader that failed to compile.
type CompileError struct {
	Label       string
	Diagnostics string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("shader %q: %s", e.Label, e.Diagnostics)
}

func (e *CompileError) Unwrap() error {
	return ErrCompile
}

// Module is a validated WGSL module along with the layout reflected from its source.
type Module struct {
	Label              string
	Source             string
	VertexEntryPoint   string
	FragmentEntryPoint string
	BindGroups         [][]gpu.BindingEntry
	VertexBuffers      []gpu.VertexBufferLayout

	// SPIRV is the naga output, nil when naga could not translate a construct it does not support yet.
	SPIRV []byte
}

// Compile expands @oxy: annotations, validates the result with naga and reflects its entry points,
// bind groups and vertex inputs. Every failure is returned as a *CompileError.
//
// Parameters:
//   - label: the name used in diagnostics
//   - source: the raw WGSL source
//
// Returns:
//   - *Module: the compiled module
//   - error: a *CompileError describing why compilation failed
func Compile(label, source string) (*Module, error) {
	processed, err := NewPreProcessor().Process(source)
	if err != nil {
		return nil, &CompileError{Label: label, Diagnostics: err.Error()}
	}

	spirv, err := naga.Compile(processed)
	if err != nil {
		if !unsupportedByValidator(err) {
			return nil, &CompileError{Label: label, Diagnostics: err.Error()}
		}
		common.Logger().Debug("shader validation skipped", zap.String("shader", label), zap.Error(err))
		spirv = nil
	}

	vs, fs := parseEntryPoints(processed)
	var missing []string
	if vs == "" {
		missing = append(missing, "@vertex")
	}
	if fs == "" {
		missing = append(missing, "@fragment")
	}
	if len(missing) > 0 {
		return nil, &CompileError{Label: label, Diagnostics: "missing entry point: " + strings.Join(missing, ", ")}
	}

	return &Module{
		Label:              label,
		Source:             processed,
		VertexEntryPoint:   vs,
		FragmentEntryPoint: fs,
		BindGroups:         parseBindGroups(processed),
		VertexBuffers:      parseVertexLayouts(processed),
		SPIRV:              spirv,
	}, nil
}

// Layout returns a pipeline layout for the module with its reflected entry points, vertex buffers and bind groups.
func (m *Module) Layout() gpu.PipelineLayout {
	return gpu.PipelineLayout{
		VertexEntryPoint:   m.VertexEntryPoint,
		FragmentEntryPoint: m.FragmentEntryPoint,
		VertexBuffers:      m.VertexBuffers,
		BindGroups:         m.BindGroups,
	}
}

func unsupportedByValidator(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported")
}
