package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-runtime/engine/gpu"
)

// wgslVertexFormats maps WGSL vertex input types to a vertex format and its byte size.
var wgslVertexFormats = map[string]struct {
	format gpu.VertexFormat
	size   uint64
}{
	"f32":       {gpu.VertexFormatFloat32, 4},
	"vec2f":     {gpu.VertexFormatFloat32x2, 8},
	"vec2<f32>": {gpu.VertexFormatFloat32x2, 8},
	"vec3f":     {gpu.VertexFormatFloat32x3, 12},
	"vec3<f32>": {gpu.VertexFormatFloat32x3, 12},
	"vec4f":     {gpu.VertexFormatFloat32x4, 16},
	"vec4<f32>": {gpu.VertexFormatFloat32x4, 16},
	"u32":       {gpu.VertexFormatUint32, 4},
}

var (
	structBlockRegex   = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	locationRegex      = regexp.MustCompile(`@location\((\d+)\)`)
	builtinRegex       = regexp.MustCompile(`@builtin\(\w+\)`)
	fieldRegex         = regexp.MustCompile(`(?:@\w+\([^)]*\)\s*)*(\w+)\s*:\s*(.+)`)
	vertexEntryRegex   = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)
	fragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)

	// bindGroupDeclRegex captures group, binding, optional address space, name and type of declarations like
	// @group(0) @binding(0) var<uniform> camera: CameraUniform;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

type parsedStruct struct {
	name   string
	fields []parsedField
}

// parseEntryPoints returns the first @vertex and @fragment function names, empty when absent.
func parseEntryPoints(source string) (vertex, fragment string) {
	cleaned := stripComments(source)
	if m := vertexEntryRegex.FindStringSubmatch(cleaned); m != nil {
		vertex = m[1]
	}
	if m := fragmentEntryRegex.FindStringSubmatch(cleaned); m != nil {
		fragment = m[1]
	}
	return vertex, fragment
}

// parseBindGroups extracts every @group/@binding declaration as binding entries indexed by group.
// Missing groups in between are returned as empty slices. Every entry is visible to both stages.
//
// Parameters:
//   - source: the WGSL source
//
// Returns:
//   - [][]gpu.BindingEntry: entries per group, sorted by binding
func parseBindGroups(source string) [][]gpu.BindingEntry {
	cleaned := stripComments(source)
	byGroup := make(map[int][]gpu.BindingEntry)
	maxGroup := -1

	for _, m := range bindGroupDeclRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		entry := gpu.BindingEntry{
			Binding:    uint32(binding),
			Type:       classifyBinding(strings.TrimSpace(m[3]), strings.TrimSpace(m[5])),
			Visibility: gpu.ShaderStageVertex | gpu.ShaderStageFragment,
		}
		byGroup[group] = append(byGroup[group], entry)
		if group > maxGroup {
			maxGroup = group
		}
	}

	groups := make([][]gpu.BindingEntry, maxGroup+1)
	for g, entries := range byGroup {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Binding < entries[j].Binding })
		groups[g] = entries
	}
	return groups
}

func classifyBinding(addressSpace, typeName string) gpu.BindingType {
	switch {
	case addressSpace == "uniform":
		return gpu.BindingTypeUniform
	case strings.HasPrefix(addressSpace, "storage"):
		return gpu.BindingTypeStorage
	case strings.HasPrefix(typeName, "sampler"):
		return gpu.BindingTypeSampler
	}
	return gpu.BindingTypeTexture
}

// parseVertexLayouts builds a vertex buffer layout for every struct made only of @location fields,
// in source order. Structs whose name contains "Instance" step per instance.
func parseVertexLayouts(source string) []gpu.VertexBufferLayout {
	var layouts []gpu.VertexBufferLayout
	for _, ps := range parseStructBlocks(stripComments(source)) {
		if !isVertexInputStruct(ps) {
			continue
		}
		layout, ok := buildVertexBufferLayout(ps)
		if !ok {
			continue
		}
		layouts = append(layouts, layout)
	}
	return layouts
}

func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))
	for _, m := range matches {
		structs = append(structs, parsedStruct{name: m[1], fields: parseStructFields(m[2])})
	}
	return structs
}

func parseStructFields(body string) []parsedField {
	parts := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field := parsedField{location: -1, isBuiltin: builtinRegex.MatchString(part)}
		if lm := locationRegex.FindStringSubmatch(part); lm != nil {
			field.location, _ = strconv.Atoi(lm[1])
		}
		fm := fieldRegex.FindStringSubmatch(part)
		if fm == nil {
			continue
		}
		field.name = fm[1]
		field.typeName = strings.TrimSpace(fm[2])
		fields = append(fields, field)
	}
	return fields
}

func isVertexInputStruct(ps parsedStruct) bool {
	if len(ps.fields) == 0 {
		return false
	}
	for _, f := range ps.fields {
		if f.isBuiltin || f.location < 0 {
			return false
		}
	}
	return true
}

func buildVertexBufferLayout(ps parsedStruct) (gpu.VertexBufferLayout, bool) {
	attrs := make([]gpu.VertexAttribute, 0, len(ps.fields))
	var offset uint64
	for _, f := range ps.fields {
		info, ok := wgslVertexFormats[f.typeName]
		if !ok {
			return gpu.VertexBufferLayout{}, false
		}
		attrs = append(attrs, gpu.VertexAttribute{
			Format:         info.format,
			Offset:         offset,
			ShaderLocation: uint32(f.location),
		})
		offset += info.size
	}
	step := gpu.VertexStepModeVertex
	if strings.Contains(ps.name, "Instance") {
		step = gpu.VertexStepModeInstance
	}
	return gpu.VertexBufferLayout{Stride: offset, StepMode: step, Attributes: attrs}, true
}

// splitAtTopLevelCommas splits s at commas not nested in angle brackets, so array<T, N> stays whole.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

func stripLineComments(source string) string {
	var sb strings.Builder
	for line := range strings.SplitSeq(source, "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// stripBlockComments removes /* */ comments, which nest in WGSL.
func stripBlockComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			if source[i] == '/' && source[i+1] == '*' {
				depth++
				i++
				continue
			}
			if depth > 0 && source[i] == '*' && source[i+1] == '/' {
				depth--
				i++
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		} else if source[i] == '\n' {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
