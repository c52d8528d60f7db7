// Package shader is the WGSL front-end shared by every graphics backend.
//
// Each stage of a program is compiled independently with naga (parse, lower
// to IR, validate) so that diagnostics can be attributed to a stage. The IR
// is then reflected into a backend-neutral description of the entry point
// interface, the uniform blocks, and the texture/sampler resources, and the
// two stages are linked.
//
// Resource convention: vertex-stage globals live in @group(0), fragment-stage
// globals in @group(1). Each stage declares at most one uniform struct.
package shader

import (
	"fmt"
)

// Stage identifies a programmable pipeline stage.
type Stage int

const (
	// StageVertex is the vertex stage.
	StageVertex Stage = iota

	// StageFragment is the fragment stage.
	StageFragment
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Group returns the bind group index used by the stage.
func (s Stage) Group() uint32 {
	return uint32(s)
}

// Default entry point names.
const (
	DefaultVertexEntry   = "vs_main"
	DefaultFragmentEntry = "fs_main"
)

// Source is a vertex/fragment WGSL pair.
type Source struct {
	// Label names the program. Backends use it for GPU object labels and the
	// software backend uses it to find the matching kernel.
	Label string

	Vertex   string
	Fragment string

	// VertexEntry and FragmentEntry default to vs_main and fs_main.
	VertexEntry   string
	FragmentEntry string
}

func (s Source) vertexEntry() string {
	if s.VertexEntry == "" {
		return DefaultVertexEntry
	}
	return s.VertexEntry
}

func (s Source) fragmentEntry() string {
	if s.FragmentEntry == "" {
		return DefaultFragmentEntry
	}
	return s.FragmentEntry
}

// Kind classifies a reflected value.
type Kind int

// Value kinds.
const (
	KindUnknown Kind = iota
	KindFloat
	KindVec2
	KindVec3
	KindVec4
	KindInt
	KindUint
	KindMat4
	KindTexture
	KindSampler
)

var kindNames = [...]string{
	KindUnknown: "unknown",
	KindFloat:   "f32",
	KindVec2:    "vec2<f32>",
	KindVec3:    "vec3<f32>",
	KindVec4:    "vec4<f32>",
	KindInt:     "i32",
	KindUint:    "u32",
	KindMat4:    "mat4x4<f32>",
	KindTexture: "texture_2d<f32>",
	KindSampler: "sampler",
}

// String returns the WGSL spelling of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Components returns the number of 32-bit scalars in a value of this kind.
// Opaque kinds report zero.
func (k Kind) Components() int {
	switch k {
	case KindFloat, KindInt, KindUint:
		return 1
	case KindVec2:
		return 2
	case KindVec3:
		return 3
	case KindVec4:
		return 4
	case KindMat4:
		return 16
	default:
		return 0
	}
}

// Variable is an entry point input or output bound to a location.
type Variable struct {
	Name     string
	Location uint32
	Kind     Kind
}

// Member is a field of a uniform struct.
type Member struct {
	Name   string
	Offset uint32
	Kind   Kind
}

// UniformBlock is a var<uniform> struct global.
type UniformBlock struct {
	Name    string
	Group   uint32
	Binding uint32
	Size    uint32
	Members []Member
}

// Resource is a texture or sampler global.
type Resource struct {
	Name    string
	Group   uint32
	Binding uint32
	Kind    Kind
}

// Module is the reflected interface of one compiled stage.
type Module struct {
	Stage Stage
	Entry string

	// HasEntry reports whether the requested entry point exists with the
	// right stage attribute.
	HasEntry bool

	Inputs  []Variable
	Outputs []Variable

	// Position reports whether the entry point writes @builtin(position).
	Position bool

	Uniforms  []UniformBlock
	Resources []Resource
}

// Input returns the input with the given name.
func (m *Module) Input(name string) (Variable, bool) {
	for _, v := range m.Inputs {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// Output returns the output at the given location.
func (m *Module) Output(location uint32) (Variable, bool) {
	for _, v := range m.Outputs {
		if v.Location == location {
			return v, true
		}
	}
	return Variable{}, false
}
