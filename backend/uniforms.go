package backend

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/deferred/internal/shader"
)

// UniformValues is the per-program uniform storage shared by the backends.
//
// Block members are kept in their WGSL memory layout, one byte slice per
// uniform block, so a GPU backend can upload a block verbatim. Texture
// uniforms hold the texture unit they sample from.
type UniformValues struct {
	prog   *shader.Program
	blocks [2][][]byte
	units  map[int]int
	dirty  [2]bool
}

// NewUniformValues allocates zeroed storage for every block of p.
// Texture uniforms start at their declaration-order unit.
func NewUniformValues(p *shader.Program) *UniformValues {
	u := &UniformValues{prog: p, units: make(map[int]int)}
	for si, m := range []*shader.Module{p.Vertex, p.Fragment} {
		u.blocks[si] = make([][]byte, len(m.Uniforms))
		for bi, b := range m.Uniforms {
			u.blocks[si][bi] = make([]byte, b.Size)
		}
		u.dirty[si] = true
	}
	for loc, un := range p.Uniforms {
		if un.Kind == shader.KindTexture {
			u.units[loc] = un.Unit
		}
	}
	return u
}

// Program returns the program the storage belongs to.
func (u *UniformValues) Program() *shader.Program { return u.prog }

// SetFloats writes vals at the location's offset. Extra values beyond the
// uniform's size are dropped. Invalid locations are ignored.
func (u *UniformValues) SetFloats(loc UniformLocation, vals ...float32) {
	un, ok := u.member(loc)
	if !ok {
		return
	}
	buf := u.blocks[un.Stage][un.Block]
	n := min(len(vals), un.Kind.Components())
	for i := 0; i < n; i++ {
		off := int(un.Offset) + i*4
		if off+4 > len(buf) {
			break
		}
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(vals[i]))
	}
	u.dirty[un.Stage] = true
}

// SetInt sets an integer uniform or, for a texture uniform, its unit.
func (u *UniformValues) SetInt(loc UniformLocation, v int32) {
	if loc < 0 || int(loc) >= len(u.prog.Uniforms) {
		return
	}
	un := u.prog.Uniforms[loc]
	if un.Kind == shader.KindTexture {
		u.units[int(loc)] = int(v)
		return
	}
	if un.Block < 0 {
		return
	}
	buf := u.blocks[un.Stage][un.Block]
	if int(un.Offset)+4 <= len(buf) {
		binary.LittleEndian.PutUint32(buf[un.Offset:], uint32(v))
		u.dirty[un.Stage] = true
	}
}

// Floats returns the current value of the named uniform, or nil.
func (u *UniformValues) Floats(name string) []float32 {
	loc := u.prog.Location(name)
	un, ok := u.member(UniformLocation(loc))
	if !ok {
		return nil
	}
	buf := u.blocks[un.Stage][un.Block]
	out := make([]float32, un.Kind.Components())
	for i := range out {
		off := int(un.Offset) + i*4
		if off+4 > len(buf) {
			break
		}
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
	}
	return out
}

// Unit returns the texture unit of the named texture uniform, or -1.
func (u *UniformValues) Unit(name string) int {
	loc := u.prog.Location(name)
	if un, ok := u.units[loc]; ok {
		return un
	}
	return -1
}

// Block returns the raw bytes of a uniform block.
func (u *UniformValues) Block(stage shader.Stage, index int) []byte {
	return u.blocks[stage][index]
}

// TakeDirty reports whether a stage's blocks changed since the last call
// and clears the flag.
func (u *UniformValues) TakeDirty(stage shader.Stage) bool {
	d := u.dirty[stage]
	u.dirty[stage] = false
	return d
}

func (u *UniformValues) member(loc UniformLocation) (shader.Uniform, bool) {
	if loc < 0 || int(loc) >= len(u.prog.Uniforms) {
		return shader.Uniform{}, false
	}
	un := u.prog.Uniforms[loc]
	if un.Block < 0 {
		return shader.Uniform{}, false
	}
	return un, true
}
