package deferred

import (
	"fmt"
	"maps"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/deferred/backend"
	"github.com/gogpu/deferred/internal/shader"
	"github.com/gogpu/gputypes"
)

// Attribute is one float32 vertex stream bound to a vertex input by name.
type Attribute struct {
	Name string
	// Size is the number of components per vertex, 1 to 4.
	Size int
	Data []float32
}

// DrawStateDesc describes a DrawState.
type DrawStateDesc struct {
	Shader     shader.Source
	Attributes []Attribute

	// Indices is optional. Without it the draw is non-indexed.
	Indices []uint32

	// Count overrides the number of indices (or vertices) drawn. Zero draws
	// everything from Offset to the end.
	Count int

	// Offset is the first index (or vertex) drawn.
	Offset int

	// Topology must be TriangleList, the zero value.
	Topology gputypes.PrimitiveTopology
}

// DrawState is a linked program bound to its vertex data: everything one
// draw call needs apart from uniform values.
type DrawState struct {
	ctx      backend.Context
	label    string
	program  backend.Program
	buffers  []backend.Buffer
	indices  backend.Buffer
	vao      backend.VertexArray
	uniforms map[string]backend.UniformLocation
	count    int
	offset   int
	indexed  bool
	released bool
}

// NewDrawState compiles and links desc.Shader and uploads the vertex data.
//
// Compile failures are returned as *shader.CompileError and link failures,
// including attributes the vertex stage does not declare, as
// *shader.LinkError. Nothing is left allocated on error.
func NewDrawState(ctx backend.Context, desc DrawStateDesc) (d *DrawState, err error) {
	if desc.Topology != gputypes.PrimitiveTopologyTriangleList {
		return nil, fmt.Errorf("deferred: %s: unsupported topology %v", desc.Shader.Label, desc.Topology)
	}

	d = &DrawState{ctx: ctx, label: desc.Shader.Label, offset: desc.Offset}
	defer func() {
		if err != nil {
			d.Release()
			d = nil
		}
	}()

	d.program, err = ctx.CreateProgram(desc.Shader)
	if err != nil {
		return d, err
	}
	info := d.program.Info()
	if err = checkAttributes(info, desc.Attributes); err != nil {
		return d, err
	}

	vertices := -1
	attrs := make([]backend.VertexAttrib, 0, len(desc.Attributes))
	for _, a := range desc.Attributes {
		if a.Size < 1 || a.Size > 4 || len(a.Data)%a.Size != 0 {
			return d, fmt.Errorf("deferred: %s: attribute %q: %d floats do not divide into %d components",
				d.label, a.Name, len(a.Data), a.Size)
		}
		buf, berr := ctx.CreateVertexBuffer(a.Data)
		if berr != nil {
			return d, fmt.Errorf("deferred: %s: attribute %q: %w", d.label, a.Name, berr)
		}
		d.buffers = append(d.buffers, buf)
		attrs = append(attrs, backend.VertexAttrib{Name: a.Name, Buffer: buf, Components: a.Size})
		if n := len(a.Data) / a.Size; vertices < 0 || n < vertices {
			vertices = n
		}
	}
	vertices = max(vertices, 0)

	vdesc := backend.VertexArrayDescriptor{Attributes: attrs}
	if len(desc.Indices) > 0 {
		format := gputypes.IndexFormatUint32
		if vertices <= 0xFFFF {
			format = gputypes.IndexFormatUint16
		}
		d.indices, err = ctx.CreateIndexBuffer(desc.Indices, format)
		if err != nil {
			return d, fmt.Errorf("deferred: %s: indices: %w", d.label, err)
		}
		vdesc.Indices = d.indices
		vdesc.IndexFormat = format
		d.indexed = true
	}
	total := vertices
	if d.indexed {
		total = len(desc.Indices)
	}
	if desc.Offset < 0 || (desc.Offset > 0 && desc.Offset >= total) {
		return d, fmt.Errorf("deferred: %s: offset %d outside [0, %d)", d.label, desc.Offset, total)
	}
	d.count = total - desc.Offset
	if desc.Count > 0 {
		if desc.Offset+desc.Count > total {
			return d, fmt.Errorf("deferred: %s: count %d at offset %d exceeds %d elements",
				d.label, desc.Count, desc.Offset, total)
		}
		d.count = desc.Count
	}

	d.vao, err = ctx.CreateVertexArray(d.program, vdesc)
	if err != nil {
		return d, err
	}

	d.uniforms = make(map[string]backend.UniformLocation, len(info.Uniforms))
	for _, u := range info.Uniforms {
		d.uniforms[u.Name] = d.program.UniformLocation(u.Name)
	}
	return d, nil
}

// checkAttributes reports attributes the vertex stage does not declare and
// vertex inputs no attribute feeds.
func checkAttributes(p *shader.Program, attrs []Attribute) error {
	var log []string
	given := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		given[a.Name] = true
		if _, ok := p.Vertex.Input(a.Name); !ok {
			log = append(log, fmt.Sprintf("attribute %q is not declared by the vertex stage", a.Name))
		}
	}
	for _, in := range p.Vertex.Inputs {
		if !given[in.Name] {
			log = append(log, fmt.Sprintf("vertex input %q at location %d has no attribute", in.Name, in.Location))
		}
	}
	if len(log) == 0 {
		return nil
	}
	return &shader.LinkError{Label: p.Label, Log: log}
}

// Label returns the program label.
func (d *DrawState) Label() string { return d.label }

// Count returns the number of indices, or vertices, a draw consumes.
func (d *DrawState) Count() int { return d.count }

// Indexed reports whether draws use the index buffer.
func (d *DrawState) Indexed() bool { return d.indexed }

// Program returns the linked program.
func (d *DrawState) Program() backend.Program { return d.program }

// Uniforms returns a copy of the uniform lookup.
func (d *DrawState) Uniforms() map[string]backend.UniformLocation {
	return maps.Clone(d.uniforms)
}

// UniformNames returns the declared uniform, texture and sampler names in
// sorted order.
func (d *DrawState) UniformNames() []string {
	return slices.Sorted(maps.Keys(d.uniforms))
}

// Location returns the location of a uniform, or backend.NoLocation.
func (d *DrawState) Location(name string) backend.UniformLocation {
	if loc, ok := d.uniforms[name]; ok {
		return loc
	}
	return backend.NoLocation
}

// Use makes d the active program and vertex array and returns a token for
// setting uniforms and drawing.
func (d *DrawState) Use() Bound {
	if d.released {
		return Bound{}
	}
	d.ctx.UseProgram(d.program)
	d.ctx.BindVertexArray(d.vao)
	return Bound{d: d, generation: d.ctx.BindingGeneration()}
}

// Release frees the program, buffers and vertex array. It is safe to call
// more than once.
func (d *DrawState) Release() {
	if d == nil || d.released {
		return
	}
	d.released = true
	if d.vao != nil {
		d.vao.Release()
		d.vao = nil
	}
	if d.indices != nil {
		d.indices.Release()
		d.indices = nil
	}
	for _, b := range d.buffers {
		b.Release()
	}
	d.buffers = nil
	if d.program != nil {
		d.program.Release()
		d.program = nil
	}
}

// Bound is the token returned by DrawState.Use. It stays valid until the
// program or vertex array binding of the context changes. Setters on a
// stale token do nothing; Draw reports ErrStaleBinding.
type Bound struct {
	d          *DrawState
	generation uint64
}

// Valid reports whether the token still matches the context bindings.
func (b Bound) Valid() bool {
	return b.d != nil && !b.d.released && b.d.ctx.BindingGeneration() == b.generation
}

// Draw issues the draw call.
func (b Bound) Draw() error {
	if b.d != nil && b.d.released {
		return fmt.Errorf("deferred: %s: %w", b.d.label, backend.ErrReleased)
	}
	if !b.Valid() {
		return ErrStaleBinding
	}
	d := b.d
	var err error
	if d.indexed {
		err = d.ctx.DrawElements(d.count, d.offset)
	} else {
		err = d.ctx.DrawArrays(d.offset, d.count)
	}
	if err != nil {
		return fmt.Errorf("deferred: %s: %w", d.label, err)
	}
	return nil
}

func (b Bound) location(name string) backend.UniformLocation {
	if !b.Valid() {
		return backend.NoLocation
	}
	return b.d.Location(name)
}

// Uniform1f sets a float uniform.
func (b Bound) Uniform1f(name string, v float32) {
	if loc := b.location(name); loc >= 0 {
		b.d.ctx.Uniform1f(loc, v)
	}
}

// Uniform1i sets an integer uniform or the unit a texture samples from.
func (b Bound) Uniform1i(name string, v int32) {
	if loc := b.location(name); loc >= 0 {
		b.d.ctx.Uniform1i(loc, v)
	}
}

// Uniform2f sets a vec2 uniform.
func (b Bound) Uniform2f(name string, x, y float32) {
	if loc := b.location(name); loc >= 0 {
		b.d.ctx.Uniform2f(loc, x, y)
	}
}

// Uniform3f sets a vec3 uniform.
func (b Bound) Uniform3f(name string, x, y, z float32) {
	if loc := b.location(name); loc >= 0 {
		b.d.ctx.Uniform3f(loc, x, y, z)
	}
}

// Uniform4f sets a vec4 uniform.
func (b Bound) Uniform4f(name string, x, y, z, w float32) {
	if loc := b.location(name); loc >= 0 {
		b.d.ctx.Uniform4f(loc, x, y, z, w)
	}
}

// Mat4 sets a mat4x4 uniform.
func (b Bound) Mat4(name string, m mgl32.Mat4) {
	if loc := b.location(name); loc >= 0 {
		b.d.ctx.UniformMatrix4fv(loc, m)
	}
}

// Mat3 sets a mat4x4 uniform from a 3x3 matrix, placed in the upper left
// with w = 1.
func (b Bound) Mat3(name string, m mgl32.Mat3) {
	b.Mat4(name, m.Mat4())
}
