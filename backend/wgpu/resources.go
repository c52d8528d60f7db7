package wgpu

import (
	"github.com/gogpu/deferred/backend"
	"github.com/gogpu/deferred/internal/shader"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"
)

// texture is a sampled, renderable GPU texture with its own sampler.
type texture struct {
	owner   *Context
	tex     *wgpu.Texture
	view    *wgpu.TextureView
	sampler *wgpu.Sampler
	width   int
	height  int
	format  gputypes.TextureFormat
}

func (t *texture) Size() (int, int)                { return t.width, t.height }
func (t *texture) Format() gputypes.TextureFormat { return t.format }

func (t *texture) Release() {
	if t.sampler != nil {
		t.sampler.Release()
		t.sampler = nil
	}
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

type renderbuffer struct {
	owner  *Context
	tex    *wgpu.Texture
	view   *wgpu.TextureView
	width  int
	height int
	format gputypes.TextureFormat
}

func (r *renderbuffer) Size() (int, int)                { return r.width, r.height }
func (r *renderbuffer) Format() gputypes.TextureFormat { return r.format }

func (r *renderbuffer) Release() {
	if r.view != nil {
		r.view.Release()
		r.view = nil
	}
	if r.tex != nil {
		r.tex.Release()
		r.tex = nil
	}
}

type framebuffer struct {
	owner  *Context
	colors []*texture
	depth  *renderbuffer
	width  int
	height int
}

func (f *framebuffer) ColorAttachments() []backend.Texture {
	out := make([]backend.Texture, len(f.colors))
	for i, c := range f.colors {
		out[i] = c
	}
	return out
}

func (f *framebuffer) DepthAttachment() backend.Renderbuffer {
	if f.depth == nil {
		return nil
	}
	return f.depth
}

// Release drops the framebuffer; attachments stay valid.
func (f *framebuffer) Release() {
	f.colors = nil
	f.depth = nil
}

type buffer struct {
	owner  *Context
	buf    *wgpu.Buffer
	n      int
	index  bool
	format gputypes.IndexFormat
}

func (b *buffer) Len() int { return b.n }

func (b *buffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

type vertexInput struct {
	VertexInput
	buf *buffer
}

type vertexArray struct {
	owner       *Context
	prog        *program
	inputs      []vertexInput
	indices     *buffer
	vertexCount int
}

func (v *vertexArray) Release() {
	v.inputs = nil
	v.indices = nil
}

func (v *vertexArray) layout() []VertexInput {
	out := make([]VertexInput, len(v.inputs))
	for i, in := range v.inputs {
		out[i] = in.VertexInput
	}
	return out
}

// program is a linked program with its GPU objects. layouts[s] and
// blocks[s] belong to bind group s.
type program struct {
	owner    *Context
	id       uint64
	info     *shader.Program
	vs, fs   *wgpu.ShaderModule
	layouts  [2]*wgpu.BindGroupLayout
	layout   *wgpu.PipelineLayout
	blocks   [2][]*wgpu.Buffer
	uniforms *backend.UniformValues
}

func (p *program) Info() *shader.Program { return p.info }

func (p *program) UniformLocation(name string) backend.UniformLocation {
	return backend.UniformLocation(p.info.Location(name))
}

func (p *program) Release() {
	if p.owner != nil && p.owner.pipelines != nil {
		if n := p.owner.pipelines.EvictProgram(p.id); n > 0 {
			backend.Logger().Debug("wgpu: pipelines evicted", "program", p.id, "count", n)
		}
	}
	for s := range p.blocks {
		for _, b := range p.blocks[s] {
			b.Release()
		}
		p.blocks[s] = nil
	}
	if p.layout != nil {
		p.layout.Release()
		p.layout = nil
	}
	for i, l := range p.layouts {
		if l != nil {
			l.Release()
			p.layouts[i] = nil
		}
	}
	if p.vs != nil {
		p.vs.Release()
		p.vs = nil
	}
	if p.fs != nil {
		p.fs.Release()
		p.fs = nil
	}
}
