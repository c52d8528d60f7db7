package software

import (
	"math"

	"github.com/gogpu/deferred/backend"
	"github.com/gogpu/deferred/internal/shader"
	"github.com/gogpu/gputypes"
)

// texture is a float32 RGBA image. RGBA8Unorm textures quantize on write.
type texture struct {
	owner         *Context
	width, height int
	format        gputypes.TextureFormat
	desc          backend.TextureDescriptor
	pix           []float32
	released      bool
}

func newTexture(owner *Context, desc backend.TextureDescriptor) *texture {
	return &texture{
		owner:  owner,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		desc:   desc,
		pix:    make([]float32, desc.Width*desc.Height*4),
	}
}

func (t *texture) Size() (int, int)                { return t.width, t.height }
func (t *texture) Format() gputypes.TextureFormat { return t.format }
func (t *texture) Release() {
	t.released = true
	t.pix = nil
}

func (t *texture) unorm() bool {
	return t.format == gputypes.TextureFormatRGBA8Unorm
}

// store writes a color, quantizing for 8-bit formats.
func (t *texture) store(i int, c [4]float32) {
	if t.unorm() {
		for k := range c {
			c[k] = quantize8(c[k])
		}
	}
	copy(t.pix[i:i+4], c[:])
}

func (t *texture) clear(c gputypes.Color) {
	v := [4]float32{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}
	if t.unorm() {
		for k := range v {
			v[k] = quantize8(v[k])
		}
	}
	for i := 0; i < len(t.pix); i += 4 {
		copy(t.pix[i:i+4], v[:])
	}
}

func quantize8(v float32) float32 {
	if v <= 0 || v != v {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return float32(math.Round(float64(v)*255)) / 255
}

// Sample implements Sampler with the texture's own filter and address modes.
func (t *texture) Sample(u, v float32) [4]float32 {
	if t == nil || t.released || t.width == 0 || t.height == 0 {
		return [4]float32{}
	}
	if t.desc.MagFilter != gputypes.FilterModeLinear && t.desc.MinFilter != gputypes.FilterModeLinear {
		x := t.wrap(int(math.Floor(float64(u)*float64(t.width))), t.width, t.desc.AddressModeU)
		y := t.wrap(int(math.Floor(float64(v)*float64(t.height))), t.height, t.desc.AddressModeV)
		return t.texel(x, y)
	}

	fx := u*float32(t.width) - 0.5
	fy := v*float32(t.height) - 0.5
	x0f := float32(math.Floor(float64(fx)))
	y0f := float32(math.Floor(float64(fy)))
	ax := fx - x0f
	ay := fy - y0f
	x0, y0 := int(x0f), int(y0f)

	xa := t.wrap(x0, t.width, t.desc.AddressModeU)
	xb := t.wrap(x0+1, t.width, t.desc.AddressModeU)
	ya := t.wrap(y0, t.height, t.desc.AddressModeV)
	yb := t.wrap(y0+1, t.height, t.desc.AddressModeV)

	c00, c10 := t.texel(xa, ya), t.texel(xb, ya)
	c01, c11 := t.texel(xa, yb), t.texel(xb, yb)

	var out [4]float32
	for k := range out {
		top := c00[k] + (c10[k]-c00[k])*ax
		bot := c01[k] + (c11[k]-c01[k])*ax
		out[k] = top + (bot-top)*ay
	}
	return out
}

func (t *texture) texel(x, y int) [4]float32 {
	i := (y*t.width + x) * 4
	return [4]float32{t.pix[i], t.pix[i+1], t.pix[i+2], t.pix[i+3]}
}

func (t *texture) wrap(i, n int, mode gputypes.AddressMode) int {
	switch mode {
	case gputypes.AddressModeRepeat:
		i %= n
		if i < 0 {
			i += n
		}
		return i
	case gputypes.AddressModeMirrorRepeat:
		period := 2 * n
		i %= period
		if i < 0 {
			i += period
		}
		if i >= n {
			i = period - 1 - i
		}
		return i
	default:
		return min(max(i, 0), n-1)
	}
}

// renderbuffer is a float32 depth target.
type renderbuffer struct {
	owner         *Context
	width, height int
	format        gputypes.TextureFormat
	depth         []float32
}

func (r *renderbuffer) Size() (int, int)                { return r.width, r.height }
func (r *renderbuffer) Format() gputypes.TextureFormat { return r.format }
func (r *renderbuffer) Release()                       { r.depth = nil }

func (r *renderbuffer) clear(d float32) {
	for i := range r.depth {
		r.depth[i] = d
	}
}

// framebuffer groups attachments. The default framebuffer is one of these
// too, owned by the context.
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

// Release drops the framebuffer. Attachments are owned by the caller and
// stay valid.
func (f *framebuffer) Release() {
	f.colors = nil
	f.depth = nil
}

// buffer holds vertex floats or indices.
type buffer struct {
	owner   *Context
	floats  []float32
	indices []uint32
	index   bool
}

func (b *buffer) Len() int {
	if b.index {
		return len(b.indices)
	}
	return len(b.floats)
}

func (b *buffer) Release() {
	b.floats = nil
	b.indices = nil
}

// attribute is a resolved vertex input.
type attribute struct {
	location   uint32
	components int
	data       []float32
}

type vertexArray struct {
	owner       *Context
	prog        *program
	attrs       []attribute
	maxLocation int
	indices     *buffer
	vertexCount int
}

func (v *vertexArray) Release() {
	v.attrs = nil
	v.indices = nil
}

// program is a linked program paired with its kernel.
type program struct {
	owner    *Context
	info     *shader.Program
	kernel   Kernel
	uniforms *backend.UniformValues
}

func (p *program) Info() *shader.Program { return p.info }

func (p *program) UniformLocation(name string) backend.UniformLocation {
	return backend.UniformLocation(p.info.Location(name))
}

func (p *program) Release() {}

// bindings implements Bindings over a program's uniform storage and the
// context's texture units.
type bindings struct {
	prog  *program
	units []*texture
}

func (b bindings) floats(name string, n int) []float32 {
	v := b.prog.uniforms.Floats(name)
	if len(v) < n {
		v = append(v, make([]float32, n-len(v))...)
	}
	return v
}

func (b bindings) Float(name string) float32 { return b.floats(name, 1)[0] }

func (b bindings) Vec2(name string) [2]float32 {
	v := b.floats(name, 2)
	return [2]float32{v[0], v[1]}
}

func (b bindings) Vec3(name string) [3]float32 {
	v := b.floats(name, 3)
	return [3]float32{v[0], v[1], v[2]}
}

func (b bindings) Vec4(name string) [4]float32 {
	v := b.floats(name, 4)
	return [4]float32{v[0], v[1], v[2], v[3]}
}

func (b bindings) Mat4(name string) [16]float32 {
	var m [16]float32
	copy(m[:], b.floats(name, 16))
	return m
}

func (b bindings) Texture(name string) Sampler {
	unit := b.prog.uniforms.Unit(name)
	if unit < 0 || unit >= len(b.units) || b.units[unit] == nil {
		return (*texture)(nil)
	}
	return b.units[unit]
}
