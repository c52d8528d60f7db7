package software

import (
	"fmt"

	"github.com/gogpu/deferred/backend"
	"github.com/gogpu/deferred/internal/parallel"
	"github.com/gogpu/deferred/internal/shader"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// AdapterName is reported by AdapterInfo.
const AdapterName = "deferred software rasterizer"

// maxTextureUnits is the number of texture units a context exposes.
const maxTextureUnits = 16

// init registers the software backend on package import.
func init() {
	backend.Register(backend.BackendSoftware, func(opts backend.Options) (backend.Context, error) {
		return New(opts.Width, opts.Height)
	})
}

// Context is a CPU implementation of backend.Context.
//
// Geometry is transformed on the calling goroutine; rasterization is split
// into horizontal bands that run on a worker pool. Every draw call returns
// after all bands have finished.
type Context struct {
	backend.StateTracker

	pool *parallel.WorkerPool

	defaultFB *framebuffer
	bound     *framebuffer

	prog  *program
	vao   *vertexArray
	units [maxTextureUnits]*texture

	bandHeight int
	released   bool
}

// Option configures a software context.
type Option func(*Context)

// WithWorkers sets the rasterizer worker count. Zero uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *Context) {
		c.pool = parallel.NewWorkerPool(n)
	}
}

// WithBandHeight sets the number of scanlines per rasterization band.
func WithBandHeight(rows int) Option {
	return func(c *Context) {
		c.bandHeight = rows
	}
}

// New creates a software context with a width x height default framebuffer.
func New(width, height int, opts ...Option) (*Context, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("software: %w: %dx%d", backend.ErrInvalidSize, width, height)
	}
	c := &Context{
		StateTracker: backend.NewStateTracker(width, height),
		bandHeight:   parallel.DefaultBandHeight,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pool == nil {
		c.pool = parallel.NewWorkerPool(0)
	}
	c.defaultFB = c.newDefaultFramebuffer(width, height)
	c.bound = c.defaultFB

	backend.Logger().Debug("software: context created",
		"width", width, "height", height, "workers", c.pool.Workers())
	return c, nil
}

func (c *Context) newDefaultFramebuffer(width, height int) *framebuffer {
	color := newTexture(c, backend.TextureDescriptor{
		Label:  "default color",
		Width:  width,
		Height: height,
		Format: gputypes.TextureFormatRGBA8Unorm,
	})
	depth := &renderbuffer{
		owner:  c,
		width:  width,
		height: height,
		format: gputypes.TextureFormatDepth24Plus,
		depth:  make([]float32, width*height),
	}
	depth.clear(1)
	return &framebuffer{owner: c, colors: []*texture{color}, depth: depth, width: width, height: height}
}

// Name returns the backend identifier.
func (c *Context) Name() string { return backend.BackendSoftware }

// AdapterInfo reports a software adapter.
func (c *Context) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: AdapterName, Type: gpucontext.AdapterTypeSoftware}
}

// Size returns the default framebuffer size.
func (c *Context) Size() (int, int) {
	return c.defaultFB.width, c.defaultFB.height
}

// Resize reallocates the default framebuffer and resets the viewport.
func (c *Context) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("software: %w: %dx%d", backend.ErrInvalidSize, width, height)
	}
	wasDefault := c.bound == c.defaultFB
	c.defaultFB = c.newDefaultFramebuffer(width, height)
	if wasDefault {
		c.bound = c.defaultFB
	}
	c.Viewport(0, 0, width, height)
	return nil
}

// CreateProgram compiles and links src and pairs it with the kernel
// registered under src.Label.
func (c *Context) CreateProgram(src shader.Source) (backend.Program, error) {
	info, err := shader.Build(src)
	if err != nil {
		return nil, err
	}
	k, ok := lookupKernel(src.Label)
	if !ok {
		return nil, &shader.LinkError{
			Label: src.Label,
			Log:   []string{fmt.Sprintf("software: no kernel registered for program %q", src.Label)},
		}
	}
	return &program{owner: c, info: info, kernel: k, uniforms: backend.NewUniformValues(info)}, nil
}

// CreateVertexBuffer copies data into a vertex buffer.
func (c *Context) CreateVertexBuffer(data []float32) (backend.Buffer, error) {
	return &buffer{owner: c, floats: append([]float32(nil), data...)}, nil
}

// CreateIndexBuffer copies data into an index buffer. Uint16 buffers reject
// indices above 65535.
func (c *Context) CreateIndexBuffer(data []uint32, format gputypes.IndexFormat) (backend.Buffer, error) {
	if format == gputypes.IndexFormatUint16 {
		for _, i := range data {
			if i > 0xFFFF {
				return nil, fmt.Errorf("software: index %d does not fit uint16", i)
			}
		}
	}
	return &buffer{owner: c, indices: append([]uint32(nil), data...), index: true}, nil
}

// CreateVertexArray resolves attribute names to program input locations.
func (c *Context) CreateVertexArray(p backend.Program, desc backend.VertexArrayDescriptor) (backend.VertexArray, error) {
	prog, ok := p.(*program)
	if !ok || prog.owner != c {
		return nil, backend.ErrForeignHandle
	}
	va := &vertexArray{owner: c, prog: prog, maxLocation: -1, vertexCount: -1}
	for _, a := range desc.Attributes {
		in, ok := prog.info.Attribute(a.Name)
		if !ok {
			return nil, prog.info.BindAttributes([]string{a.Name})
		}
		buf, ok := a.Buffer.(*buffer)
		if !ok || buf.owner != c || buf.index {
			return nil, backend.ErrForeignHandle
		}
		if a.Components <= 0 {
			return nil, fmt.Errorf("software: attribute %q has %d components", a.Name, a.Components)
		}
		n := len(buf.floats) / a.Components
		if va.vertexCount < 0 || n < va.vertexCount {
			va.vertexCount = n
		}
		va.attrs = append(va.attrs, attribute{location: in.Location, components: a.Components, data: buf.floats})
		va.maxLocation = max(va.maxLocation, int(in.Location))
	}
	if va.vertexCount < 0 {
		va.vertexCount = 0
	}
	if desc.Indices != nil {
		ib, ok := desc.Indices.(*buffer)
		if !ok || ib.owner != c || !ib.index {
			return nil, backend.ErrForeignHandle
		}
		va.indices = ib
	}
	return va, nil
}

// CreateTexture allocates a float RGBA texture.
func (c *Context) CreateTexture(desc backend.TextureDescriptor) (backend.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("software: %w: %dx%d", backend.ErrInvalidSize, desc.Width, desc.Height)
	}
	return newTexture(c, desc), nil
}

// CreateRenderbuffer allocates a depth buffer cleared to 1.
func (c *Context) CreateRenderbuffer(width, height int, format gputypes.TextureFormat) (backend.Renderbuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("software: %w: %dx%d", backend.ErrInvalidSize, width, height)
	}
	rb := &renderbuffer{owner: c, width: width, height: height, format: format, depth: make([]float32, width*height)}
	rb.clear(1)
	return rb, nil
}

// CreateFramebuffer groups attachments. All attachments must share one size.
func (c *Context) CreateFramebuffer(colors []backend.Texture, depth backend.Renderbuffer) (backend.Framebuffer, error) {
	if len(colors) == 0 || len(colors) > backend.MaxColorAttachments {
		return nil, fmt.Errorf("software: framebuffer needs 1..%d color attachments, got %d",
			backend.MaxColorAttachments, len(colors))
	}
	fb := &framebuffer{owner: c}
	for i, ct := range colors {
		t, ok := ct.(*texture)
		if !ok || t.owner != c {
			return nil, backend.ErrForeignHandle
		}
		if i == 0 {
			fb.width, fb.height = t.width, t.height
		} else if t.width != fb.width || t.height != fb.height {
			return nil, fmt.Errorf("software: attachment %d is %dx%d, want %dx%d",
				i, t.width, t.height, fb.width, fb.height)
		}
		fb.colors = append(fb.colors, t)
	}
	if depth != nil {
		rb, ok := depth.(*renderbuffer)
		if !ok || rb.owner != c {
			return nil, backend.ErrForeignHandle
		}
		if rb.width != fb.width || rb.height != fb.height {
			return nil, fmt.Errorf("software: depth attachment is %dx%d, want %dx%d",
				rb.width, rb.height, fb.width, fb.height)
		}
		fb.depth = rb
	}
	return fb, nil
}

// BindFramebuffer binds fb, or the default framebuffer when fb is nil.
func (c *Context) BindFramebuffer(fb backend.Framebuffer) {
	if fb == nil {
		c.bound = c.defaultFB
		return
	}
	if f, ok := fb.(*framebuffer); ok && f.owner == c {
		c.bound = f
	}
}

// UseProgram makes p the current program.
func (c *Context) UseProgram(p backend.Program) {
	c.Rebind()
	if p == nil {
		c.prog = nil
		return
	}
	if prog, ok := p.(*program); ok && prog.owner == c {
		c.prog = prog
	}
}

// BindVertexArray makes va the current vertex array.
func (c *Context) BindVertexArray(va backend.VertexArray) {
	c.Rebind()
	if va == nil {
		c.vao = nil
		return
	}
	if v, ok := va.(*vertexArray); ok && v.owner == c {
		c.vao = v
	}
}

// BindTexture binds t to a texture unit. nil unbinds.
func (c *Context) BindTexture(unit int, t backend.Texture) {
	if unit < 0 || unit >= maxTextureUnits {
		return
	}
	if t == nil {
		c.units[unit] = nil
		return
	}
	if tex, ok := t.(*texture); ok && tex.owner == c {
		c.units[unit] = tex
	}
}

func (c *Context) Uniform1f(loc backend.UniformLocation, v float32) {
	if c.prog != nil {
		c.prog.uniforms.SetFloats(loc, v)
	}
}

func (c *Context) Uniform1i(loc backend.UniformLocation, v int32) {
	if c.prog != nil {
		c.prog.uniforms.SetInt(loc, v)
	}
}

func (c *Context) Uniform2f(loc backend.UniformLocation, x, y float32) {
	if c.prog != nil {
		c.prog.uniforms.SetFloats(loc, x, y)
	}
}

func (c *Context) Uniform3f(loc backend.UniformLocation, x, y, z float32) {
	if c.prog != nil {
		c.prog.uniforms.SetFloats(loc, x, y, z)
	}
}

func (c *Context) Uniform4f(loc backend.UniformLocation, x, y, z, w float32) {
	if c.prog != nil {
		c.prog.uniforms.SetFloats(loc, x, y, z, w)
	}
}

func (c *Context) UniformMatrix4fv(loc backend.UniformLocation, m [16]float32) {
	if c.prog != nil {
		c.prog.uniforms.SetFloats(loc, m[:]...)
	}
}

// Clear clears the bound framebuffer's active color attachments and/or its
// depth attachment.
func (c *Context) Clear(mask backend.ClearMask) error {
	if c.released {
		return backend.ErrReleased
	}
	st := c.State()
	fb := c.bound
	if mask&backend.ColorBufferBit != 0 {
		n := min(st.DrawBuffers, len(fb.colors))
		if fb == c.defaultFB {
			n = 1
		}
		for i := 0; i < n; i++ {
			fb.colors[i].clear(st.ClearColorRGB)
		}
	}
	if mask&backend.DepthBufferBit != 0 && fb.depth != nil {
		fb.depth.clear(st.ClearDepthVal)
	}
	return nil
}

// ReadPixels returns the default framebuffer as RGBA8.
func (c *Context) ReadPixels() ([]byte, error) {
	if c.released {
		return nil, backend.ErrReleased
	}
	src := c.defaultFB.colors[0].pix
	out := make([]byte, len(src))
	for i, v := range src {
		out[i] = uint8(quantize8(v)*255 + 0.5)
	}
	return out, nil
}

// ReadTexture returns a copy of the texture contents.
func (c *Context) ReadTexture(t backend.Texture) ([]float32, error) {
	tex, ok := t.(*texture)
	if !ok || tex.owner != c {
		return nil, backend.ErrForeignHandle
	}
	if tex.released {
		return nil, backend.ErrReleased
	}
	return append([]float32(nil), tex.pix...), nil
}

// Release stops the worker pool and drops the default framebuffer.
func (c *Context) Release() {
	if c.released {
		return
	}
	c.released = true
	c.pool.Close()
	c.defaultFB = &framebuffer{owner: c, colors: []*texture{newTexture(c, backend.TextureDescriptor{})}}
	c.bound = c.defaultFB
	c.prog = nil
	c.vao = nil
}

var _ backend.Context = (*Context)(nil)
