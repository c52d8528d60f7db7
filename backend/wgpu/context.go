package wgpu

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/deferred/backend"
	"github.com/gogpu/deferred/internal/shader"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"

	_ "github.com/gogpu/wgpu/hal/allbackends"
)

// ErrNoAdapter is returned when no usable GPU adapter is found.
var ErrNoAdapter = errors.New("wgpu: no usable adapter")

const (
	maxTextureUnits = 16

	defaultColorFormat = gputypes.TextureFormatRGBA8Unorm
	defaultDepthFormat = gputypes.TextureFormatDepth24Plus

	attachmentUsage = gputypes.TextureUsageRenderAttachment |
		gputypes.TextureUsageTextureBinding |
		gputypes.TextureUsageCopySrc |
		gputypes.TextureUsageCopyDst
)

var programIDs atomic.Uint64

func init() {
	backend.Register(backend.BackendWGPU, func(opts backend.Options) (backend.Context, error) {
		return New(opts.Width, opts.Height)
	})
}

// Context is a backend.Context backed by a wgpu device.
type Context struct {
	backend.StateTracker

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	info     wgpu.AdapterInfo

	defaultFB *framebuffer
	bound     *framebuffer

	prog  *program
	vao   *vertexArray
	units [maxTextureUnits]*texture

	// blank is bound in place of unbound textures; fallback serves
	// samplers of stages without a bound texture.
	blank    *texture
	fallback *wgpu.Sampler

	pipelines *PipelineCache
	released  bool
}

// New opens the best available adapter and creates a context with a
// width x height offscreen default framebuffer.
func New(width, height int) (*Context, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("wgpu: %w: %dx%d", backend.ErrInvalidSize, width, height)
	}
	instance, err := wgpu.CreateInstance(&wgpu.InstanceDescriptor{Backends: wgpu.BackendsAll})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("%w: %w", ErrNoAdapter, err)
	}
	info := adapter.Info()
	if info.Backend == gputypes.BackendEmpty {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("%w: %q has no graphics API", ErrNoAdapter, info.Name)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("wgpu: request device: %w", err)
	}

	c := &Context{
		StateTracker: backend.NewStateTracker(width, height),
		instance:     instance,
		adapter:      adapter,
		device:       device,
		queue:        device.Queue(),
		info:         info,
		pipelines:    NewPipelineCache(),
	}
	if err := c.init(width, height); err != nil {
		c.Release()
		return nil, err
	}
	backend.Logger().Debug("wgpu: context created",
		"adapter", info.Name, "api", info.Backend.String(), "width", width, "height", height)
	return c, nil
}

func (c *Context) init(width, height int) error {
	blank, err := c.newTexture(backend.TextureDescriptor{
		Label: "blank", Width: 1, Height: 1, Format: defaultColorFormat,
	})
	if err != nil {
		return err
	}
	c.blank = blank
	c.fallback, err = c.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:        "fallback",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		LodMaxClamp:  32,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create sampler: %w", err)
	}
	return c.newDefaultFramebuffer(width, height)
}

func (c *Context) newDefaultFramebuffer(width, height int) error {
	color, err := c.newTexture(backend.TextureDescriptor{
		Label: "default color", Width: width, Height: height, Format: defaultColorFormat,
	})
	if err != nil {
		return err
	}
	depth, err := c.newRenderbuffer(width, height, defaultDepthFormat)
	if err != nil {
		color.Release()
		return err
	}
	old := c.defaultFB
	c.defaultFB = &framebuffer{owner: c, colors: []*texture{color}, depth: depth, width: width, height: height}
	if c.bound == nil || c.bound == old {
		c.bound = c.defaultFB
	}
	if old != nil {
		for _, t := range old.colors {
			t.Release()
		}
		if old.depth != nil {
			old.depth.Release()
		}
	}
	return nil
}

func (c *Context) Name() string { return backend.BackendWGPU }

// AdapterInfo reports the adapter in use.
func (c *Context) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: c.info.Name, Type: adapterType(c.info.DeviceType)}
}

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}

func (c *Context) Size() (int, int) { return c.defaultFB.width, c.defaultFB.height }

// Resize recreates the default framebuffer and resets the viewport.
func (c *Context) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("wgpu: %w: %dx%d", backend.ErrInvalidSize, width, height)
	}
	if err := c.device.WaitIdle(); err != nil {
		return fmt.Errorf("wgpu: wait idle: %w", err)
	}
	if err := c.newDefaultFramebuffer(width, height); err != nil {
		return err
	}
	c.Viewport(0, 0, width, height)
	return nil
}

// CreateProgram compiles src, reflects it and creates the shader modules,
// bind group layouts and uniform buffers.
func (c *Context) CreateProgram(src shader.Source) (backend.Program, error) {
	info, err := shader.Build(src)
	if err != nil {
		return nil, err
	}
	p := &program{owner: c, id: programIDs.Add(1), info: info, uniforms: backend.NewUniformValues(info)}
	if err := c.initProgram(p, src); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

func (c *Context) initProgram(p *program, src shader.Source) error {
	var err error
	if p.vs, err = c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{Label: src.Label + " vs", WGSL: src.Vertex}); err != nil {
		return &shader.CompileError{Stage: shader.StageVertex, Label: src.Label, Diagnostics: []string{err.Error()}}
	}
	if p.fs, err = c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{Label: src.Label + " fs", WGSL: src.Fragment}); err != nil {
		return &shader.CompileError{Stage: shader.StageFragment, Label: src.Label, Diagnostics: []string{err.Error()}}
	}

	for s, m := range []*shader.Module{p.info.Vertex, p.info.Fragment} {
		visibility := gputypes.ShaderStageVertex
		if m.Stage == shader.StageFragment {
			visibility = gputypes.ShaderStageFragment
		}
		var entries []gputypes.BindGroupLayoutEntry
		for _, b := range m.Uniforms {
			entries = append(entries, gputypes.BindGroupLayoutEntry{
				Binding:    b.Binding,
				Visibility: visibility,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			})
			buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: fmt.Sprintf("%s %s", src.Label, b.Name),
				Size:  uint64(align(int(b.Size), 16)),
				Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
			})
			if err != nil {
				return fmt.Errorf("wgpu: create uniform buffer: %w", err)
			}
			p.blocks[s] = append(p.blocks[s], buf)
		}
		for _, r := range m.Resources {
			e := gputypes.BindGroupLayoutEntry{Binding: r.Binding, Visibility: visibility}
			if r.Kind == shader.KindTexture {
				e.Texture = &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				}
			} else {
				e.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
			}
			entries = append(entries, e)
		}
		p.layouts[s], err = c.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s group %d", src.Label, s),
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("wgpu: create bind group layout: %w", err)
		}
	}

	p.layout, err = c.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            src.Label,
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.layouts[0], p.layouts[1]},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create pipeline layout: %w", err)
	}
	return nil
}

// CreateVertexBuffer uploads data to a vertex buffer.
func (c *Context) CreateVertexBuffer(data []float32) (backend.Buffer, error) {
	b, err := c.upload("vertices", float32Bytes(data), wgpu.BufferUsageVertex)
	if err != nil {
		return nil, err
	}
	return &buffer{owner: c, buf: b, n: len(data)}, nil
}

// CreateIndexBuffer uploads indices in the given format.
func (c *Context) CreateIndexBuffer(data []uint32, format gputypes.IndexFormat) (backend.Buffer, error) {
	var raw []byte
	if format == gputypes.IndexFormatUint16 {
		s := make([]uint16, len(data))
		for i, v := range data {
			if v > 0xFFFF {
				return nil, fmt.Errorf("wgpu: index %d does not fit uint16", v)
			}
			s[i] = uint16(v)
		}
		raw = uint16Bytes(s)
	} else {
		format = gputypes.IndexFormatUint32
		raw = uint32Bytes(data)
	}
	b, err := c.upload("indices", raw, wgpu.BufferUsageIndex)
	if err != nil {
		return nil, err
	}
	return &buffer{owner: c, buf: b, n: len(data), index: true, format: format}, nil
}

func (c *Context) upload(label string, data []byte, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	size := uint64(align(max(len(data), 4), 4))
	b, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create buffer: %w", err)
	}
	if len(data) > 0 {
		padded := make([]byte, size)
		copy(padded, data)
		if err := c.queue.WriteBuffer(b, 0, padded); err != nil {
			b.Release()
			return nil, fmt.Errorf("wgpu: write buffer: %w", err)
		}
	}
	return b, nil
}

// CreateVertexArray resolves attribute names against the program inputs.
func (c *Context) CreateVertexArray(p backend.Program, desc backend.VertexArrayDescriptor) (backend.VertexArray, error) {
	prog, ok := p.(*program)
	if !ok || prog.owner != c {
		return nil, backend.ErrForeignHandle
	}
	va := &vertexArray{owner: c, prog: prog, vertexCount: -1}
	for _, a := range desc.Attributes {
		in, ok := prog.info.Attribute(a.Name)
		if !ok {
			return nil, prog.info.BindAttributes([]string{a.Name})
		}
		buf, ok := a.Buffer.(*buffer)
		if !ok || buf.owner != c || buf.index {
			return nil, backend.ErrForeignHandle
		}
		if a.Components < 1 || a.Components > 4 {
			return nil, fmt.Errorf("wgpu: attribute %q has %d components", a.Name, a.Components)
		}
		n := buf.n / a.Components
		if va.vertexCount < 0 || n < va.vertexCount {
			va.vertexCount = n
		}
		va.inputs = append(va.inputs, vertexInput{
			VertexInput: VertexInput{Location: in.Location, Components: a.Components},
			buf:         buf,
		})
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

func (c *Context) CreateTexture(desc backend.TextureDescriptor) (backend.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("wgpu: %w: %dx%d", backend.ErrInvalidSize, desc.Width, desc.Height)
	}
	return c.newTexture(desc)
}

func (c *Context) newTexture(desc backend.TextureDescriptor) (*texture, error) {
	if desc.Format == gputypes.TextureFormatUndefined {
		desc.Format = defaultColorFormat
	}
	tex, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Size:          wgpu.Extent3D{Width: uint32(desc.Width), Height: uint32(desc.Height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         attachmentUsage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture %q: %w", desc.Label, err)
	}
	t := &texture{owner: c, tex: tex, width: desc.Width, height: desc.Height, format: desc.Format}
	if t.view, err = c.device.CreateTextureView(tex, nil); err != nil {
		t.Release()
		return nil, fmt.Errorf("wgpu: create texture view: %w", err)
	}
	t.sampler, err = c.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: addressMode(desc.AddressModeU),
		AddressModeV: addressMode(desc.AddressModeV),
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    filterMode(desc.MagFilter),
		MinFilter:    filterMode(desc.MinFilter),
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  32,
	})
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("wgpu: create sampler: %w", err)
	}
	return t, nil
}

func addressMode(m gputypes.AddressMode) gputypes.AddressMode {
	if m == gputypes.AddressModeUndefined {
		return gputypes.AddressModeClampToEdge
	}
	return m
}

func filterMode(m gputypes.FilterMode) gputypes.FilterMode {
	if m == gputypes.FilterModeUndefined {
		return gputypes.FilterModeNearest
	}
	return m
}

func (c *Context) CreateRenderbuffer(width, height int, format gputypes.TextureFormat) (backend.Renderbuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("wgpu: %w: %dx%d", backend.ErrInvalidSize, width, height)
	}
	return c.newRenderbuffer(width, height, format)
}

func (c *Context) newRenderbuffer(width, height int, format gputypes.TextureFormat) (*renderbuffer, error) {
	tex, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "depth",
		Size:          wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create depth texture: %w", err)
	}
	view, err := c.device.CreateTextureView(tex, nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("wgpu: create depth view: %w", err)
	}
	return &renderbuffer{owner: c, tex: tex, view: view, width: width, height: height, format: format}, nil
}

// CreateFramebuffer groups attachments of one size.
func (c *Context) CreateFramebuffer(colors []backend.Texture, depth backend.Renderbuffer) (backend.Framebuffer, error) {
	if len(colors) == 0 || len(colors) > backend.MaxColorAttachments {
		return nil, fmt.Errorf("wgpu: framebuffer needs 1..%d color attachments, got %d",
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
			return nil, fmt.Errorf("wgpu: attachment %d is %dx%d, want %dx%d", i, t.width, t.height, fb.width, fb.height)
		}
		fb.colors = append(fb.colors, t)
	}
	if depth != nil {
		rb, ok := depth.(*renderbuffer)
		if !ok || rb.owner != c {
			return nil, backend.ErrForeignHandle
		}
		if rb.width != fb.width || rb.height != fb.height {
			return nil, fmt.Errorf("wgpu: depth attachment is %dx%d, want %dx%d", rb.width, rb.height, fb.width, fb.height)
		}
		fb.depth = rb
	}
	return fb, nil
}

func (c *Context) BindFramebuffer(fb backend.Framebuffer) {
	if fb == nil {
		c.bound = c.defaultFB
		return
	}
	if f, ok := fb.(*framebuffer); ok && f.owner == c {
		c.bound = f
	}
}

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

// PipelineStats returns the pipeline cache hit and miss counts.
func (c *Context) PipelineStats() (hits, misses uint64) {
	return c.pipelines.Stats()
}

// Release waits for the device and frees every object the context owns.
func (c *Context) Release() {
	if c.released {
		return
	}
	c.released = true
	if c.device != nil {
		_ = c.device.WaitIdle()
	}
	c.pipelines.DestroyAll()
	if c.defaultFB != nil {
		for _, t := range c.defaultFB.colors {
			t.Release()
		}
		if c.defaultFB.depth != nil {
			c.defaultFB.depth.Release()
		}
	}
	if c.blank != nil {
		c.blank.Release()
	}
	if c.fallback != nil {
		c.fallback.Release()
	}
	if c.device != nil {
		c.device.Release()
	}
	if c.adapter != nil {
		c.adapter.Release()
	}
	if c.instance != nil {
		c.instance.Release()
	}
	c.prog = nil
	c.vao = nil
}

var _ backend.Context = (*Context)(nil)
