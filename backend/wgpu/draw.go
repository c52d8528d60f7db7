package wgpu

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/deferred/backend"
	"github.com/gogpu/deferred/internal/shader"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"
)

var errNoIndices = errors.New("wgpu: vertex array has no index buffer")

// readbackTimeout bounds the wait for a staging buffer to map.
const readbackTimeout = 5 * time.Second

// DrawElements draws count indices starting at offset as a triangle list.
func (c *Context) DrawElements(count, offset int) error {
	va, err := c.drawReady()
	if err != nil {
		return err
	}
	if va.indices == nil {
		return errNoIndices
	}
	if count < 0 || offset < 0 || offset+count > va.indices.n {
		return fmt.Errorf("wgpu: draw range [%d, %d) exceeds %d indices", offset, offset+count, va.indices.n)
	}
	return c.draw(va, func(pass *wgpu.RenderPassEncoder) {
		pass.SetIndexBuffer(va.indices.buf, va.indices.format, 0)
		pass.DrawIndexed(uint32(count), 1, uint32(offset), 0, 0)
	})
}

// DrawArrays draws count consecutive vertices starting at first.
func (c *Context) DrawArrays(first, count int) error {
	va, err := c.drawReady()
	if err != nil {
		return err
	}
	if count < 0 || first < 0 || first+count > va.vertexCount {
		return fmt.Errorf("wgpu: draw range [%d, %d) exceeds %d vertices", first, first+count, va.vertexCount)
	}
	return c.draw(va, func(pass *wgpu.RenderPassEncoder) {
		pass.Draw(uint32(count), 1, uint32(first), 0)
	})
}

func (c *Context) drawReady() (*vertexArray, error) {
	switch {
	case c.released:
		return nil, backend.ErrReleased
	case c.prog == nil:
		return nil, backend.ErrNoProgram
	case c.vao == nil:
		return nil, backend.ErrNoVertexArray
	case c.vao.prog != c.prog:
		return nil, fmt.Errorf("wgpu: vertex array was created for program %q, %q is in use",
			c.vao.prog.info.Label, c.prog.info.Label)
	}
	return c.vao, nil
}

func (c *Context) draw(va *vertexArray, record func(*wgpu.RenderPassEncoder)) error {
	if va.vertexCount == 0 && len(va.inputs) > 0 {
		return nil
	}
	prog := c.prog
	fb := c.bound
	st := c.State()

	if err := c.uploadUniforms(prog); err != nil {
		return err
	}
	key := c.pipelineKey(prog, va, fb, st)
	pipeline, err := c.pipelines.GetOrCreate(key, func() (*wgpu.RenderPipeline, error) {
		return c.createPipeline(prog, key)
	})
	if err != nil {
		return err
	}

	var groups [2]*wgpu.BindGroup
	defer func() {
		for _, g := range groups {
			if g != nil {
				g.Release()
			}
		}
	}()
	for s, m := range []*shader.Module{prog.info.Vertex, prog.info.Fragment} {
		if groups[s], err = c.bindGroup(prog, s, m); err != nil {
			return err
		}
	}

	return c.submitPass(fb, st, func(pass *wgpu.RenderPassEncoder) {
		pass.SetPipeline(pipeline)
		for s, g := range groups {
			pass.SetBindGroup(uint32(s), g, nil)
		}
		x, y, w, h := clampViewport(st, fb)
		pass.SetViewport(x, y, w, h, 0, 1)
		for slot, in := range va.inputs {
			pass.SetVertexBuffer(uint32(slot), in.buf.buf, 0)
		}
		record(pass)
	}, false, false)
}

func (c *Context) uploadUniforms(p *program) error {
	for _, stage := range []shader.Stage{shader.StageVertex, shader.StageFragment} {
		if !p.uniforms.TakeDirty(stage) {
			continue
		}
		for i, buf := range p.blocks[stage] {
			data := p.uniforms.Block(stage, i)
			padded := make([]byte, buf.Size())
			copy(padded, data)
			if err := c.queue.WriteBuffer(buf, 0, padded); err != nil {
				return fmt.Errorf("wgpu: upload %s uniforms: %w", stage, err)
			}
		}
	}
	return nil
}

func (c *Context) pipelineKey(p *program, va *vertexArray, fb *framebuffer, st backend.RenderState) *PipelineKey {
	key := &PipelineKey{
		Program: p.id,
		Inputs:  va.layout(),
		State:   st,
	}
	active := min(st.DrawBuffers, len(fb.colors))
	for i, t := range fb.colors {
		_, written := p.info.Fragment.Output(uint32(i))
		key.Targets = append(key.Targets, ColorTarget{Format: t.format, Write: i < active && written})
	}
	if fb.depth != nil {
		key.DepthFormat = fb.depth.format
	}
	return key
}

func (c *Context) createPipeline(p *program, key *PipelineKey) (*wgpu.RenderPipeline, error) {
	st := key.State

	buffers := make([]wgpu.VertexBufferLayout, len(key.Inputs))
	for i, in := range key.Inputs {
		buffers[i] = wgpu.VertexBufferLayout{
			ArrayStride: uint64(in.Components * 4),
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{{
				Format:         floatFormat(in.Components),
				Offset:         0,
				ShaderLocation: in.Location,
			}},
		}
	}

	targets := make([]wgpu.ColorTargetState, len(key.Targets))
	for i, t := range key.Targets {
		targets[i] = wgpu.ColorTargetState{Format: t.Format, WriteMask: gputypes.ColorWriteMaskNone}
		if t.Write {
			targets[i].WriteMask = gputypes.ColorWriteMaskAll
		}
		if st.Blend && t.Write {
			comp := st.BlendComponent()
			targets[i].Blend = &gputypes.BlendState{Color: comp, Alpha: comp}
		}
	}

	var depth *wgpu.DepthStencilState
	if key.DepthFormat != gputypes.TextureFormatUndefined {
		depth = &wgpu.DepthStencilState{
			Format:            key.DepthFormat,
			DepthWriteEnabled: st.EffectiveDepthWrite(),
			DepthCompare:      st.EffectiveDepthCompare(),
			StencilReadMask:   0xFFFFFFFF,
			StencilWriteMask:  0xFFFFFFFF,
		}
	}

	pipeline, err := c.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.info.Label,
		Layout: p.layout,
		Vertex: wgpu.VertexState{
			Module:     p.vs,
			EntryPoint: p.info.Vertex.Entry,
			Buffers:    buffers,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: st.FrontFace,
			CullMode:  st.EffectiveCullMode(),
		},
		DepthStencil: depth,
		Multisample:  gputypes.DefaultMultisampleState(),
		Fragment: &wgpu.FragmentState{
			Module:     p.fs,
			EntryPoint: p.info.Fragment.Entry,
			Targets:    targets,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create pipeline %q: %w", p.info.Label, err)
	}
	backend.Logger().Debug("wgpu: pipeline created", "program", p.info.Label, "targets", len(targets))
	return pipeline, nil
}

func floatFormat(components int) gputypes.VertexFormat {
	switch components {
	case 1:
		return gputypes.VertexFormatFloat32
	case 2:
		return gputypes.VertexFormatFloat32x2
	case 3:
		return gputypes.VertexFormatFloat32x3
	default:
		return gputypes.VertexFormatFloat32x4
	}
}

// bindGroup builds the bind group of one stage from the program's uniform
// buffers and the textures bound to the units its texture uniforms name.
func (c *Context) bindGroup(p *program, stage int, m *shader.Module) (*wgpu.BindGroup, error) {
	var entries []wgpu.BindGroupEntry
	for i, b := range m.Uniforms {
		buf := p.blocks[stage][i]
		entries = append(entries, wgpu.BindGroupEntry{Binding: b.Binding, Buffer: buf, Size: buf.Size()})
	}

	var first *texture
	for _, r := range m.Resources {
		if r.Kind != shader.KindTexture {
			continue
		}
		t := c.unitTexture(p.uniforms.Unit(r.Name))
		if first == nil {
			first = t
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: r.Binding, TextureView: t.view})
	}
	for _, r := range m.Resources {
		if r.Kind != shader.KindSampler {
			continue
		}
		s := c.fallback
		if first != nil && first != c.blank {
			s = first.sampler
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: r.Binding, Sampler: s})
	}

	g, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   fmt.Sprintf("%s group %d", p.info.Label, stage),
		Layout:  p.layouts[stage],
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create bind group: %w", err)
	}
	return g, nil
}

// unitTexture returns the texture bound to unit, or the blank texture. A
// texture that is also an attachment of the bound framebuffer reads as
// blank.
func (c *Context) unitTexture(unit int) *texture {
	if unit < 0 || unit >= maxTextureUnits || c.units[unit] == nil {
		return c.blank
	}
	t := c.units[unit]
	for _, a := range c.bound.colors {
		if a == t {
			return c.blank
		}
	}
	return t
}

func clampViewport(st backend.RenderState, fb *framebuffer) (x, y, w, h float32) {
	x0 := max(st.ViewportX, 0)
	y0 := max(st.ViewportY, 0)
	x1 := min(st.ViewportX+st.ViewportW, fb.width)
	y1 := min(st.ViewportY+st.ViewportH, fb.height)
	if x1 <= x0 || y1 <= y0 {
		return 0, 0, 1, 1
	}
	return float32(x0), float32(y0), float32(x1 - x0), float32(y1 - y0)
}

// submitPass records one render pass on fb and submits it. Active color
// attachments and the depth attachment are optionally cleared on load.
func (c *Context) submitPass(fb *framebuffer, st backend.RenderState, record func(*wgpu.RenderPassEncoder), clearColor, clearDepth bool) error {
	enc, err := c.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "pass"})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}

	active := min(st.DrawBuffers, len(fb.colors))
	colors := make([]wgpu.RenderPassColorAttachment, len(fb.colors))
	for i, t := range fb.colors {
		colors[i] = wgpu.RenderPassColorAttachment{View: t.view, LoadOp: gputypes.LoadOpLoad, StoreOp: gputypes.StoreOpStore}
		if clearColor && i < active {
			colors[i].LoadOp = gputypes.LoadOpClear
			colors[i].ClearValue = st.ClearColorRGB
		}
	}
	desc := &wgpu.RenderPassDescriptor{Label: "pass", ColorAttachments: colors}
	if fb.depth != nil {
		ds := &wgpu.RenderPassDepthStencilAttachment{
			View:            fb.depth.view,
			DepthLoadOp:     gputypes.LoadOpLoad,
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: st.ClearDepthVal,
		}
		if clearDepth {
			ds.DepthLoadOp = gputypes.LoadOpClear
		}
		desc.DepthStencilAttachment = ds
	}

	pass, err := enc.BeginRenderPass(desc)
	if err != nil {
		enc.DiscardEncoding()
		return fmt.Errorf("wgpu: begin render pass: %w", err)
	}
	if record != nil {
		record(pass)
	}
	if err := pass.End(); err != nil {
		enc.DiscardEncoding()
		return fmt.Errorf("wgpu: end render pass: %w", err)
	}
	cmd, err := enc.Finish()
	if err != nil {
		return fmt.Errorf("wgpu: finish encoder: %w", err)
	}
	if _, err := c.queue.Submit(cmd); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	return nil
}

// Clear clears the active color attachments and/or the depth attachment of
// the bound framebuffer.
func (c *Context) Clear(mask backend.ClearMask) error {
	if c.released {
		return backend.ErrReleased
	}
	if mask&(backend.ColorBufferBit|backend.DepthBufferBit) == 0 {
		return nil
	}
	st := c.State()
	if c.bound == c.defaultFB {
		st.DrawBuffers = 1
	}
	return c.submitPass(c.bound, st, nil, mask&backend.ColorBufferBit != 0, mask&backend.DepthBufferBit != 0)
}

// ReadPixels reads the default framebuffer back as RGBA8.
func (c *Context) ReadPixels() ([]byte, error) {
	if c.released {
		return nil, backend.ErrReleased
	}
	t := c.defaultFB.colors[0]
	rows, stride, err := c.readback(t, 4)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, t.width*t.height*4)
	for y := 0; y < t.height; y++ {
		out = append(out, rows[y*stride:y*stride+t.width*4]...)
	}
	return out, nil
}

// ReadTexture reads a color texture back as float32 RGBA.
func (c *Context) ReadTexture(tt backend.Texture) ([]float32, error) {
	if c.released {
		return nil, backend.ErrReleased
	}
	t, ok := tt.(*texture)
	if !ok || t.owner != c {
		return nil, backend.ErrForeignHandle
	}
	var texel int
	switch t.format {
	case gputypes.TextureFormatRGBA8Unorm:
		texel = 4
	case gputypes.TextureFormatRGBA16Float:
		texel = 8
	case gputypes.TextureFormatRGBA32Float:
		texel = 16
	default:
		return nil, fmt.Errorf("wgpu: cannot read back %v textures", t.format)
	}
	rows, stride, err := c.readback(t, texel)
	if err != nil {
		return nil, err
	}
	out := make([]float32, 0, t.width*t.height*4)
	for y := 0; y < t.height; y++ {
		row := rows[y*stride:]
		for i := 0; i < t.width*4; i++ {
			switch texel {
			case 4:
				out = append(out, float32(row[i])/255)
			case 8:
				out = append(out, halfToFloat32(binary.LittleEndian.Uint16(row[i*2:])))
			default:
				out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(row[i*4:])))
			}
		}
	}
	return out, nil
}

// readback copies t into a staging buffer and returns its mapped contents
// with the padded row stride.
func (c *Context) readback(t *texture, texel int) ([]byte, int, error) {
	stride := align(t.width*texel, 256)
	size := uint64(stride * t.height)
	staging, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "readback",
		Size:  size,
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer staging.Release()

	enc, err := c.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "readback"})
	if err != nil {
		return nil, 0, fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	enc.CopyTextureToBuffer(t.tex, staging, []wgpu.BufferTextureCopy{{
		BufferLayout: wgpu.ImageDataLayout{BytesPerRow: uint32(stride), RowsPerImage: uint32(t.height)},
		TextureBase:  wgpu.ImageCopyTexture{Texture: t.tex},
		Size:         wgpu.Extent3D{Width: uint32(t.width), Height: uint32(t.height), DepthOrArrayLayers: 1},
	}})
	cmd, err := enc.Finish()
	if err != nil {
		return nil, 0, fmt.Errorf("wgpu: finish encoder: %w", err)
	}
	if _, err := c.queue.Submit(cmd); err != nil {
		return nil, 0, fmt.Errorf("wgpu: submit: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), readbackTimeout)
	defer cancel()
	if err := staging.Map(ctx, wgpu.MapModeRead, 0, size); err != nil {
		return nil, 0, fmt.Errorf("wgpu: map staging buffer: %w", err)
	}
	rng, err := staging.MappedRange(0, size)
	if err != nil {
		_ = staging.Unmap()
		return nil, 0, fmt.Errorf("wgpu: mapped range: %w", err)
	}
	data := make([]byte, size)
	copy(data, rng.Bytes())
	if err := staging.Unmap(); err != nil {
		return nil, 0, fmt.Errorf("wgpu: unmap: %w", err)
	}
	return data, stride, nil
}

func align(n, to int) int {
	return (n + to - 1) / to * to
}

func float32Bytes(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func uint32Bytes(v []uint32) []byte {
	out := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:], x)
	}
	return out
}

func uint16Bytes(v []uint16) []byte {
	out := make([]byte, len(v)*2)
	for i, x := range v {
		binary.LittleEndian.PutUint16(out[i*2:], x)
	}
	return out
}
