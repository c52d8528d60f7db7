package deferred

import (
	"fmt"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/deferred/backend"
	"github.com/gogpu/deferred/geometry"
	"github.com/gogpu/deferred/internal/shader"
	"github.com/gogpu/gputypes"
)

// FrameParams carries everything a frame depends on besides the renderer's
// own state.
type FrameParams struct {
	// Time is the scene time in seconds.
	Time float64

	View mgl32.Mat4

	// ShowGBuffer replaces the lit image with the four G-buffer targets.
	ShowGBuffer bool
}

// gbufferNames are the lighting-pass texture uniforms, in attachment order.
var gbufferNames = [GBufferTargets]string{
	"texturePosition",
	"textureNormal",
	"textureColor",
	"textureDepth",
}

// Renderer draws the scene with deferred shading. It owns every GPU object
// it creates but not the context.
//
// Only Resize may be called from another goroutine than the one calling
// RenderFrame.
type Renderer struct {
	ctx  backend.Context
	opts rendererOptions

	geometry    *DrawState
	ambient     *DrawState
	pointLight  *DrawState
	gbufferView *DrawState

	lights       *LightSet
	framebuffers *FramebufferCache
	fb           *Framebuffer
	viewport     Viewport
	projection   mgl32.Mat4

	pending atomic.Pointer[Viewport]
	frames  uint64
	closed  bool
}

// NewRenderer builds the scene, the four programs and the G-buffer.
func NewRenderer(ctx backend.Context, opts ...RendererOption) (r *Renderer, err error) {
	o := defaultRendererOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.viewport.Validate(); err != nil {
		return nil, err
	}

	lights, err := GenerateLights(o.lightCount, o.lightOpts...)
	if err != nil {
		return nil, err
	}
	mesh := o.mesh
	if mesh == nil {
		mesh, err = geometry.Icosphere(o.subdivision, o.sphereRadius)
		if err != nil {
			return nil, err
		}
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}

	if w, h := ctx.Size(); w != o.viewport.Width || h != o.viewport.Height {
		if err := ctx.Resize(o.viewport.Width, o.viewport.Height); err != nil {
			return nil, fmt.Errorf("deferred: resize default framebuffer: %w", err)
		}
	}

	r = &Renderer{
		ctx:          ctx,
		opts:         o,
		lights:       lights,
		framebuffers: NewFramebufferCache(ctx, GBufferTargets),
	}
	defer func() {
		if err != nil {
			r.Close()
			r = nil
		}
	}()

	r.geometry, err = NewDrawState(ctx, DrawStateDesc{
		Shader: geometrySource,
		Attributes: []Attribute{
			{Name: "a_position", Size: 3, Data: mesh.Positions},
			{Name: "a_normal", Size: 3, Data: mesh.Normals},
			{Name: "a_color", Size: 4, Data: mesh.Colors},
		},
		Indices: mesh.Indices,
	})
	if err != nil {
		return r, err
	}

	plane := geometry.Plane(2, 2, [4]float32{1, 1, 1, 1})
	quad := func(src shader.Source) (*DrawState, error) {
		return NewDrawState(ctx, DrawStateDesc{
			Shader: src,
			Attributes: []Attribute{
				{Name: "a_position", Size: 3, Data: plane.Positions},
				{Name: "a_uv", Size: 2, Data: plane.UVs},
			},
			Indices: plane.Indices,
		})
	}
	if r.ambient, err = quad(ambientSource); err != nil {
		return r, err
	}
	if r.pointLight, err = quad(pointLightSource); err != nil {
		return r, err
	}
	if r.gbufferView, err = quad(gbufferSource); err != nil {
		return r, err
	}

	if err = r.setViewport(o.viewport); err != nil {
		return r, err
	}

	ctx.Enable(backend.DepthTest)
	ctx.DepthMask(true)
	ctx.DepthFunc(gputypes.CompareFunctionLess)
	ctx.Enable(backend.CullFace)
	ctx.CullFace(gputypes.CullModeBack)
	ctx.FrontFace(gputypes.FrontFaceCCW)
	ctx.Disable(backend.Blend)

	Logger().Info("deferred: renderer ready",
		"backend", ctx.Name(),
		"viewport", o.viewport.String(),
		"lights", lights.Len(),
		"triangles", len(mesh.Indices)/3)
	return r, nil
}

// setViewport switches to the framebuffer and projection for vp.
func (r *Renderer) setViewport(vp Viewport) error {
	fb, err := r.framebuffers.Get(vp)
	if err != nil {
		return err
	}
	r.fb = fb
	r.viewport = vp
	r.projection = Projection(r.opts.fov, vp.Aspect(), r.opts.near, r.opts.far)
	r.framebuffers.Evict(vp)
	return nil
}

// Resize requests a new viewport. The switch happens at the start of the
// next frame. Resize is safe to call from any goroutine.
func (r *Renderer) Resize(width, height int) error {
	vp := Viewport{Width: width, Height: height}
	if err := vp.Validate(); err != nil {
		return err
	}
	r.pending.Store(&vp)
	return nil
}

// ApplyResize performs a pending Resize. RenderFrame calls it first, so
// callers only need it to resize without rendering.
func (r *Renderer) ApplyResize() error {
	if r.closed {
		return ErrClosed
	}
	vp := r.pending.Swap(nil)
	if vp == nil || *vp == r.viewport {
		return nil
	}
	if err := r.ctx.Resize(vp.Width, vp.Height); err != nil {
		return fmt.Errorf("deferred: resize default framebuffer: %w", err)
	}
	if err := r.setViewport(*vp); err != nil {
		// Keep the default framebuffer in step with the framebuffer still in use.
		if rerr := r.ctx.Resize(r.viewport.Width, r.viewport.Height); rerr != nil {
			Logger().Warn("deferred: restore size after failed resize", "err", rerr)
		}
		return fmt.Errorf("deferred: resize to %s: %w", vp, err)
	}
	Logger().Info("deferred: resized", "viewport", vp.String())
	return nil
}

// RenderFrame renders one frame into the default framebuffer: the geometry
// pass, then either the lighting passes or the G-buffer view.
func (r *Renderer) RenderFrame(p FrameParams) error {
	if err := r.ApplyResize(); err != nil {
		return err
	}
	if err := r.geometryPass(p); err != nil {
		return fmt.Errorf("deferred: geometry pass: %w", err)
	}
	if err := r.checkState("geometry"); err != nil {
		return err
	}
	if err := r.lightingPass(p); err != nil {
		return fmt.Errorf("deferred: lighting pass: %w", err)
	}
	if err := r.checkState("lighting"); err != nil {
		return err
	}
	r.frames++
	return nil
}

func (r *Renderer) geometryPass(p FrameParams) error {
	ctx := r.ctx
	r.fb.Bind()
	ctx.Enable(backend.DepthTest)
	ctx.DepthMask(true)
	ctx.Disable(backend.Blend)
	ctx.Enable(backend.CullFace)
	ctx.CullFace(gputypes.CullModeBack)

	ctx.ClearColor(gputypes.Color{})
	ctx.ClearDepth(1)
	if err := ctx.Clear(backend.ColorBufferBit | backend.DepthBufferBit); err != nil {
		return err
	}

	model := ModelMatrix(p.Time)
	b := r.geometry.Use()
	b.Mat4("mvp", r.projection.Mul4(p.View).Mul4(model))
	b.Mat4("model", model)
	b.Mat4("normalMatrix", NormalMatrix(model))
	b.Mat4("view", p.View)
	b.Uniform1f("far", r.opts.far)
	return b.Draw()
}

func (r *Renderer) lightingPass(p FrameParams) error {
	ctx := r.ctx
	ctx.BindFramebuffer(nil)
	ctx.DrawBuffers(1)
	ctx.Viewport(0, 0, r.viewport.Width, r.viewport.Height)
	ctx.ClearColor(r.opts.clearColor)
	ctx.ClearDepth(1)
	if err := ctx.Clear(backend.ColorBufferBit | backend.DepthBufferBit); err != nil {
		return err
	}
	for i, t := range r.fb.Textures() {
		ctx.BindTexture(i, t)
	}

	if p.ShowGBuffer {
		b := r.gbufferView.Use()
		bindGBuffer(b)
		b.Uniform2f("u_texelSize", 1/float32(r.viewport.Width), 1/float32(r.viewport.Height))
		return b.Draw()
	}

	ctx.Disable(backend.DepthTest)
	ctx.DepthMask(false)
	ctx.Enable(backend.Blend)
	ctx.BlendFunc(gputypes.BlendFactorOne, gputypes.BlendFactorOne)
	ctx.BlendEquation(gputypes.BlendOperationAdd)
	err := r.drawLights()
	ctx.Enable(backend.DepthTest)
	ctx.DepthMask(true)
	ctx.Disable(backend.Blend)
	return err
}

func (r *Renderer) drawLights() error {
	b := r.ambient.Use()
	bindGBuffer(b)
	ac := r.opts.ambientColor
	b.Uniform4f("ambientColor", ac[0], ac[1], ac[2], 1)
	b.Uniform1f("ambientIntensity", r.opts.ambientIntensity)
	if err := b.Draw(); err != nil {
		return fmt.Errorf("ambient: %w", err)
	}

	b = r.pointLight.Use()
	bindGBuffer(b)
	for i, l := range r.lights.lights {
		b.Uniform3f("pointPosition", l.Position[0], l.Position[1], l.Position[2])
		b.Uniform4f("pointColor", l.Color[0], l.Color[1], l.Color[2], 1)
		b.Uniform1f("pointIntensity", l.Intensity)
		b.Uniform1f("pointDistance", l.Distance)
		b.Uniform1f("pointAttenuation", l.Attenuation)
		if err := b.Draw(); err != nil {
			return fmt.Errorf("point light %d: %w", i, err)
		}
	}
	return nil
}

// bindGBuffer points each G-buffer texture uniform the program declares at
// its attachment's unit.
func bindGBuffer(b Bound) {
	for unit, name := range gbufferNames {
		b.Uniform1i(name, int32(unit))
	}
}

// checkState reports depth or blend state a pass failed to restore.
func (r *Renderer) checkState(pass string) error {
	switch {
	case !r.ctx.IsEnabled(backend.DepthTest):
		return fmt.Errorf("%w: depth test disabled after %s pass", ErrStateLeak, pass)
	case !r.ctx.DepthMaskEnabled():
		return fmt.Errorf("%w: depth write disabled after %s pass", ErrStateLeak, pass)
	case r.ctx.IsEnabled(backend.Blend):
		return fmt.Errorf("%w: blend enabled after %s pass", ErrStateLeak, pass)
	}
	return nil
}

// Context returns the graphics context the renderer draws with.
func (r *Renderer) Context() backend.Context { return r.ctx }

// Projection returns the current projection matrix.
func (r *Renderer) Projection() mgl32.Mat4 { return r.projection }

// Framebuffer returns the current G-buffer.
func (r *Renderer) Framebuffer() *Framebuffer { return r.fb }

// Lights returns the light set.
func (r *Renderer) Lights() *LightSet { return r.lights }

// Viewport returns the current viewport.
func (r *Renderer) Viewport() Viewport { return r.viewport }

// Frames returns the number of frames rendered.
func (r *Renderer) Frames() uint64 { return r.frames }

// ReadPixels reads the default framebuffer back.
func (r *Renderer) ReadPixels() (*Pixmap, error) {
	if r.closed {
		return nil, ErrClosed
	}
	data, err := r.ctx.ReadPixels()
	if err != nil {
		return nil, err
	}
	w, h := r.ctx.Size()
	return pixmapFromRGBA(w, h, data)
}

// ReadGBuffer reads G-buffer target i back as float32 RGBA, top row first.
func (r *Renderer) ReadGBuffer(i int) ([]float32, error) {
	if r.closed {
		return nil, ErrClosed
	}
	textures := r.fb.Textures()
	if i < 0 || i >= len(textures) {
		return nil, fmt.Errorf("deferred: G-buffer target %d out of range", i)
	}
	return r.ctx.ReadTexture(textures[i])
}

// Close releases everything the renderer created, newest first. The
// context stays open. Close is safe to call more than once.
func (r *Renderer) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.framebuffers.Release()
	r.fb = nil
	r.gbufferView.Release()
	r.pointLight.Release()
	r.ambient.Release()
	r.geometry.Release()
	Logger().Debug("deferred: renderer closed", "frames", r.frames)
}
