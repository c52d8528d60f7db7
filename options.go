package deferred

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/deferred/geometry"
	"github.com/gogpu/gputypes"
)

// RendererOption configures a Renderer during creation.
//
// Example:
//
//	r, err := deferred.NewRenderer(ctx,
//	    deferred.WithViewport(1024, 768),
//	    deferred.WithLightCount(16),
//	)
type RendererOption func(*rendererOptions)

// rendererOptions holds optional configuration for Renderer creation.
type rendererOptions struct {
	viewport Viewport

	clearColor       gputypes.Color
	ambientColor     mgl32.Vec3
	ambientIntensity float32

	lightCount int
	lightOpts  []LightOption

	mesh         *geometry.Mesh
	subdivision  int
	sphereRadius float32

	fov, near, far float32
}

// Scene defaults.
const (
	DefaultWidth        = 800
	DefaultHeight       = 600
	DefaultSubdivision  = 3
	DefaultSphereRadius = 2
)

func defaultRendererOptions() rendererOptions {
	return rendererOptions{
		viewport:         Viewport{Width: DefaultWidth, Height: DefaultHeight},
		clearColor:       gputypes.Color{A: 1},
		ambientColor:     mgl32.Vec3{0.2, 0.2, 0.2},
		ambientIntensity: 1,
		lightCount:       DefaultLightCount,
		subdivision:      DefaultSubdivision,
		sphereRadius:     DefaultSphereRadius,
		fov:              DefaultFOV,
		near:             DefaultNear,
		far:              DefaultFar,
	}
}

// WithViewport sets the initial render size.
func WithViewport(width, height int) RendererOption {
	return func(o *rendererOptions) {
		o.viewport = Viewport{Width: width, Height: height}
	}
}

// WithLightCount sets the number of point lights.
func WithLightCount(n int) RendererOption {
	return func(o *rendererOptions) {
		o.lightCount = n
	}
}

// WithLightOptions passes options through to GenerateLights.
func WithLightOptions(opts ...LightOption) RendererOption {
	return func(o *rendererOptions) {
		o.lightOpts = append(o.lightOpts, opts...)
	}
}

// WithAmbient sets the ambient light color and intensity.
func WithAmbient(color mgl32.Vec3, intensity float32) RendererOption {
	return func(o *rendererOptions) {
		o.ambientColor = color
		o.ambientIntensity = intensity
	}
}

// WithClearColor sets the color of pixels no geometry covers.
func WithClearColor(c gputypes.Color) RendererOption {
	return func(o *rendererOptions) {
		o.clearColor = c
	}
}

// WithMesh replaces the icosphere with a custom mesh. The mesh must carry
// normals and colors.
func WithMesh(m *geometry.Mesh) RendererOption {
	return func(o *rendererOptions) {
		o.mesh = m
	}
}

// WithSubdivision sets the icosphere subdivision order.
func WithSubdivision(order int) RendererOption {
	return func(o *rendererOptions) {
		o.subdivision = order
	}
}

// WithSphereRadius sets the icosphere radius.
func WithSphereRadius(r float32) RendererOption {
	return func(o *rendererOptions) {
		o.sphereRadius = r
	}
}

// WithFOV sets the vertical field of view in degrees.
func WithFOV(deg float32) RendererOption {
	return func(o *rendererOptions) { o.fov = deg }
}

// WithNear sets the near clip distance.
func WithNear(near float32) RendererOption {
	return func(o *rendererOptions) { o.near = near }
}

// WithFar sets the far clip distance. Linear depth in the G-buffer is
// view depth divided by far.
func WithFar(far float32) RendererOption {
	return func(o *rendererOptions) { o.far = far }
}

// FramebufferOption configures NewFramebuffer.
type FramebufferOption func(*framebufferOptions)

type framebufferOptions struct {
	label       string
	colorFormat gputypes.TextureFormat
	depthFormat gputypes.TextureFormat
}

// WithLabel names the framebuffer's textures.
func WithLabel(label string) FramebufferOption {
	return func(o *framebufferOptions) { o.label = label }
}

// WithColorFormat overrides the color attachment format. By default it is
// RGBA32Float on the software backend and RGBA16Float elsewhere.
func WithColorFormat(f gputypes.TextureFormat) FramebufferOption {
	return func(o *framebufferOptions) { o.colorFormat = f }
}
