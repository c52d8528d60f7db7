package deferred

import (
	"fmt"
	"sync"

	"github.com/gogpu/deferred/backend"
	"github.com/gogpu/gputypes"
)

// GBufferTargets is the number of color targets the geometry pass writes:
// position, normal, albedo and depth.
const GBufferTargets = 4

// Framebuffer is a multi-render-target framebuffer: count color textures
// and one depth attachment, all the same size. It never changes size; a
// new viewport gets a new Framebuffer.
type Framebuffer struct {
	ctx      backend.Context
	fb       backend.Framebuffer
	textures []backend.Texture
	depth    backend.Renderbuffer
	width    int
	height   int
	released bool
}

// NewFramebuffer allocates count linear-filtered, edge-clamped color
// textures and a Depth24Plus attachment of width x height.
func NewFramebuffer(ctx backend.Context, count, width, height int, opts ...FramebufferOption) (*Framebuffer, error) {
	if count < 1 || count > backend.MaxColorAttachments {
		return nil, fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidAttachmentCount, count, backend.MaxColorAttachments)
	}
	if err := (Viewport{Width: width, Height: height}).Validate(); err != nil {
		return nil, err
	}

	o := framebufferOptions{
		label:       "gbuffer",
		depthFormat: gputypes.TextureFormatDepth24Plus,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.colorFormat == gputypes.TextureFormatUndefined {
		o.colorFormat = defaultColorFormat(ctx)
	}

	f := &Framebuffer{ctx: ctx, width: width, height: height}
	for i := 0; i < count; i++ {
		t, err := ctx.CreateTexture(backend.TextureDescriptor{
			Label:        fmt.Sprintf("%s/color%d", o.label, i),
			Width:        width,
			Height:       height,
			Format:       o.colorFormat,
			MinFilter:    gputypes.FilterModeLinear,
			MagFilter:    gputypes.FilterModeLinear,
			AddressModeU: gputypes.AddressModeClampToEdge,
			AddressModeV: gputypes.AddressModeClampToEdge,
		})
		if err != nil {
			f.Release()
			return nil, fmt.Errorf("deferred: color attachment %d: %w", i, err)
		}
		f.textures = append(f.textures, t)
	}

	depth, err := ctx.CreateRenderbuffer(width, height, o.depthFormat)
	if err != nil {
		f.Release()
		return nil, fmt.Errorf("deferred: depth attachment: %w", err)
	}
	f.depth = depth

	fb, err := ctx.CreateFramebuffer(f.textures, depth)
	if err != nil {
		f.Release()
		return nil, fmt.Errorf("deferred: framebuffer: %w", err)
	}
	f.fb = fb
	return f, nil
}

// defaultColorFormat picks a filterable float format for the context.
func defaultColorFormat(ctx backend.Context) gputypes.TextureFormat {
	if ctx.Name() == backend.BackendSoftware {
		return gputypes.TextureFormatRGBA32Float
	}
	return gputypes.TextureFormatRGBA16Float
}

// Textures returns the color attachments in location order.
func (f *Framebuffer) Textures() []backend.Texture { return f.textures }

// Depth returns the depth attachment.
func (f *Framebuffer) Depth() backend.Renderbuffer { return f.depth }

// Size returns the attachment size.
func (f *Framebuffer) Size() (w, h int) { return f.width, f.height }

// Viewport returns the attachment size as a Viewport.
func (f *Framebuffer) Viewport() Viewport { return Viewport{Width: f.width, Height: f.height} }

// Bind makes f the render target with every color attachment active and
// the viewport covering it.
func (f *Framebuffer) Bind() {
	f.ctx.BindFramebuffer(f.fb)
	f.ctx.DrawBuffers(len(f.textures))
	f.ctx.Viewport(0, 0, f.width, f.height)
}

// Release frees the framebuffer and its attachments. It is safe to call
// more than once.
func (f *Framebuffer) Release() {
	if f.released {
		return
	}
	f.released = true
	if f.fb != nil {
		f.fb.Release()
		f.fb = nil
	}
	for _, t := range f.textures {
		t.Release()
	}
	f.textures = nil
	if f.depth != nil {
		f.depth.Release()
		f.depth = nil
	}
}

// FramebufferCache holds framebuffers keyed by viewport so that switching
// back to a recent size does not reallocate.
//
// FramebufferCache is safe for concurrent use, but the framebuffers it
// returns belong to the goroutine driving the context.
type FramebufferCache struct {
	mu      sync.Mutex
	ctx     backend.Context
	count   int
	opts    []FramebufferOption
	entries map[Viewport]*Framebuffer
}

// NewFramebufferCache creates an empty cache of count-target framebuffers.
func NewFramebufferCache(ctx backend.Context, count int, opts ...FramebufferOption) *FramebufferCache {
	return &FramebufferCache{
		ctx:     ctx,
		count:   count,
		opts:    opts,
		entries: make(map[Viewport]*Framebuffer),
	}
}

// Get returns the framebuffer for vp, building it on a miss.
func (c *FramebufferCache) Get(vp Viewport) (*Framebuffer, error) {
	if err := vp.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.entries[vp]; ok {
		return f, nil
	}
	f, err := NewFramebuffer(c.ctx, c.count, vp.Width, vp.Height, c.opts...)
	if err != nil {
		return nil, err
	}
	Logger().Debug("deferred: framebuffer built", "viewport", vp.String(), "targets", c.count)
	c.entries[vp] = f
	return f, nil
}

// Evict releases every framebuffer except the one for keep.
func (c *FramebufferCache) Evict(keep Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for vp, f := range c.entries {
		if vp != keep {
			f.Release()
			delete(c.entries, vp)
		}
	}
}

// Len returns the number of cached framebuffers.
func (c *FramebufferCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Release frees every cached framebuffer.
func (c *FramebufferCache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for vp, f := range c.entries {
		f.Release()
		delete(c.entries, vp)
	}
}
