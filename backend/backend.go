package backend

import (
	"errors"
	"fmt"

	"github.com/gogpu/deferred/internal/shader"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Common backend errors.
var (
	// ErrContextUnavailable is returned when no graphics context could be
	// created: the backend is not registered, or it failed to initialize.
	ErrContextUnavailable = errors.New("backend: graphics context unavailable")

	// ErrNoProgram is returned by draw calls issued without a program in use.
	ErrNoProgram = errors.New("backend: no program in use")

	// ErrNoVertexArray is returned by draw calls issued without a vertex array.
	ErrNoVertexArray = errors.New("backend: no vertex array bound")

	// ErrForeignHandle is returned when a handle created by another context
	// is passed in.
	ErrForeignHandle = errors.New("backend: handle belongs to another context")

	// ErrReleased is returned when a released handle or context is used.
	ErrReleased = errors.New("backend: use of released object")

	// ErrInvalidSize is returned for non-positive texture or surface sizes.
	ErrInvalidSize = errors.New("backend: invalid size")
)

// MaxColorAttachments is the largest number of color attachments a
// framebuffer may carry.
const MaxColorAttachments = 8

// Capability is a server-side toggle, in the GL sense.
type Capability int

const (
	// DepthTest enables the depth comparison against the depth attachment.
	DepthTest Capability = iota

	// Blend enables blending of fragment outputs with the attachment contents.
	Blend

	// CullFace enables face culling.
	CullFace
)

// String returns the capability name.
func (c Capability) String() string {
	switch c {
	case DepthTest:
		return "DepthTest"
	case Blend:
		return "Blend"
	case CullFace:
		return "CullFace"
	default:
		return fmt.Sprintf("Capability(%d)", int(c))
	}
}

// ClearMask selects the buffers cleared by Context.Clear.
type ClearMask uint8

const (
	// ColorBufferBit clears every active color attachment.
	ColorBufferBit ClearMask = 1 << iota

	// DepthBufferBit clears the depth attachment.
	DepthBufferBit
)

// UniformLocation addresses a uniform of a program. Negative locations are
// ignored by every setter.
type UniformLocation int

// NoLocation is the location of a uniform the program does not declare.
const NoLocation UniformLocation = -1

// Program is a linked shader program.
type Program interface {
	// Info returns the reflected program description.
	Info() *shader.Program

	// UniformLocation returns the location of a uniform, texture, or
	// sampler by name, or NoLocation.
	UniformLocation(name string) UniformLocation

	Release()
}

// Buffer holds vertex or index data.
type Buffer interface {
	// Len returns the number of elements (floats for vertex data, indices
	// for index data).
	Len() int
	Release()
}

// VertexAttrib binds one float32 buffer to a named vertex input.
type VertexAttrib struct {
	Name       string
	Buffer     Buffer
	Components int
}

// VertexArrayDescriptor describes the vertex inputs of a draw.
type VertexArrayDescriptor struct {
	Attributes  []VertexAttrib
	Indices     Buffer
	IndexFormat gputypes.IndexFormat
}

// VertexArray captures attribute and index bindings for a program.
type VertexArray interface {
	Release()
}

// TextureDescriptor describes a 2D texture with its sampling state.
type TextureDescriptor struct {
	Label         string
	Width, Height int
	Format        gputypes.TextureFormat

	MinFilter, MagFilter gputypes.FilterMode

	AddressModeU, AddressModeV gputypes.AddressMode
}

// Texture is a sampled 2D image that can also be a color attachment.
type Texture interface {
	Size() (width, height int)
	Format() gputypes.TextureFormat
	Release()
}

// Renderbuffer is a depth attachment.
type Renderbuffer interface {
	Size() (width, height int)
	Format() gputypes.TextureFormat
	Release()
}

// Framebuffer groups color attachments and an optional depth attachment.
type Framebuffer interface {
	ColorAttachments() []Texture
	DepthAttachment() Renderbuffer
	Release()
}

// Context is an immediate-mode graphics context.
//
// The model is that of a GL state machine: capabilities, blend and depth
// state, the bound framebuffer, the program in use, and the bound vertex
// array persist across calls until changed. Every draw consumes the current
// state. A Context is not safe for concurrent use.
//
// The default framebuffer is an offscreen RGBA8 color target plus a depth
// target, sized by Resize and read back with ReadPixels.
type Context interface {
	Name() string
	AdapterInfo() gpucontext.AdapterInfo

	// Size returns the default framebuffer size.
	Size() (width, height int)

	// Resize reallocates the default framebuffer and resets the viewport.
	Resize(width, height int) error

	CreateProgram(src shader.Source) (Program, error)
	CreateVertexBuffer(data []float32) (Buffer, error)
	CreateIndexBuffer(data []uint32, format gputypes.IndexFormat) (Buffer, error)
	CreateVertexArray(p Program, desc VertexArrayDescriptor) (VertexArray, error)
	CreateTexture(desc TextureDescriptor) (Texture, error)
	CreateRenderbuffer(width, height int, format gputypes.TextureFormat) (Renderbuffer, error)
	CreateFramebuffer(colors []Texture, depth Renderbuffer) (Framebuffer, error)

	Enable(c Capability)
	Disable(c Capability)
	IsEnabled(c Capability) bool
	DepthMask(write bool)
	DepthMaskEnabled() bool
	DepthFunc(f gputypes.CompareFunction)
	BlendFunc(src, dst gputypes.BlendFactor)
	BlendEquation(op gputypes.BlendOperation)
	CullFace(mode gputypes.CullMode)
	FrontFace(face gputypes.FrontFace)

	ClearColor(c gputypes.Color)
	ClearDepth(d float32)
	Clear(mask ClearMask) error
	Viewport(x, y, width, height int)

	// BindFramebuffer binds fb as the render target. nil binds the default
	// framebuffer.
	BindFramebuffer(fb Framebuffer)

	// DrawBuffers declares attachments [0, n) of the bound framebuffer as
	// active. Fragment outputs at locations >= n are discarded.
	DrawBuffers(n int)

	UseProgram(p Program)
	BindVertexArray(va VertexArray)

	// BindingGeneration increases every time UseProgram or BindVertexArray
	// is called.
	BindingGeneration() uint64

	BindTexture(unit int, t Texture)

	Uniform1f(loc UniformLocation, v float32)
	Uniform1i(loc UniformLocation, v int32)
	Uniform2f(loc UniformLocation, x, y float32)
	Uniform3f(loc UniformLocation, x, y, z float32)
	Uniform4f(loc UniformLocation, x, y, z, w float32)
	// UniformMatrix4fv sets a 4x4 matrix given in column-major order.
	UniformMatrix4fv(loc UniformLocation, m [16]float32)

	DrawElements(count, offset int) error
	DrawArrays(first, count int) error

	// ReadPixels returns the default framebuffer as tightly packed RGBA8,
	// top row first.
	ReadPixels() ([]byte, error)

	// ReadTexture returns a texture as tightly packed float32 RGBA, top row
	// first.
	ReadTexture(t Texture) ([]float32, error)

	Release()
}
