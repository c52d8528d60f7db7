package software

import (
	"sync"

	"github.com/gogpu/deferred/backend"
)

// Bindings exposes the uniforms and textures bound for one draw to a
// kernel. Unknown names read as zero.
type Bindings interface {
	Float(name string) float32
	Vec2(name string) [2]float32
	Vec3(name string) [3]float32
	Vec4(name string) [4]float32
	Mat4(name string) [16]float32

	// Texture returns a sampler over the texture bound to the unit of the
	// named texture uniform. An unbound texture samples as transparent black.
	Texture(name string) Sampler
}

// Sampler reads a texture with its filter and address modes.
type Sampler interface {
	Sample(u, v float32) [4]float32
}

// Outputs holds the color outputs of one fragment, by location.
type Outputs [backend.MaxColorAttachments][4]float32

// VertexFunc transforms one vertex. in is indexed by input location. The
// function writes the kernel's varyings into out and returns the clip-space
// position.
type VertexFunc func(in [][]float32, out []float32) [4]float32

// Fragment carries the fixed-function inputs of a fragment.
type Fragment struct {
	// X and Y are the pixel coordinates, top-left origin.
	X, Y int

	// Depth is the interpolated depth in [0, 1].
	Depth float32
}

// FragmentFunc shades one fragment from its interpolated varyings. It
// returns false to discard the fragment.
type FragmentFunc func(f Fragment, in []float32, out *Outputs) bool

// Kernel is the Go implementation of a WGSL program for the software
// backend. The vertex and fragment factories are called once per draw with
// the bound uniforms; the functions they return must be safe to call from
// several goroutines.
type Kernel struct {
	// Varyings is the number of floats passed from vertex to fragment.
	Varyings int

	Vertex   func(b Bindings) VertexFunc
	Fragment func(b Bindings) FragmentFunc
}

var (
	kernelsMu sync.RWMutex
	kernels   = make(map[string]Kernel)
)

// RegisterKernel associates a kernel with a program label. Programs created
// on a software context look their kernel up by shader.Source.Label.
func RegisterKernel(label string, k Kernel) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	kernels[label] = k
}

func lookupKernel(label string) (Kernel, bool) {
	kernelsMu.RLock()
	defer kernelsMu.RUnlock()
	k, ok := kernels[label]
	return k, ok
}
