// Package backend defines the immediate-mode graphics context the deferred
// renderer draws through, and a registry of context implementations.
//
// # Backend Registration
//
// Backends register a factory from an init() function:
//
//	import _ "github.com/gogpu/deferred/backend/software"
//	import _ "github.com/gogpu/deferred/backend/wgpu"
//
// # Backend Selection
//
// Use Default to open the best available backend, or Get to request one by
// name:
//
//	ctx, err := backend.Default(backend.Options{Width: 800, Height: 600})
//	if err != nil {
//		// errors.Is(err, backend.ErrContextUnavailable)
//	}
//	defer ctx.Release()
//
// # State Model
//
// Context follows the GL state-machine model: Enable/Disable, DepthMask,
// BlendFunc, BindFramebuffer, DrawBuffers, UseProgram and BindVertexArray
// change persistent state that every later draw consumes. StateTracker
// implements the bookkeeping shared by all backends and UniformValues the
// per-program uniform storage.
//
// # Available Backends
//
//   - "wgpu": GPU rendering via gogpu/wgpu (preferred when an adapter exists)
//   - "software": CPU rasterizer (always available)
package backend
