// Package software provides a CPU implementation of backend.Context.
//
// WGSL programs are still compiled, validated and reflected through naga so
// that uniform locations, attribute bindings and link errors behave exactly
// as on the GPU backend. Execution uses a Go Kernel registered under the
// program's label with RegisterKernel.
//
// The rasterizer clips against the near plane, culls by winding, and scan
// converts triangles with edge functions in bands of scanlines that run on
// an internal/parallel worker pool. Varyings are interpolated perspective
// correctly. Color attachments hold float32 RGBA, so RGBA16Float targets keep
// full precision and RGBA8Unorm targets are quantized on write.
//
// Importing the package registers the "software" backend:
//
//	import _ "github.com/gogpu/deferred/backend/software"
package software
