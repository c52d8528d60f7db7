// Package wgpu implements backend.Context on top of gogpu/wgpu.
//
// The GL-style state machine of the backend package is translated into
// WebGPU objects lazily, at draw time:
//
//   - Fixed-function state, the vertex layout and the target formats select a
//     render pipeline from a PipelineCache.
//   - Each program owns one uniform buffer per uniform block. Dirty blocks are
//     uploaded with Queue.WriteBuffer before the draw is submitted.
//   - Bind group 0 holds vertex-stage resources and bind group 1
//     fragment-stage resources, following the internal/shader convention.
//   - Every draw and every clear is encoded as its own render pass and
//     submitted immediately, so uniform uploads are ordered with the draws
//     that read them.
//
// The default framebuffer is an offscreen RGBA8Unorm texture with a
// Depth24Plus attachment. Adapters backed by the no-op HAL are rejected so
// that backend.Default falls back to the software rasterizer.
//
// Importing the package registers the "wgpu" backend:
//
//	import _ "github.com/gogpu/deferred/backend/wgpu"
package wgpu
