// Package geometry builds the procedural meshes rendered by the deferred
// pipeline: a subdivided icosahedron, a full-screen plane, and a cube.
//
// Meshes are plain slices of float32 attributes plus a triangle-list index
// buffer. They are immutable once built.
package geometry
