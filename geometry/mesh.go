package geometry

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Mesh errors.
var (
	// ErrInvalidMesh is returned by Validate when attribute lengths disagree
	// or an index is out of range.
	ErrInvalidMesh = errors.New("geometry: invalid mesh")

	// ErrSubdivisionTooHigh is returned for icosphere orders above
	// MaxSubdivision.
	ErrSubdivisionTooHigh = errors.New("geometry: subdivision order too high")
)

// Mesh is indexed triangle-list geometry.
type Mesh struct {
	Positions []float32 // xyz
	Normals   []float32 // xyz, unit length
	UVs       []float32 // uv, may be nil
	Colors    []float32 // rgba in [0, 1]
	Indices   []uint32
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Positions) / 3 }

// IndexFormat returns the narrowest index format that addresses every
// vertex.
func (m *Mesh) IndexFormat() gputypes.IndexFormat {
	if m.VertexCount() <= 0xFFFF {
		return gputypes.IndexFormatUint16
	}
	return gputypes.IndexFormatUint32
}

// Validate checks the attribute lengths and index range.
func (m *Mesh) Validate() error {
	n := m.VertexCount()
	switch {
	case len(m.Positions)%3 != 0:
		return fmt.Errorf("%w: %d position floats is not a multiple of 3", ErrInvalidMesh, len(m.Positions))
	case len(m.Normals) != n*3:
		return fmt.Errorf("%w: %d normals for %d vertices", ErrInvalidMesh, len(m.Normals)/3, n)
	case len(m.Colors) != n*4:
		return fmt.Errorf("%w: %d colors for %d vertices", ErrInvalidMesh, len(m.Colors)/4, n)
	case m.UVs != nil && len(m.UVs) != n*2:
		return fmt.Errorf("%w: %d uvs for %d vertices", ErrInvalidMesh, len(m.UVs)/2, n)
	case len(m.Indices)%3 != 0:
		return fmt.Errorf("%w: %d indices is not a triangle list", ErrInvalidMesh, len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= n {
			return fmt.Errorf("%w: index %d at %d exceeds %d vertices", ErrInvalidMesh, idx, i, n)
		}
	}
	return nil
}

func solidColors(n int, c [4]float32) []float32 {
	out := make([]float32, 0, n*4)
	for i := 0; i < n; i++ {
		out = append(out, c[0], c[1], c[2], c[3])
	}
	return out
}
