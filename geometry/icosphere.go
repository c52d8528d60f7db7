package geometry

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxSubdivision is the highest icosphere order accepted by Icosphere.
const MaxSubdivision = 10

var (
	phi = float32((1 + math.Sqrt(5)) / 2)

	icosahedronVertices = []mgl32.Vec3{
		{-1, phi, 0}, {1, phi, 0}, {-1, -phi, 0}, {1, -phi, 0},
		{0, -1, phi}, {0, 1, phi}, {0, -1, -phi}, {0, 1, -phi},
		{phi, 0, -1}, {phi, 0, 1}, {-phi, 0, -1}, {-phi, 0, 1},
	}

	icosahedronFaces = []uint32{
		0, 11, 5, 0, 5, 1, 0, 1, 7, 0, 7, 10, 0, 10, 11,
		1, 5, 9, 5, 11, 4, 11, 10, 2, 10, 7, 6, 7, 1, 8,
		3, 9, 4, 3, 4, 2, 3, 2, 6, 3, 6, 8, 3, 8, 9,
		4, 9, 5, 2, 4, 11, 6, 2, 10, 8, 6, 7, 9, 8, 1,
	}
)

// IcosphereOption configures Icosphere.
type IcosphereOption func(*icosphereOptions)

type icosphereOptions struct {
	uvMap bool
	color [4]float32
}

// WithUVMap generates equirectangular UVs. Triangles that straddle the
// u = 0/1 seam get duplicated vertices so that interpolation does not wrap.
func WithUVMap() IcosphereOption {
	return func(o *icosphereOptions) { o.uvMap = true }
}

// WithColor sets the vertex color. The default is opaque white.
func WithColor(c [4]float32) IcosphereOption {
	return func(o *icosphereOptions) { o.color = c }
}

// Icosphere subdivides an icosahedron order times and projects it onto a
// sphere of the given radius. Each subdivision splits every triangle into
// four, sharing edge midpoints between neighbours. Normals are the unit
// position vectors.
func Icosphere(order int, radius float32, opts ...IcosphereOption) (*Mesh, error) {
	if order < 0 || order > MaxSubdivision {
		return nil, fmt.Errorf("%w: %d, max is %d", ErrSubdivisionTooHigh, order, MaxSubdivision)
	}
	o := icosphereOptions{color: [4]float32{1, 1, 1, 1}}
	for _, opt := range opts {
		opt(&o)
	}

	verts := append([]mgl32.Vec3(nil), icosahedronVertices...)
	faces := append([]uint32(nil), icosahedronFaces...)
	for i := 0; i < order; i++ {
		verts, faces = subdivide(verts, faces)
	}

	m := &Mesh{Indices: faces}
	m.Positions = make([]float32, 0, len(verts)*3)
	m.Normals = make([]float32, 0, len(verts)*3)
	for _, v := range verts {
		n := v.Normalize()
		p := n.Mul(radius)
		m.Positions = append(m.Positions, p[0], p[1], p[2])
		m.Normals = append(m.Normals, n[0], n[1], n[2])
	}
	m.Colors = solidColors(len(verts), o.color)
	if o.uvMap {
		mapUVs(m)
	}
	return m, nil
}

type edge struct{ a, b uint32 }

func subdivide(verts []mgl32.Vec3, faces []uint32) ([]mgl32.Vec3, []uint32) {
	cache := make(map[edge]uint32, len(faces))
	midpoint := func(i, j uint32) uint32 {
		k := edge{min(i, j), max(i, j)}
		if idx, ok := cache[k]; ok {
			return idx
		}
		verts = append(verts, verts[i].Add(verts[j]).Normalize())
		idx := uint32(len(verts) - 1)
		cache[k] = idx
		return idx
	}

	out := make([]uint32, 0, len(faces)*4)
	for f := 0; f < len(faces); f += 3 {
		i0, i1, i2 := faces[f], faces[f+1], faces[f+2]
		a := midpoint(i0, i1)
		b := midpoint(i1, i2)
		c := midpoint(i2, i0)
		out = append(out, i0, a, c, i1, b, a, i2, c, b, a, b, c)
	}
	return verts, out
}

// mapUVs assigns spherical UVs from the normals and splits seam triangles.
func mapUVs(m *Mesh) {
	n := m.VertexCount()
	m.UVs = make([]float32, 0, n*2)
	for i := 0; i < n; i++ {
		x, y, z := m.Normals[i*3], m.Normals[i*3+1], m.Normals[i*3+2]
		u := 0.5 + float32(math.Atan2(float64(z), float64(x))/(2*math.Pi))
		v := 0.5 - float32(math.Asin(float64(mgl32.Clamp(y, -1, 1)))/math.Pi)
		m.UVs = append(m.UVs, u, v)
	}

	for f := 0; f < len(m.Indices); f += 3 {
		tri := m.Indices[f : f+3]
		ua, ub, uc := m.UVs[tri[0]*2], m.UVs[tri[1]*2], m.UVs[tri[2]*2]
		if abs(ua-ub) <= 0.5 && abs(ub-uc) <= 0.5 && abs(uc-ua) <= 0.5 {
			continue
		}
		for k, idx := range tri {
			u := m.UVs[idx*2]
			if u < 0.25 {
				u++
			}
			m.Positions = append(m.Positions, m.Positions[idx*3:idx*3+3]...)
			m.Normals = append(m.Normals, m.Normals[idx*3:idx*3+3]...)
			m.Colors = append(m.Colors, m.Colors[idx*4:idx*4+4]...)
			m.UVs = append(m.UVs, u, m.UVs[idx*2+1])
			tri[k] = uint32(m.VertexCount() - 1)
		}
	}
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
