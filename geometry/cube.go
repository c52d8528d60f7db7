package geometry

// Cube returns a white cube spanning [-1, 1] on every axis with
// per-face normals and UVs.
func Cube() *Mesh {
	m := &Mesh{
		Positions: []float32{
			-1, -1, 1, 1, -1, 1, 1, 1, 1, -1, 1, 1, // front
			-1, -1, -1, -1, 1, -1, 1, 1, -1, 1, -1, -1, // back
			-1, 1, -1, -1, 1, 1, 1, 1, 1, 1, 1, -1, // top
			-1, -1, -1, 1, -1, -1, 1, -1, 1, -1, -1, 1, // bottom
			1, -1, -1, 1, 1, -1, 1, 1, 1, 1, -1, 1, // right
			-1, -1, -1, -1, -1, 1, -1, 1, 1, -1, 1, -1, // left
		},
		UVs: []float32{
			0, 0, 1, 0, 1, 1, 0, 1,
			0, 0, 1, 1, 1, 0, 0, 1,
			0, 0, 1, 0, 1, 1, 0, 1,
			0, 0, 1, 0, 1, 1, 0, 1,
			0, 0, 1, 0, 1, 1, 0, 1,
			0, 0, 1, 0, 1, 1, 0, 1,
		},
	}
	faceNormals := [6][3]float32{{0, 0, 1}, {0, 0, -1}, {0, 1, 0}, {0, -1, 0}, {1, 0, 0}, {-1, 0, 0}}
	for f, n := range faceNormals {
		for v := 0; v < 4; v++ {
			m.Normals = append(m.Normals, n[0], n[1], n[2])
		}
		base := uint32(f * 4)
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	m.Colors = solidColors(24, [4]float32{1, 1, 1, 1})
	return m
}
