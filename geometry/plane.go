package geometry

// Plane returns a width x height quad in the z = 0 plane facing +z, with a
// single vertex color. Plane(2, 2, c) covers clip space exactly.
func Plane(width, height float32, color [4]float32) *Mesh {
	w, h := width/2, height/2
	return &Mesh{
		Positions: []float32{-w, h, 0, w, h, 0, -w, -h, 0, w, -h, 0},
		Normals:   []float32{0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1},
		UVs:       []float32{0, 0, 1, 0, 0, 1, 1, 1},
		Colors:    solidColors(4, color),
		Indices:   []uint32{0, 2, 1, 1, 2, 3},
	}
}
